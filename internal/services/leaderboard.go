package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
)

// chartBars is the most cars drawn on the leaderboard chart.
const chartBars = 20

// LeaderboardService computes rankings from the ledger. It never writes.
type LeaderboardService struct {
	log  logger.Logger
	repo repository.LedgerRepository
}

// NewLeaderboardService creates a new LeaderboardService
func NewLeaderboardService(log logger.Logger, repo repository.LedgerRepository) *LeaderboardService {
	return &LeaderboardService{log: log, repo: repo}
}

// Leaderboard is the full ranking for a show.
type Leaderboard struct {
	ByCategory []models.CategoryStandings `json:"by_category"`
	Overall    []models.Standing          `json:"overall"`
	Stats      repository.LedgerStats     `json:"stats"`
}

// ByCategory returns a ranking for every category in display order, including
// categories nobody has voted in yet.
func (s *LeaderboardService) ByCategory(ctx context.Context, showID int64) ([]models.CategoryStandings, error) {
	totals, err := s.repo.CategoryTotals(ctx, showID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string][]models.Standing, len(models.Categories))
	for _, t := range totals {
		if _, ok := models.CategoryByName(t.Category); !ok {
			s.log.Warn("Ledger has votes for an unknown category", "show_id", showID, "category", t.Category)
			continue
		}
		byName[t.Category] = append(byName[t.Category], models.Standing{CarNumber: t.CarNumber, Votes: t.Votes})
	}

	out := make([]models.CategoryStandings, 0, len(models.Categories))
	for _, c := range models.Categories {
		standings := byName[c.Name]
		if standings == nil {
			standings = []models.Standing{}
		}
		out = append(out, models.CategoryStandings{Category: c, Standings: standings})
	}
	return out, nil
}

// Overall ranks cars by votes summed across every category.
func (s *LeaderboardService) Overall(ctx context.Context, showID int64) ([]models.Standing, error) {
	standings, err := s.repo.OverallTotals(ctx, showID)
	if err != nil {
		return nil, err
	}
	if standings == nil {
		standings = []models.Standing{}
	}
	return standings, nil
}

// Full returns both rankings plus ledger totals.
func (s *LeaderboardService) Full(ctx context.Context, showID int64) (*Leaderboard, error) {
	byCat, err := s.ByCategory(ctx, showID)
	if err != nil {
		return nil, err
	}
	overall, err := s.Overall(ctx, showID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.LedgerStats(ctx, showID)
	if err != nil {
		return nil, err
	}
	return &Leaderboard{ByCategory: byCat, Overall: overall, Stats: stats}, nil
}

// Chart renders the overall ranking as a PNG bar chart.
func (s *LeaderboardService) Chart(ctx context.Context, showID int64, title string) ([]byte, error) {
	overall, err := s.Overall(ctx, showID)
	if err != nil {
		return nil, err
	}
	return renderStandingsChart(title, overall)
}

func renderStandingsChart(title string, standings []models.Standing) ([]byte, error) {
	if len(standings) > chartBars {
		standings = standings[:chartBars]
	}

	bars := make([]chart.Value, 0, len(standings))
	top := 0
	for _, st := range standings {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("#%d", st.CarNumber),
			Value: float64(st.Votes),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex("1f4e79"),
				StrokeColor: drawing.ColorFromHex("1f4e79"),
			},
		})
		if st.Votes > top {
			top = st.Votes
		}
	}
	// An empty ledger still renders, as a single empty bar.
	if len(bars) == 0 {
		bars = append(bars, chart.Value{Label: "No votes yet", Value: 0})
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    60*len(bars) + 160,
		Height:   420,
		BarWidth: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 48},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: float64(top)*1.1 + 1},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
