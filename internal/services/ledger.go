package services

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/export"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
)

// LedgerServiceRepository defines the repository methods needed by LedgerService
type LedgerServiceRepository interface {
	repository.LedgerRepository
	GetShow(ctx context.Context, id int64) (*repository.ShowRecord, error)
	ListCars(ctx context.Context, showID int64) ([]models.Car, error)
	ListAttendees(ctx context.Context, showID int64) ([]models.Attendee, error)
}

// LedgerService handles export, snapshot and reset of the vote ledger
type LedgerService struct {
	log         logger.Logger
	repo        LedgerServiceRepository
	shows       *ShowService
	leaderboard *LeaderboardService
	metrics     *metrics.Metrics
	clock       func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(log logger.Logger, repo LedgerServiceRepository, shows *ShowService, leaderboard *LeaderboardService, m *metrics.Metrics) *LedgerService {
	return &LedgerService{
		log:         log,
		repo:        repo,
		shows:       shows,
		leaderboard: leaderboard,
		metrics:     m,
		clock:       time.Now,
	}
}

// SetClock replaces the time source used for session checks and snapshot names.
func (s *LedgerService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Snapshot is a downloadable zip of everything recorded for a show.
type Snapshot struct {
	Filename string
	Data     []byte
}

// ReplayResult summarises a Replay call.
type ReplayResult struct {
	Inserted   int      `json:"inserted"`
	Duplicates int      `json:"duplicates"`
	Skipped    []string `json:"skipped,omitempty"`
}

// Export returns every ledger entry for the show joined with car and owner,
// oldest first.
func (s *LedgerService) Export(ctx context.Context, showID int64) ([]models.ExportRow, error) {
	rows, err := s.repo.ExportLedger(ctx, showID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.ExportRow{}
	}
	return rows, nil
}

// ExportCSV renders Export as CSV.
func (s *LedgerService) ExportCSV(ctx context.Context, showID int64) ([]byte, error) {
	rows, err := s.Export(ctx, showID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteLedgerCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders Export and the overall ranking as a workbook.
func (s *LedgerService) ExportXLSX(ctx context.Context, showID int64) ([]byte, error) {
	rows, err := s.Export(ctx, showID)
	if err != nil {
		return nil, err
	}
	overall, err := s.leaderboard.Overall(ctx, showID)
	if err != nil {
		return nil, err
	}
	return export.LedgerWorkbook(rows, overall)
}

// Snapshot bundles votes, cars, leaderboard and attendees into one zip.
func (s *LedgerService) Snapshot(ctx context.Context, showID int64) (*Snapshot, error) {
	show, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}

	rows, err := s.Export(ctx, showID)
	if err != nil {
		return nil, err
	}
	cars, err := s.repo.ListCars(ctx, showID)
	if err != nil {
		return nil, err
	}
	attendees, err := s.repo.ListAttendees(ctx, showID)
	if err != nil {
		return nil, err
	}
	byCat, err := s.leaderboard.ByCategory(ctx, showID)
	if err != nil {
		return nil, err
	}
	overall, err := s.leaderboard.Overall(ctx, showID)
	if err != nil {
		return nil, err
	}

	var votesCSV, carsCSV, boardCSV, attendeesCSV bytes.Buffer
	if err := export.WriteLedgerCSV(&votesCSV, rows); err != nil {
		return nil, err
	}
	if err := export.WriteCarsCSV(&carsCSV, cars); err != nil {
		return nil, err
	}
	if err := export.WriteLeaderboardCSV(&boardCSV, byCat, overall); err != nil {
		return nil, err
	}
	if err := export.WriteAttendeesCSV(&attendeesCSV, attendees); err != nil {
		return nil, err
	}
	workbook, err := export.LedgerWorkbook(rows, overall)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	data, err := export.Bundle([]export.File{
		{Name: "votes.csv", Data: votesCSV.Bytes()},
		{Name: "votes.xlsx", Data: workbook},
		{Name: "cars.csv", Data: carsCSV.Bytes()},
		{Name: "leaderboard.csv", Data: boardCSV.Bytes()},
		{Name: "attendees.csv", Data: attendeesCSV.Bytes()},
	}, now)
	if err != nil {
		return nil, err
	}

	s.log.Info("Snapshot built", "show", show.Slug, "entries", len(rows), "cars", len(cars))
	return &Snapshot{
		Filename: fmt.Sprintf("%s-snapshot-%s.zip", show.Slug, now.Format("20060102-150405")),
		Data:     data,
	}, nil
}

// CloseAndSnapshot closes voting, then snapshots. Sessions already started
// can still reconcile after the snapshot is taken.
func (s *LedgerService) CloseAndSnapshot(ctx context.Context, sess *auth.Session, showID int64) (*Snapshot, error) {
	if _, err := s.shows.SetVotingOpen(ctx, sess, showID, false); err != nil {
		return nil, err
	}
	return s.Snapshot(ctx, showID)
}

// Reset deletes every ledger entry for the show and returns how many were removed.
func (s *LedgerService) Reset(ctx context.Context, sess *auth.Session, showID int64) (int64, error) {
	if err := sess.Check(s.clock()); err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteLedger(ctx, showID)
	if err != nil {
		return 0, err
	}
	s.metrics.LedgerReset()
	s.log.Warn("Ledger reset", "show_id", showID, "deleted", n)
	return n, nil
}

// ResetWithSnapshot builds a snapshot and only resets once it exists.
func (s *LedgerService) ResetWithSnapshot(ctx context.Context, sess *auth.Session, showID int64) (*Snapshot, int64, error) {
	if err := sess.Check(s.clock()); err != nil {
		return nil, 0, err
	}
	snap, err := s.Snapshot(ctx, showID)
	if err != nil {
		return nil, 0, err
	}
	n, err := s.Reset(ctx, sess, showID)
	if err != nil {
		return snap, 0, err
	}
	return snap, n, nil
}

// Replay writes exported rows back into a show's ledger, resolving cars by
// number. Rows whose session is already recorded count as duplicates.
func (s *LedgerService) Replay(ctx context.Context, showID int64, rows []models.ExportRow) (*ReplayResult, error) {
	cars, err := s.repo.ListCars(ctx, showID)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]int64, len(cars))
	for _, c := range cars {
		byNumber[c.CarNumber] = c.ID
	}

	result := &ReplayResult{}
	for _, r := range rows {
		carID, ok := byNumber[r.CarNumber]
		if !ok {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: car #%d not in show", r.SessionID, r.CarNumber))
			continue
		}
		if _, ok := models.CategoryByName(r.Category); !ok {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: unknown category %q", r.SessionID, r.Category))
			continue
		}
		if r.Quantity < MinVoteQuantity || r.Quantity > MaxVoteQuantity {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: invalid quantity %d", r.SessionID, r.Quantity))
			continue
		}
		inserted, err := s.repo.InsertLedgerEntry(ctx, models.LedgerEntry{
			ShowID:      showID,
			CarID:       carID,
			Category:    r.Category,
			Quantity:    r.Quantity,
			AmountCents: r.AmountCents,
			SessionID:   r.SessionID,
			CreatedAt:   r.CreatedAt,
		})
		if err != nil {
			return result, err
		}
		if inserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	}
	s.log.Info("Ledger replayed", "show_id", showID, "inserted", result.Inserted,
		"duplicates", result.Duplicates, "skipped", len(result.Skipped))
	return result, nil
}

// Stats returns entry, vote and amount totals.
func (s *LedgerService) Stats(ctx context.Context, showID int64) (repository.LedgerStats, error) {
	return s.repo.LedgerStats(ctx, showID)
}
