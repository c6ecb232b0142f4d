package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
)

// DefaultSponsorOrder is the sort order used when none is given.
const DefaultSponsorOrder = 100

// SponsorService manages the sponsors shown on a show page
type SponsorService struct {
	log   logger.Logger
	repo  repository.SponsorRepository
	clock func() time.Time
}

// NewSponsorService creates a new SponsorService
func NewSponsorService(log logger.Logger, repo repository.SponsorRepository) *SponsorService {
	return &SponsorService{log: log, repo: repo, clock: time.Now}
}

// SetClock replaces the time source used for admin session checks.
func (s *SponsorService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// SponsorInput is an admin's add-sponsor form.
type SponsorInput struct {
	Name       string           `json:"name"`
	LogoPath   string           `json:"logo_path"`
	WebsiteURL string           `json:"website_url"`
	Placement  models.Placement `json:"placement"`
	SortOrder  *int             `json:"sort_order,omitempty"`
}

// Add upserts the sponsor by name and attaches it to the show. A title
// placement replaces the show's previous title sponsor.
func (s *SponsorService) Add(ctx context.Context, sess *auth.Session, showID int64, in SponsorInput) (int64, error) {
	if err := sess.Check(s.clock()); err != nil {
		return 0, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, ErrSponsorNameRequired
	}
	placement := in.Placement
	if placement == "" {
		placement = models.PlacementStandard
	}
	if placement != models.PlacementStandard && placement != models.PlacementTitle {
		return 0, ErrInvalidPlacement
	}
	order := DefaultSponsorOrder
	if in.SortOrder != nil {
		order = *in.SortOrder
	}

	id, err := s.repo.UpsertSponsor(ctx, models.Sponsor{
		Name:       name,
		LogoPath:   strings.TrimSpace(in.LogoPath),
		WebsiteURL: strings.TrimSpace(in.WebsiteURL),
	})
	if err != nil {
		return 0, err
	}
	if err := s.repo.AttachSponsor(ctx, showID, id, placement, order); err != nil {
		return 0, err
	}
	s.log.Info("Sponsor saved", "show_id", showID, "sponsor", name, "placement", placement)
	return id, nil
}

// Remove detaches a sponsor from the show. The sponsor record is kept.
func (s *SponsorService) Remove(ctx context.Context, sess *auth.Session, showID, sponsorID int64) error {
	if err := sess.Check(s.clock()); err != nil {
		return err
	}
	err := s.repo.DetachSponsor(ctx, showID, sponsorID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// ForShow returns the title sponsor, if any, and the standard sponsors in order.
func (s *SponsorService) ForShow(ctx context.Context, showID int64) (*models.SponsorLineup, error) {
	sponsors, err := s.repo.ListShowSponsors(ctx, showID)
	if err != nil {
		return nil, err
	}
	lineup := &models.SponsorLineup{Standard: []models.ShowSponsor{}}
	for i := range sponsors {
		if sponsors[i].Placement == models.PlacementTitle && lineup.Title == nil {
			title := sponsors[i]
			lineup.Title = &title
			continue
		}
		lineup.Standard = append(lineup.Standard, sponsors[i])
	}
	return lineup, nil
}
