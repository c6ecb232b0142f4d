package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
)

// Broadcaster defines the interface for broadcasting messages to clients
type Broadcaster interface {
	BroadcastVotingStatus(status VotingStatus)
	BroadcastVoteRecorded(vote VoteRecorded)
}

// VotingStatus is the public voting state of a show.
type VotingStatus struct {
	ShowSlug         string     `json:"show_slug"`
	Open             bool       `json:"open"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	SecondsRemaining int64      `json:"seconds_remaining,omitempty"`
}

// VoteRecorded is announced after a ledger commit.
type VoteRecorded struct {
	ShowSlug  string `json:"show_slug"`
	Category  string `json:"category"`
	CarNumber int    `json:"car_number"`
	Quantity  int    `json:"quantity"`
}

// ShowService handles show lookup and the voting switch
type ShowService struct {
	log         logger.Logger
	repo        repository.ShowRepository
	clock       func() time.Time
	broadcaster Broadcaster
}

// NewShowService creates a new ShowService
func NewShowService(log logger.Logger, repo repository.ShowRepository) *ShowService {
	return &ShowService{log: log, repo: repo, clock: time.Now}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *ShowService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the time source used for deadline checks.
func (s *ShowService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// EnsureDefaultShow creates the configured show on first start and applies the
// configured voting deadline. An existing show keeps its voting state.
func (s *ShowService) EnsureDefaultShow(ctx context.Context, show models.Show, deadline *time.Time) (*repository.ShowRecord, error) {
	show.IsActive = true
	created, err := s.repo.CreateShowIfMissing(ctx, show)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetShowBySlug(ctx, show.Slug)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("Created show", "slug", rec.Slug, "voting_open", rec.VotingOpen)
	}
	if deadline != nil && (rec.VotingEndsAt == nil || !rec.VotingEndsAt.Equal(*deadline)) {
		if err := s.repo.SetVotingDeadline(ctx, rec.ID, deadline); err != nil {
			return nil, err
		}
		rec.VotingEndsAt = deadline
		s.log.Info("Voting deadline set", "slug", rec.Slug, "ends_at", deadline.Format(time.RFC3339))
	}
	return rec, nil
}

// ActiveShow returns the current show after applying its voting deadline.
func (s *ShowService) ActiveShow(ctx context.Context) (*repository.ShowRecord, error) {
	rec, err := s.repo.GetActiveShow(ctx)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoActiveShow
	}
	if err != nil {
		return nil, err
	}
	return s.applyDeadline(ctx, rec)
}

// ShowBySlug returns a show after applying its voting deadline.
func (s *ShowService) ShowBySlug(ctx context.Context, slug string) (*repository.ShowRecord, error) {
	rec, err := s.repo.GetShowBySlug(ctx, slug)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.applyDeadline(ctx, rec)
}

// ListShows returns every show, newest first.
func (s *ShowService) ListShows(ctx context.Context) ([]repository.ShowRecord, error) {
	return s.repo.ListShows(ctx)
}

// Status reports the voting state of a show.
func (s *ShowService) Status(ctx context.Context, slug string) (*VotingStatus, error) {
	rec, err := s.ShowBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	st := s.statusOf(rec)
	return &st, nil
}

// ApplyVotingDeadline closes voting for the show if its deadline has passed.
// It reports whether this call closed voting.
func (s *ShowService) ApplyVotingDeadline(ctx context.Context, showID int64) (bool, error) {
	closed, err := s.repo.CloseVotingIfDue(ctx, showID, s.clock())
	if err != nil {
		return false, err
	}
	if closed {
		rec, err := s.repo.GetShow(ctx, showID)
		if err != nil {
			return true, err
		}
		s.log.Info("Voting closed at deadline", "slug", rec.Slug)
		s.broadcast(rec)
	}
	return closed, nil
}

// SetVotingOpen opens or closes voting. Closing blocks new checkout sessions
// only; sessions already started still reconcile.
func (s *ShowService) SetVotingOpen(ctx context.Context, sess *auth.Session, showID int64, open bool) (*repository.ShowRecord, error) {
	if err := sess.Check(s.clock()); err != nil {
		return nil, err
	}
	if err := s.repo.SetVotingOpen(ctx, showID, open); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	rec, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Voting status changed", "slug", rec.Slug, "open", open)
	s.broadcast(rec)
	return rec, nil
}

// ToggleVoting flips the voting switch and returns the new state.
func (s *ShowService) ToggleVoting(ctx context.Context, sess *auth.Session, showID int64) (*repository.ShowRecord, error) {
	rec, err := s.repo.GetShow(ctx, showID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.SetVotingOpen(ctx, sess, showID, !rec.VotingOpen)
}

// SetDeadline stores or clears the automatic close time.
func (s *ShowService) SetDeadline(ctx context.Context, sess *auth.Session, showID int64, endsAt *time.Time) (*repository.ShowRecord, error) {
	if err := sess.Check(s.clock()); err != nil {
		return nil, err
	}
	if err := s.repo.SetVotingDeadline(ctx, showID, endsAt); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	rec, err := s.repo.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	s.broadcast(rec)
	return rec, nil
}

func (s *ShowService) applyDeadline(ctx context.Context, rec *repository.ShowRecord) (*repository.ShowRecord, error) {
	if !rec.VotingOpen || rec.VotingEndsAt == nil || s.clock().Before(*rec.VotingEndsAt) {
		return rec, nil
	}
	if _, err := s.ApplyVotingDeadline(ctx, rec.ID); err != nil {
		return nil, err
	}
	return s.repo.GetShow(ctx, rec.ID)
}

func (s *ShowService) statusOf(rec *repository.ShowRecord) VotingStatus {
	st := VotingStatus{ShowSlug: rec.Slug, Open: rec.VotingOpen}
	if rec.VotingOpen && rec.VotingEndsAt != nil {
		st.EndsAt = rec.VotingEndsAt
		if remaining := rec.VotingEndsAt.Sub(s.clock()); remaining > 0 {
			st.SecondsRemaining = int64(remaining.Seconds())
		}
	}
	return st
}

func (s *ShowService) broadcast(rec *repository.ShowRecord) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastVotingStatus(s.statusOf(rec))
	}
}
