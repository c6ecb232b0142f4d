package services

import (
	"context"
	"time"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

// ShowServicer defines the interface for show and voting-switch operations
type ShowServicer interface {
	ActiveShow(ctx context.Context) (*repository.ShowRecord, error)
	ShowBySlug(ctx context.Context, slug string) (*repository.ShowRecord, error)
	ListShows(ctx context.Context) ([]repository.ShowRecord, error)
	Status(ctx context.Context, slug string) (*VotingStatus, error)
	ApplyVotingDeadline(ctx context.Context, showID int64) (bool, error)
	SetVotingOpen(ctx context.Context, sess *auth.Session, showID int64, open bool) (*repository.ShowRecord, error)
	ToggleVoting(ctx context.Context, sess *auth.Session, showID int64) (*repository.ShowRecord, error)
	SetDeadline(ctx context.Context, sess *auth.Session, showID int64, endsAt *time.Time) (*repository.ShowRecord, error)
	SetBroadcaster(b Broadcaster)
}

// CarServicer defines the interface for car operations
type CarServicer interface {
	Register(ctx context.Context, showID int64, reg Registration) (*models.Car, error)
	CheckIn(ctx context.Context, showID int64, token string, in CheckIn) (*models.Car, error)
	CarByToken(ctx context.Context, showID int64, token string) (*models.Car, error)
	PublicCar(ctx context.Context, showID int64, token string) (*PublicCar, error)
	ListCars(ctx context.Context, showID int64) ([]models.Car, error)
	CreatePlaceholders(ctx context.Context, sess *auth.Session, showID int64, start, count int) (int, error)
	MarkWaiverReceived(ctx context.Context, sess *auth.Session, showID, carID int64, receivedBy string) error
	ListWaivers(ctx context.Context, showID int64) ([]models.Waiver, error)
	VoteURL(showSlug, token string, category models.Category) string
	CheckInURL(showSlug, token string) string
	VoteLinks(showSlug string, car *models.Car) VoteLinks
	QRCode(link string, size int) ([]byte, error)
}

// VotingServicer defines the interface for vote checkout and reconciliation
type VotingServicer interface {
	InitiateVoteCheckout(ctx context.Context, req VoteCheckoutRequest) (*CheckoutRedirect, error)
	ReconcileCheckout(ctx context.Context, sessionID string) (*ReconcileResult, error)
	ReconcileSession(ctx context.Context, session *checkout.Session) (*ReconcileResult, error)
}

// LedgerServicer defines the interface for ledger export and reset
type LedgerServicer interface {
	Export(ctx context.Context, showID int64) ([]models.ExportRow, error)
	ExportCSV(ctx context.Context, showID int64) ([]byte, error)
	ExportXLSX(ctx context.Context, showID int64) ([]byte, error)
	Snapshot(ctx context.Context, showID int64) (*Snapshot, error)
	CloseAndSnapshot(ctx context.Context, sess *auth.Session, showID int64) (*Snapshot, error)
	Reset(ctx context.Context, sess *auth.Session, showID int64) (int64, error)
	ResetWithSnapshot(ctx context.Context, sess *auth.Session, showID int64) (*Snapshot, int64, error)
	Replay(ctx context.Context, showID int64, rows []models.ExportRow) (*ReplayResult, error)
	Stats(ctx context.Context, showID int64) (repository.LedgerStats, error)
}

// LeaderboardServicer defines the interface for rankings
type LeaderboardServicer interface {
	ByCategory(ctx context.Context, showID int64) ([]models.CategoryStandings, error)
	Overall(ctx context.Context, showID int64) ([]models.Standing, error)
	Full(ctx context.Context, showID int64) (*Leaderboard, error)
	Chart(ctx context.Context, showID int64, title string) ([]byte, error)
}

// SponsorServicer defines the interface for sponsor operations
type SponsorServicer interface {
	Add(ctx context.Context, sess *auth.Session, showID int64, in SponsorInput) (int64, error)
	Remove(ctx context.Context, sess *auth.Session, showID, sponsorID int64) error
	ForShow(ctx context.Context, showID int64) (*models.SponsorLineup, error)
}

// AttendeeServicer defines the interface for attendee and donation operations
type AttendeeServicer interface {
	Register(ctx context.Context, showSlug string, in AttendeeInput) (*models.Attendee, error)
	InitiateDonation(ctx context.Context, req DonationRequest) (*DonationCheckout, error)
	ReconcileDonation(ctx context.Context, sessionID string) (*DonationResult, error)
	ReconcileDonationSession(ctx context.Context, session *checkout.Session) (*DonationResult, error)
	ListAttendees(ctx context.Context, showID int64) ([]models.Attendee, error)
	FieldMetrics(ctx context.Context, showID int64) ([]models.FieldMetric, error)
	DonationTotals(ctx context.Context, showID int64) (*DonationSummary, error)
}

// Ensure concrete types implement interfaces
var (
	_ ShowServicer        = (*ShowService)(nil)
	_ CarServicer         = (*CarService)(nil)
	_ VotingServicer      = (*VotingService)(nil)
	_ LedgerServicer      = (*LedgerService)(nil)
	_ LeaderboardServicer = (*LeaderboardService)(nil)
	_ SponsorServicer     = (*SponsorService)(nil)
	_ AttendeeServicer    = (*AttendeeService)(nil)
)
