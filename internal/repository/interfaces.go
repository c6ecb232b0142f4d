package repository

import (
	"context"
	"time"

	"github.com/karmankarshows/carshow/internal/models"
)

// ShowRepository defines show data operations
type ShowRepository interface {
	GetShowBySlug(ctx context.Context, slug string) (*ShowRecord, error)
	GetShow(ctx context.Context, id int64) (*ShowRecord, error)
	GetActiveShow(ctx context.Context) (*ShowRecord, error)
	ListShows(ctx context.Context) ([]ShowRecord, error)
	CreateShowIfMissing(ctx context.Context, show models.Show) (bool, error)
	SetVotingOpen(ctx context.Context, showID int64, open bool) error
	SetVotingDeadline(ctx context.Context, showID int64, endsAt *time.Time) error
	CloseVotingIfDue(ctx context.Context, showID int64, now time.Time) (bool, error)
}

// CarRepository defines car and owner data operations
type CarRepository interface {
	GetCarByToken(ctx context.Context, showID int64, token string) (*models.Car, error)
	GetCar(ctx context.Context, id int64) (*models.Car, error)
	ListCars(ctx context.Context, showID int64) ([]models.Car, error)
	CarNumberTaken(ctx context.Context, showID int64, carNumber int) (bool, error)
	CreateCar(ctx context.Context, car models.Car) (int64, error)
	RegisterCar(ctx context.Context, owner models.Person, car models.Car) (int64, error)
	CheckInCar(ctx context.Context, carID int64, owner models.Person, year, carMake, carModel string) error
	MarkWaiverReceived(ctx context.Context, showID, carID int64, receivedBy string) error
	ListWaivers(ctx context.Context, showID int64) ([]models.Waiver, error)
}

// LedgerRepository defines vote ledger operations
type LedgerRepository interface {
	InsertLedgerEntry(ctx context.Context, e models.LedgerEntry) (bool, error)
	GetLedgerEntryBySession(ctx context.Context, sessionID string) (*models.LedgerEntry, error)
	CategoryTotals(ctx context.Context, showID int64) ([]CategoryTotal, error)
	OverallTotals(ctx context.Context, showID int64) ([]models.Standing, error)
	ExportLedger(ctx context.Context, showID int64) ([]models.ExportRow, error)
	DeleteLedger(ctx context.Context, showID int64) (int64, error)
	LedgerStats(ctx context.Context, showID int64) (LedgerStats, error)
}

// SponsorRepository defines sponsor data operations
type SponsorRepository interface {
	UpsertSponsor(ctx context.Context, s models.Sponsor) (int64, error)
	AttachSponsor(ctx context.Context, showID, sponsorID int64, placement models.Placement, sortOrder int) error
	DetachSponsor(ctx context.Context, showID, sponsorID int64) error
	ListShowSponsors(ctx context.Context, showID int64) ([]models.ShowSponsor, error)
}

// AttendeeRepository defines attendee and donation data operations
type AttendeeRepository interface {
	CreateAttendee(ctx context.Context, a models.Attendee, fields map[string]bool) (int64, error)
	GetAttendee(ctx context.Context, id int64) (*models.Attendee, error)
	ListAttendees(ctx context.Context, showID int64) ([]models.Attendee, error)
	FieldMetrics(ctx context.Context, showID int64) ([]models.FieldMetric, error)
	CreateDonation(ctx context.Context, d models.Donation) (int64, error)
	GetDonation(ctx context.Context, id int64) (*models.Donation, error)
	SetDonationSession(ctx context.Context, donationID int64, sessionID string) error
	MarkDonationPaid(ctx context.Context, donationID int64, sessionID string, paidAt time.Time) (bool, error)
	DonationTotals(ctx context.Context, showID int64) (int, int64, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	ShowRepository
	CarRepository
	LedgerRepository
	SponsorRepository
	AttendeeRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
