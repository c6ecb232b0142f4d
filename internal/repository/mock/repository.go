package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.InsertLedgerEntryError = errors.New("disk I/O error")
//	svc := services.NewLedgerService(log, mockRepo, gateway, ...)
type Repository struct {
	repository.FullRepository

	// ===== Show Errors =====
	GetShowBySlugError     error
	GetShowError           error
	GetActiveShowError     error
	SetVotingOpenError     error
	SetVotingDeadlineError error
	CloseVotingIfDueError  error

	// ===== Car Errors =====
	GetCarByTokenError      error
	GetCarError             error
	ListCarsError           error
	CarNumberTakenError     error
	CreateCarError          error
	RegisterCarError        error
	CheckInCarError         error
	MarkWaiverReceivedError error

	// ===== Ledger Errors =====
	InsertLedgerEntryError error
	CategoryTotalsError    error
	OverallTotalsError     error
	ExportLedgerError      error
	DeleteLedgerError      error
	LedgerStatsError       error

	// ===== Sponsor Errors =====
	UpsertSponsorError    error
	AttachSponsorError    error
	ListShowSponsorsError error

	// ===== Attendee Errors =====
	CreateAttendeeError   error
	CreateDonationError   error
	MarkDonationPaidError error
	ListAttendeesError    error

	// InsertLedgerEntryCalls counts ledger writes that reached the wrapper.
	InsertLedgerEntryCalls atomic.Int64
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Show Methods =====

func (m *Repository) GetShowBySlug(ctx context.Context, slug string) (*repository.ShowRecord, error) {
	if m.GetShowBySlugError != nil {
		return nil, m.GetShowBySlugError
	}
	return m.FullRepository.GetShowBySlug(ctx, slug)
}

func (m *Repository) GetShow(ctx context.Context, id int64) (*repository.ShowRecord, error) {
	if m.GetShowError != nil {
		return nil, m.GetShowError
	}
	return m.FullRepository.GetShow(ctx, id)
}

func (m *Repository) GetActiveShow(ctx context.Context) (*repository.ShowRecord, error) {
	if m.GetActiveShowError != nil {
		return nil, m.GetActiveShowError
	}
	return m.FullRepository.GetActiveShow(ctx)
}

func (m *Repository) SetVotingOpen(ctx context.Context, showID int64, open bool) error {
	if m.SetVotingOpenError != nil {
		return m.SetVotingOpenError
	}
	return m.FullRepository.SetVotingOpen(ctx, showID, open)
}

func (m *Repository) SetVotingDeadline(ctx context.Context, showID int64, endsAt *time.Time) error {
	if m.SetVotingDeadlineError != nil {
		return m.SetVotingDeadlineError
	}
	return m.FullRepository.SetVotingDeadline(ctx, showID, endsAt)
}

func (m *Repository) CloseVotingIfDue(ctx context.Context, showID int64, now time.Time) (bool, error) {
	if m.CloseVotingIfDueError != nil {
		return false, m.CloseVotingIfDueError
	}
	return m.FullRepository.CloseVotingIfDue(ctx, showID, now)
}

// ===== Car Methods =====

func (m *Repository) GetCarByToken(ctx context.Context, showID int64, token string) (*models.Car, error) {
	if m.GetCarByTokenError != nil {
		return nil, m.GetCarByTokenError
	}
	return m.FullRepository.GetCarByToken(ctx, showID, token)
}

func (m *Repository) GetCar(ctx context.Context, id int64) (*models.Car, error) {
	if m.GetCarError != nil {
		return nil, m.GetCarError
	}
	return m.FullRepository.GetCar(ctx, id)
}

func (m *Repository) ListCars(ctx context.Context, showID int64) ([]models.Car, error) {
	if m.ListCarsError != nil {
		return nil, m.ListCarsError
	}
	return m.FullRepository.ListCars(ctx, showID)
}

func (m *Repository) CarNumberTaken(ctx context.Context, showID int64, carNumber int) (bool, error) {
	if m.CarNumberTakenError != nil {
		return false, m.CarNumberTakenError
	}
	return m.FullRepository.CarNumberTaken(ctx, showID, carNumber)
}

func (m *Repository) CreateCar(ctx context.Context, car models.Car) (int64, error) {
	if m.CreateCarError != nil {
		return 0, m.CreateCarError
	}
	return m.FullRepository.CreateCar(ctx, car)
}

func (m *Repository) RegisterCar(ctx context.Context, owner models.Person, car models.Car) (int64, error) {
	if m.RegisterCarError != nil {
		return 0, m.RegisterCarError
	}
	return m.FullRepository.RegisterCar(ctx, owner, car)
}

func (m *Repository) CheckInCar(ctx context.Context, carID int64, owner models.Person, year, carMake, carModel string) error {
	if m.CheckInCarError != nil {
		return m.CheckInCarError
	}
	return m.FullRepository.CheckInCar(ctx, carID, owner, year, carMake, carModel)
}

func (m *Repository) MarkWaiverReceived(ctx context.Context, showID, carID int64, receivedBy string) error {
	if m.MarkWaiverReceivedError != nil {
		return m.MarkWaiverReceivedError
	}
	return m.FullRepository.MarkWaiverReceived(ctx, showID, carID, receivedBy)
}

// ===== Ledger Methods =====

func (m *Repository) InsertLedgerEntry(ctx context.Context, e models.LedgerEntry) (bool, error) {
	m.InsertLedgerEntryCalls.Add(1)
	if m.InsertLedgerEntryError != nil {
		return false, m.InsertLedgerEntryError
	}
	return m.FullRepository.InsertLedgerEntry(ctx, e)
}

func (m *Repository) CategoryTotals(ctx context.Context, showID int64) ([]repository.CategoryTotal, error) {
	if m.CategoryTotalsError != nil {
		return nil, m.CategoryTotalsError
	}
	return m.FullRepository.CategoryTotals(ctx, showID)
}

func (m *Repository) OverallTotals(ctx context.Context, showID int64) ([]models.Standing, error) {
	if m.OverallTotalsError != nil {
		return nil, m.OverallTotalsError
	}
	return m.FullRepository.OverallTotals(ctx, showID)
}

func (m *Repository) ExportLedger(ctx context.Context, showID int64) ([]models.ExportRow, error) {
	if m.ExportLedgerError != nil {
		return nil, m.ExportLedgerError
	}
	return m.FullRepository.ExportLedger(ctx, showID)
}

func (m *Repository) DeleteLedger(ctx context.Context, showID int64) (int64, error) {
	if m.DeleteLedgerError != nil {
		return 0, m.DeleteLedgerError
	}
	return m.FullRepository.DeleteLedger(ctx, showID)
}

func (m *Repository) LedgerStats(ctx context.Context, showID int64) (repository.LedgerStats, error) {
	if m.LedgerStatsError != nil {
		return repository.LedgerStats{}, m.LedgerStatsError
	}
	return m.FullRepository.LedgerStats(ctx, showID)
}

// ===== Sponsor Methods =====

func (m *Repository) UpsertSponsor(ctx context.Context, s models.Sponsor) (int64, error) {
	if m.UpsertSponsorError != nil {
		return 0, m.UpsertSponsorError
	}
	return m.FullRepository.UpsertSponsor(ctx, s)
}

func (m *Repository) AttachSponsor(ctx context.Context, showID, sponsorID int64, placement models.Placement, sortOrder int) error {
	if m.AttachSponsorError != nil {
		return m.AttachSponsorError
	}
	return m.FullRepository.AttachSponsor(ctx, showID, sponsorID, placement, sortOrder)
}

func (m *Repository) ListShowSponsors(ctx context.Context, showID int64) ([]models.ShowSponsor, error) {
	if m.ListShowSponsorsError != nil {
		return nil, m.ListShowSponsorsError
	}
	return m.FullRepository.ListShowSponsors(ctx, showID)
}

// ===== Attendee Methods =====

func (m *Repository) CreateAttendee(ctx context.Context, a models.Attendee, fields map[string]bool) (int64, error) {
	if m.CreateAttendeeError != nil {
		return 0, m.CreateAttendeeError
	}
	return m.FullRepository.CreateAttendee(ctx, a, fields)
}

func (m *Repository) ListAttendees(ctx context.Context, showID int64) ([]models.Attendee, error) {
	if m.ListAttendeesError != nil {
		return nil, m.ListAttendeesError
	}
	return m.FullRepository.ListAttendees(ctx, showID)
}

func (m *Repository) CreateDonation(ctx context.Context, d models.Donation) (int64, error) {
	if m.CreateDonationError != nil {
		return 0, m.CreateDonationError
	}
	return m.FullRepository.CreateDonation(ctx, d)
}

func (m *Repository) MarkDonationPaid(ctx context.Context, donationID int64, sessionID string, paidAt time.Time) (bool, error) {
	if m.MarkDonationPaidError != nil {
		return false, m.MarkDonationPaidError
	}
	return m.FullRepository.MarkDonationPaid(ctx, donationID, sessionID, paidAt)
}

var _ repository.FullRepository = (*Repository)(nil)
