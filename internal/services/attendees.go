package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/karmankarshows/carshow/internal/errors"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

// Consent shown next to the attendee opt-in boxes.
const (
	ConsentText = "By selecting these options, you agree Karman Kar Shows & Events may contact you about the event and, " +
		"if selected, share sponsor offers. Msg/data rates may apply. Opt out anytime."
	ConsentVersion = "2026-02-24"
)

// maxDonationCents caps a single gate donation.
const maxDonationCents = 1_000_000

// trackedFields are the optional attendee fields whose fill rate is counted.
var trackedFields = []string{"phone", "email"}

// AttendeeServiceRepository defines the repository methods needed by AttendeeService
type AttendeeServiceRepository interface {
	repository.AttendeeRepository
	GetShow(ctx context.Context, id int64) (*repository.ShowRecord, error)
}

// AttendeeService handles gate sign-ins and optional donations
type AttendeeService struct {
	log     logger.Logger
	repo    AttendeeServiceRepository
	shows   *ShowService
	gateway checkout.Gateway
	metrics *metrics.Metrics
	baseURL string
	clock   func() time.Time
}

// NewAttendeeService creates a new AttendeeService
func NewAttendeeService(log logger.Logger, repo AttendeeServiceRepository, shows *ShowService, gateway checkout.Gateway, m *metrics.Metrics, baseURL string) *AttendeeService {
	return &AttendeeService{
		log:     log,
		repo:    repo,
		shows:   shows,
		gateway: gateway,
		metrics: m,
		baseURL: strings.TrimRight(baseURL, "/"),
		clock:   time.Now,
	}
}

// AttendeeInput is the gate sign-in form.
type AttendeeInput struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Zip          string `json:"zip"`
	SponsorOptIn bool   `json:"sponsor_opt_in"`
	UpdatesOptIn bool   `json:"updates_opt_in"`
}

// DonationRequest is an attendee's donation choice. AmountDollars may be
// fractional; zero or less records a skipped donation.
type DonationRequest struct {
	ShowSlug      string `json:"show_slug"`
	AttendeeID    int64  `json:"attendee_id"`
	AmountDollars string `json:"amount_dollars"`
}

// DonationCheckout is the result of a donation request.
type DonationCheckout struct {
	DonationID  int64  `json:"donation_id"`
	Skipped     bool   `json:"skipped"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// DonationResult is the outcome of reconciling a donation session.
type DonationResult struct {
	Outcome  Outcome          `json:"outcome"`
	Donation *models.Donation `json:"donation,omitempty"`
	ShowSlug string           `json:"show_slug,omitempty"`
}

// Register records an attendee with the current consent text.
func (s *AttendeeService) Register(ctx context.Context, showSlug string, in AttendeeInput) (*models.Attendee, error) {
	show, err := s.shows.ShowBySlug(ctx, showSlug)
	if err != nil {
		return nil, err
	}
	a := models.Attendee{
		ShowID:         show.ID,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Phone:          strings.TrimSpace(in.Phone),
		Email:          strings.TrimSpace(in.Email),
		Zip:            strings.TrimSpace(in.Zip),
		SponsorOptIn:   in.SponsorOptIn,
		UpdatesOptIn:   in.UpdatesOptIn,
		ConsentText:    ConsentText,
		ConsentVersion: ConsentVersion,
	}
	if a.FirstName == "" || a.LastName == "" {
		return nil, ErrAttendeeNameRequired
	}

	fields := make(map[string]bool, len(trackedFields))
	fields["phone"] = a.Phone != ""
	fields["email"] = a.Email != ""

	id, err := s.repo.CreateAttendee(ctx, a, fields)
	if err != nil {
		return nil, err
	}
	s.log.Info("Attendee signed in", "show", show.Slug, "attendee_id", id)
	return s.repo.GetAttendee(ctx, id)
}

// InitiateDonation records the donation and, for a positive amount, opens a
// checkout session for it.
func (s *AttendeeService) InitiateDonation(ctx context.Context, req DonationRequest) (*DonationCheckout, error) {
	show, err := s.shows.ShowBySlug(ctx, strings.TrimSpace(req.ShowSlug))
	if err != nil {
		return nil, err
	}
	attendee, err := s.repo.GetAttendee(ctx, req.AttendeeID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrAttendeeNotFound
	}
	if err != nil {
		return nil, err
	}
	if attendee.ShowID != show.ID {
		return nil, ErrAttendeeNotFound
	}

	cents, err := parseDollars(req.AmountDollars)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	doneURL := fmt.Sprintf("%s/attend/%s/done", s.baseURL, url.PathEscape(show.Slug))

	if cents == 0 {
		id, err := s.repo.CreateDonation(ctx, models.Donation{ShowID: show.ID, AttendeeID: attendee.ID, Status: models.DonationSkipped})
		if err != nil {
			return nil, err
		}
		s.metrics.Donation("skipped")
		return &DonationCheckout{DonationID: id, Skipped: true, RedirectURL: doneURL}, nil
	}

	id, err := s.repo.CreateDonation(ctx, models.Donation{ShowID: show.ID, AttendeeID: attendee.ID, AmountCents: cents, Status: models.DonationPending})
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, checkout.SessionParams{
		ProductName:     fmt.Sprintf("Donation – %s", show.Title),
		UnitAmountCents: cents,
		Quantity:        1,
		SuccessURL:      checkout.SuccessURL(s.baseURL, "/donation-success"),
		CancelURL:       fmt.Sprintf("%s/attend/%s/donate/%d", s.baseURL, url.PathEscape(show.Slug), attendee.ID),
		Metadata: map[string]string{
			MetaShowID:     strconv.FormatInt(show.ID, 10),
			MetaDonationID: strconv.FormatInt(id, 10),
			MetaShowSlug:   show.Slug,
			MetaPurpose:    PurposeDonation,
		},
	})
	if err != nil {
		s.metrics.Donation("gateway_error")
		s.log.Warn("Donation checkout failed", "donation_id", id, "error", err)
		return nil, gatewayError("failed to create donation checkout", err)
	}
	if err := s.repo.SetDonationSession(ctx, id, session.ID); err != nil {
		return nil, err
	}
	s.metrics.Donation("started")
	s.log.Info("Donation checkout created", "donation_id", id, "session_id", session.ID, "amount_cents", cents)
	return &DonationCheckout{DonationID: id, CheckoutURL: session.URL}, nil
}

// ReconcileDonation resolves a donation session and marks it paid once.
func (s *AttendeeService) ReconcileDonation(ctx context.Context, sessionID string) (*DonationResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	session, err := s.gateway.ResolveSession(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, checkout.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, gatewayError("failed to resolve donation session", err)
	}
	return s.ReconcileDonationSession(ctx, session)
}

// ReconcileDonationSession records an already-resolved donation session.
func (s *AttendeeService) ReconcileDonationSession(ctx context.Context, session *checkout.Session) (*DonationResult, error) {
	result := &DonationResult{ShowSlug: session.Metadata[MetaShowSlug]}
	if !session.Paid() {
		result.Outcome = OutcomeNotPaid
		return result, nil
	}

	donationID, err := positiveID(session.Metadata, MetaDonationID)
	if err != nil {
		s.metrics.Donation("integrity_error")
		s.log.Error("Paid donation has unusable metadata", "session_id", session.ID, "error", err)
		return nil, errors.Integrityf("session %s: %v", session.ID, err)
	}

	marked, err := s.repo.MarkDonationPaid(ctx, donationID, session.ID, s.clock())
	if stderrors.Is(err, repository.ErrDuplicate) {
		s.metrics.Donation("integrity_error")
		return nil, errors.Integrityf("session %s is already attached to another donation", session.ID)
	}
	if err != nil {
		return nil, err
	}
	donation, err := s.repo.GetDonation(ctx, donationID)
	if stderrors.Is(err, repository.ErrNotFound) {
		s.metrics.Donation("integrity_error")
		return nil, errors.Integrityf("session %s: donation %d does not exist", session.ID, donationID)
	}
	if err != nil {
		return nil, err
	}
	result.Donation = donation

	if result.ShowSlug == "" {
		if show, err := s.repo.GetShow(ctx, donation.ShowID); err == nil {
			result.ShowSlug = show.Slug
		}
	}

	if !marked {
		result.Outcome = OutcomeAlreadyRecorded
		return result, nil
	}
	s.metrics.Donation("paid")
	s.log.Info("Donation paid", "donation_id", donationID, "session_id", session.ID, "amount_cents", donation.AmountCents)
	result.Outcome = OutcomeCommitted
	return result, nil
}

// ListAttendees returns every sign-in for the show.
func (s *AttendeeService) ListAttendees(ctx context.Context, showID int64) ([]models.Attendee, error) {
	return s.repo.ListAttendees(ctx, showID)
}

// FieldMetrics returns fill rates for the optional attendee fields.
func (s *AttendeeService) FieldMetrics(ctx context.Context, showID int64) ([]models.FieldMetric, error) {
	return s.repo.FieldMetrics(ctx, showID)
}

// DonationSummary totals paid donations for a show.
type DonationSummary struct {
	Count       int   `json:"count"`
	AmountCents int64 `json:"amount_cents"`
}

// DonationTotals sums paid donations.
func (s *AttendeeService) DonationTotals(ctx context.Context, showID int64) (*DonationSummary, error) {
	count, amount, err := s.repo.DonationTotals(ctx, showID)
	if err != nil {
		return nil, err
	}
	return &DonationSummary{Count: count, AmountCents: amount}, nil
}

// parseDollars converts a dollar string to cents. Blank, unparseable and
// negative amounts are treated as no donation.
func parseDollars(raw string) (int64, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "$")
	if raw == "" {
		return 0, nil
	}
	dollars, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0, nil
	}
	if dollars <= 0 {
		return 0, nil
	}
	cents := int64(math.Round(dollars * 100))
	if cents > maxDonationCents {
		return 0, fmt.Errorf("amount %s exceeds limit", raw)
	}
	return cents, nil
}
