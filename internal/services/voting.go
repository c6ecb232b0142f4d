package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/karmankarshows/carshow/internal/errors"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

// Vote pricing and limits.
const (
	VotePriceCents  = 100
	MinVoteQuantity = 1
	MaxVoteQuantity = 50
)

// Checkout metadata keys.
const (
	MetaShowID     = "show_id"
	MetaCarID      = "car_id"
	MetaCategory   = "category"
	MetaQuantity   = "vote_qty"
	MetaPurpose    = "purpose"
	MetaDonationID = "donation_id"
	MetaShowSlug   = "show_slug"

	// metaLegacyCarID is the car key used by sessions created before car_id.
	metaLegacyCarID = "show_car_id"
)

// Checkout purposes.
const (
	PurposeVote     = "vote"
	PurposeDonation = "donation"
)

// Outcome is the result of reconciling a checkout session.
type Outcome string

const (
	OutcomeCommitted       Outcome = "committed"
	OutcomeAlreadyRecorded Outcome = "already-recorded"
	OutcomeNotPaid         Outcome = "not-paid"
)

// VotingServiceRepository defines the repository methods needed by VotingService
type VotingServiceRepository interface {
	repository.CarRepository
	repository.LedgerRepository
	GetShow(ctx context.Context, id int64) (*repository.ShowRecord, error)
}

// VotingOptions configures checkout URLs and policy.
type VotingOptions struct {
	BaseURL                  string
	Currency                 string
	RequireBranchAttestation bool
}

// VotingService starts vote checkouts and turns paid sessions into ledger entries
type VotingService struct {
	log         logger.Logger
	repo        VotingServiceRepository
	shows       *ShowService
	gateway     checkout.Gateway
	metrics     *metrics.Metrics
	broadcaster Broadcaster
	opts        VotingOptions
}

// NewVotingService creates a new VotingService
func NewVotingService(log logger.Logger, repo VotingServiceRepository, shows *ShowService, gateway checkout.Gateway, m *metrics.Metrics, opts VotingOptions) *VotingService {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &VotingService{
		log:     log,
		repo:    repo,
		shows:   shows,
		gateway: gateway,
		metrics: m,
		opts:    opts,
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *VotingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// VoteCheckoutRequest is a voter's purchase of votes for one car in one category.
type VoteCheckoutRequest struct {
	ShowSlug     string `json:"show_slug"`
	CarToken     string `json:"car_token"`
	CategorySlug string `json:"category_slug"`
	Quantity     int    `json:"vote_qty"`
	Attested     bool   `json:"attested"`
}

// CheckoutRedirect is where the voter goes to pay.
type CheckoutRedirect struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// ReconcileResult describes what reconciliation did with a session.
type ReconcileResult struct {
	Outcome   Outcome             `json:"outcome"`
	Entry     *models.LedgerEntry `json:"entry,omitempty"`
	CarNumber int                 `json:"car_number,omitempty"`
	ShowSlug  string              `json:"show_slug,omitempty"`
}

// InitiateVoteCheckout validates a vote purchase and opens a checkout session.
// All checks run before the gateway is called; nothing is written to the ledger.
func (s *VotingService) InitiateVoteCheckout(ctx context.Context, req VoteCheckoutRequest) (*CheckoutRedirect, error) {
	show, err := s.shows.ShowBySlug(ctx, strings.TrimSpace(req.ShowSlug))
	if err != nil && err != ErrShowNotFound {
		return nil, err
	}
	if show == nil || !show.VotingOpen {
		s.metrics.CheckoutStarted("voting_closed")
		return nil, ErrVotingClosed
	}

	category, ok := models.CategoryBySlug(strings.TrimSpace(req.CategorySlug))
	if !ok {
		s.metrics.CheckoutStarted("invalid_category")
		return nil, ErrInvalidCategory
	}

	token := strings.TrimSpace(req.CarToken)
	if token == "" {
		s.metrics.CheckoutStarted("car_not_found")
		return nil, ErrCarNotFound
	}
	car, err := s.repo.GetCarByToken(ctx, show.ID, token)
	if stderrors.Is(err, repository.ErrNotFound) {
		s.metrics.CheckoutStarted("car_not_found")
		return nil, ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}

	if req.Quantity < MinVoteQuantity || req.Quantity > MaxVoteQuantity {
		s.metrics.CheckoutStarted("invalid_quantity")
		return nil, ErrInvalidQuantity
	}

	if s.opts.RequireBranchAttestation && category.Branch && !req.Attested {
		s.metrics.CheckoutStarted("attestation_required")
		return nil, ErrAttestationRequired
	}

	params := checkout.SessionParams{
		ProductName:     fmt.Sprintf("Vote – %s (Car #%d)", category.Name, car.CarNumber),
		UnitAmountCents: VotePriceCents,
		Quantity:        int64(req.Quantity),
		Currency:        s.opts.Currency,
		SuccessURL:      checkout.SuccessURL(s.opts.BaseURL, "/success"),
		CancelURL: fmt.Sprintf("%s/v/%s/%s/%s", s.opts.BaseURL,
			url.PathEscape(show.Slug), url.PathEscape(car.Token), category.Slug),
		Metadata: map[string]string{
			MetaShowID:   strconv.FormatInt(show.ID, 10),
			MetaCarID:    strconv.FormatInt(car.ID, 10),
			MetaCategory: category.Name,
			MetaQuantity: strconv.Itoa(req.Quantity),
			MetaPurpose:  PurposeVote,
		},
	}

	session, err := s.gateway.CreateSession(ctx, params)
	if err != nil {
		s.metrics.CheckoutStarted("gateway_error")
		s.log.Warn("Checkout session creation failed", "show", show.Slug, "car_number", car.CarNumber, "error", err)
		return nil, gatewayError("failed to create checkout session", err)
	}

	s.metrics.CheckoutStarted("created")
	s.log.Info("Checkout session created", "session_id", session.ID, "show", show.Slug,
		"car_number", car.CarNumber, "category", category.Name, "vote_qty", req.Quantity)
	return &CheckoutRedirect{SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// ReconcileCheckout resolves a session with the gateway and records its votes
// if paid. Repeated or concurrent calls for one session write at most one entry.
func (s *VotingService) ReconcileCheckout(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	session, err := s.gateway.ResolveSession(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, checkout.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		s.log.Warn("Checkout session lookup failed", "session_id", sessionID, "error", err)
		return nil, gatewayError("failed to resolve checkout session", err)
	}
	return s.ReconcileSession(ctx, session)
}

// ReconcileSession records an already-resolved session, as delivered by a
// verified webhook.
func (s *VotingService) ReconcileSession(ctx context.Context, session *checkout.Session) (*ReconcileResult, error) {
	if !session.Paid() {
		s.metrics.Reconciled(string(OutcomeNotPaid))
		s.log.Info("Checkout session not paid", "session_id", session.ID, "status", session.PaymentStatus)
		return &ReconcileResult{Outcome: OutcomeNotPaid}, nil
	}

	entry, car, err := s.entryFromSession(ctx, session)
	if err != nil {
		if errors.Is(err, errors.ErrIntegrity) {
			s.metrics.Reconciled("integrity_error")
			s.log.Error("Paid checkout has unusable metadata", "session_id", session.ID, "error", err)
		}
		return nil, err
	}

	expected := int64(entry.Quantity) * VotePriceCents
	if session.AmountTotal != expected {
		s.log.Warn("Paid amount does not match vote quantity", "session_id", session.ID,
			"amount_total", session.AmountTotal, "expected", expected)
	}

	inserted, err := s.repo.InsertLedgerEntry(ctx, *entry)
	if err != nil {
		s.log.Error("Failed to record paid votes", "session_id", session.ID, "error", err)
		return nil, err
	}

	result := &ReconcileResult{CarNumber: car.CarNumber}
	if show, err := s.repo.GetShow(ctx, entry.ShowID); err == nil {
		result.ShowSlug = show.Slug
	}

	if !inserted {
		s.metrics.Reconciled(string(OutcomeAlreadyRecorded))
		s.log.Info("Checkout session already recorded", "session_id", session.ID)
		existing, err := s.repo.GetLedgerEntryBySession(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		result.Outcome = OutcomeAlreadyRecorded
		result.Entry = existing
		return result, nil
	}

	s.metrics.Reconciled(string(OutcomeCommitted))
	s.metrics.VotesCommitted(entry.Category, entry.Quantity)
	s.log.Info("Votes recorded", "session_id", session.ID, "show_id", entry.ShowID,
		"car_number", car.CarNumber, "category", entry.Category, "vote_qty", entry.Quantity,
		"amount_cents", entry.AmountCents)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastVoteRecorded(VoteRecorded{
			ShowSlug:  result.ShowSlug,
			Category:  entry.Category,
			CarNumber: car.CarNumber,
			Quantity:  entry.Quantity,
		})
	}

	committed, err := s.repo.GetLedgerEntryBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	result.Outcome = OutcomeCommitted
	result.Entry = committed
	return result, nil
}

// entryFromSession validates paid-session metadata. Any missing or malformed
// field is an integrity error; nothing is defaulted.
func (s *VotingService) entryFromSession(ctx context.Context, session *checkout.Session) (*models.LedgerEntry, *models.Car, error) {
	md := session.Metadata
	if purpose := md[MetaPurpose]; purpose != "" && purpose != PurposeVote {
		return nil, nil, errors.Integrityf("session %s has purpose %q, not a vote", session.ID, purpose)
	}

	showID, err := positiveID(md, MetaShowID)
	if err != nil {
		return nil, nil, errors.Integrityf("session %s: %v", session.ID, err)
	}
	carKey := MetaCarID
	if _, ok := md[carKey]; !ok {
		carKey = metaLegacyCarID
	}
	carID, err := positiveID(md, carKey)
	if err != nil {
		return nil, nil, errors.Integrityf("session %s: %v", session.ID, err)
	}
	category, ok := models.CategoryByName(md[MetaCategory])
	if !ok {
		return nil, nil, errors.Integrityf("session %s: unknown category %q", session.ID, md[MetaCategory])
	}
	qty, err := strconv.Atoi(md[MetaQuantity])
	if err != nil || qty < MinVoteQuantity || qty > MaxVoteQuantity {
		return nil, nil, errors.Integrityf("session %s: invalid %s %q", session.ID, MetaQuantity, md[MetaQuantity])
	}

	car, err := s.repo.GetCar(ctx, carID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil, errors.Integrityf("session %s: car %d does not exist", session.ID, carID)
	}
	if err != nil {
		return nil, nil, err
	}
	if car.ShowID != showID {
		return nil, nil, errors.Integrityf("session %s: car %d does not belong to show %d", session.ID, carID, showID)
	}

	return &models.LedgerEntry{
		ShowID:      showID,
		CarID:       carID,
		Category:    category.Name,
		Quantity:    qty,
		AmountCents: session.AmountTotal,
		SessionID:   session.ID,
	}, car, nil
}

func positiveID(md map[string]string, key string) (int64, error) {
	raw, ok := md[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("missing %s", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return id, nil
}

func gatewayError(msg string, err error) error {
	return errors.Unavailable(msg, err)
}
