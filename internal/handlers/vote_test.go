package handlers_test

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmankarshows/carshow/internal/handlers"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

func voteRequest(qty int) services.VoteCheckoutRequest {
	return services.VoteCheckoutRequest{ShowSlug: "spring-show", CarToken: "tok-1", CategorySlug: "army", Quantity: qty}
}

func TestVotePage(t *testing.T) {
	s := newTestServer(t, withOptions(handlers.Options{RequireBranchAttestation: true}))
	s.seedShow()

	rec := s.do(http.MethodGet, "/v/spring-show/tok-1/navy", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page handlers.VotePageResponse
	decode(t, rec, &page)
	assert.Equal(t, "Navy", page.Category.Name)
	assert.Equal(t, 1, page.Car.CarNumber)
	assert.Equal(t, int64(services.VotePriceCents), page.VotePriceCents)
	assert.Equal(t, 1, page.MinQuantity)
	assert.Equal(t, 50, page.MaxQuantity)
	assert.True(t, page.AttestationRequired)

	rec = s.do(http.MethodGet, "/v/spring-show/tok-1/peoples-choice", nil)
	decode(t, rec, &page)
	assert.False(t, page.AttestationRequired)
}

func TestVotePage_Errors(t *testing.T) {
	s := newTestServer(t)
	s.seedShow()

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown category", "/v/spring-show/tok-1/luftwaffe", http.StatusBadRequest, services.ErrInvalidCategory.Code},
		{"unknown car", "/v/spring-show/nope/army", http.StatusNotFound, services.ErrCarNotFound.Code},
		{"unknown show", "/v/fall-show/tok-1/army", http.StatusNotFound, services.ErrShowNotFound.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestVoteCheckout_ThenSuccessIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	s.seedShow()

	rec := s.do(http.MethodPost, "/api/checkout/vote", voteRequest(3))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var redirect services.CheckoutRedirect
	decode(t, rec, &redirect)
	require.NotEmpty(t, redirect.SessionID)
	assert.True(t, strings.HasSuffix(redirect.CheckoutURL, redirect.SessionID))

	successPath := "/success?session_id=" + redirect.SessionID
	var result services.ReconcileResult

	rec = s.do(http.MethodGet, successPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)
	assert.Equal(t, services.OutcomeNotPaid, result.Outcome)

	s.gateway.MarkPaid(redirect.SessionID)

	rec = s.do(http.MethodGet, successPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)
	assert.Equal(t, services.OutcomeCommitted, result.Outcome)
	assert.Equal(t, 1, result.CarNumber)
	assert.Equal(t, "spring-show", result.ShowSlug)

	rec = s.do(http.MethodGet, successPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &result)
	assert.Equal(t, services.OutcomeAlreadyRecorded, result.Outcome)

	cookie := s.login()
	rec = s.do(http.MethodGet, "/api/admin/leaderboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var board services.Leaderboard
	decode(t, rec, &board)
	assert.Equal(t, repository.LedgerStats{Entries: 1, Votes: 3, AmountCents: 300}, board.Stats)
}

func TestVoteCheckout_Rejections(t *testing.T) {
	s := newTestServer(t)
	show, _ := s.seedShow()

	rec := s.do(http.MethodPost, "/api/checkout/vote", voteRequest(0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrInvalidQuantity.Code, errorCode(t, rec))

	require.NoError(t, s.repo.SetVotingOpen(context.Background(), show.ID, false))
	rec = s.do(http.MethodPost, "/api/checkout/vote", voteRequest(2))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, services.ErrVotingClosed.Code, errorCode(t, rec))
	assert.Equal(t, 0, s.gateway.CreateCalls)
}

func TestVoteCheckout_GatewayDown(t *testing.T) {
	s := newTestServer(t, withGateway(checkout.WithCreateError(stderrors.New("connection refused"))))
	s.seedShow()

	rec := s.do(http.MethodPost, "/api/checkout/vote", voteRequest(2))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, handlers.ErrCodeGatewayUnavailable, errorCode(t, rec))
}

func TestVoteSuccess_Errors(t *testing.T) {
	s := newTestServer(t)
	s.seedShow()

	rec := s.do(http.MethodGet, "/success", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrMissingSession.Code, errorCode(t, rec))

	rec = s.do(http.MethodGet, "/success?session_id=cs_unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, services.ErrSessionNotFound.Code, errorCode(t, rec))
}

func TestVoteCheckout_RateLimited(t *testing.T) {
	s := newTestServer(t, withOptions(handlers.Options{RateLimit: 0.001, RateBurst: 2}))
	s.seedShow()

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/checkout/vote", voteRequest(1))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(http.MethodPost, "/api/checkout/vote", voteRequest(1))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, handlers.ErrCodeTooManyRequests, errorCode(t, rec))

	// Other routes are not limited.
	rec = s.do(http.MethodGet, "/api/shows/spring-show", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAttendAndDonate(t *testing.T) {
	s := newTestServer(t)
	s.seedShow()

	rec := s.do(http.MethodPost, "/api/attend/spring-show", services.AttendeeInput{FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var attendee handlers.AttendeeResponse
	decode(t, rec, &attendee)
	require.Positive(t, attendee.AttendeeID)

	rec = s.do(http.MethodPost, "/api/attend/donation-checkout", services.DonationRequest{ShowSlug: "spring-show", AttendeeID: attendee.AttendeeID, AmountDollars: "0"})
	require.Equal(t, http.StatusOK, rec.Code)
	var skipped services.DonationCheckout
	decode(t, rec, &skipped)
	assert.True(t, skipped.Skipped)

	rec = s.do(http.MethodPost, "/api/attend/donation-checkout", services.DonationRequest{ShowSlug: "spring-show", AttendeeID: attendee.AttendeeID, AmountDollars: "15"})
	require.Equal(t, http.StatusOK, rec.Code)
	var donation services.DonationCheckout
	decode(t, rec, &donation)
	require.NotEmpty(t, donation.CheckoutURL)
	sessionID := donation.CheckoutURL[strings.LastIndex(donation.CheckoutURL, "/")+1:]

	s.gateway.MarkPaid(sessionID)
	rec = s.do(http.MethodGet, "/donation-success?session_id="+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result services.DonationResult
	decode(t, rec, &result)
	assert.Equal(t, services.OutcomeCommitted, result.Outcome)
}

func TestAttend_Validation(t *testing.T) {
	s := newTestServer(t)
	s.seedShow()

	rec := s.do(http.MethodPost, "/api/attend/spring-show", services.AttendeeInput{FirstName: "Ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrAttendeeNameRequired.Code, errorCode(t, rec))

	rec = s.do(http.MethodPost, "/api/attend/donation-checkout", services.DonationRequest{ShowSlug: "spring-show", AttendeeID: 999, AmountDollars: "5"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, services.ErrAttendeeNotFound.Code, errorCode(t, rec))
}
