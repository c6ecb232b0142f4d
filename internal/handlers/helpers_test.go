package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/handlers"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/internal/testutil"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

const (
	testBaseURL  = "http://show.test"
	testPassword = "test-password"
)

// testServer is the full router over real services, an in-memory store and
// a mock gateway.
type testServer struct {
	t       *testing.T
	repo    *repository.Repository
	gateway *checkout.MockGateway
	h       *handlers.Handlers
	router  http.Handler
}

type serverOption func(*serverConfig)

type serverConfig struct {
	opts    handlers.Options
	gateway []checkout.MockOption
}

func withOptions(opts handlers.Options) serverOption {
	return func(c *serverConfig) { c.opts = opts }
}

func withGateway(opts ...checkout.MockOption) serverOption {
	return func(c *serverConfig) { c.gateway = append(c.gateway, opts...) }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	repo := testutil.NewTestRepository(t)
	gateway := checkout.NewMockGateway(cfg.gateway...)
	m := metrics.New()
	log := logger.Discard()

	shows := services.NewShowService(log, repo)
	board := services.NewLeaderboardService(log, repo)
	svc := handlers.Services{
		Shows:       shows,
		Cars:        services.NewCarService(log, repo, testBaseURL),
		Voting:      services.NewVotingService(log, repo, shows, gateway, m, services.VotingOptions{BaseURL: testBaseURL, RequireBranchAttestation: cfg.opts.RequireBranchAttestation}),
		Ledger:      services.NewLedgerService(log, repo, shows, board, m),
		Leaderboard: board,
		Sponsors:    services.NewSponsorService(log, repo),
		Attendees:   services.NewAttendeeService(log, repo, shows, gateway, m, testBaseURL),
	}

	h := handlers.New(svc, gateway, auth.New(testPassword), nil, m, log, cfg.opts)
	return &testServer{t: t, repo: repo, gateway: gateway, h: h, router: h.Router()}
}

// seedShow creates the active "spring-show" with voting open and car #1.
func (s *testServer) seedShow() (*repository.ShowRecord, *models.Car) {
	s.t.Helper()
	show := testutil.SeedShow(s.t, s.repo, "spring-show", true)
	car := testutil.SeedCar(s.t, s.repo, show.ID, 1, "tok-1")
	return show, car
}

// do sends a request through the router. body may be nil, a string, or a
// value encoded as JSON.
func (s *testServer) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// login returns an admin session cookie.
func (s *testServer) login() *http.Cookie {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/admin/login", handlers.LoginRequest{Password: testPassword})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	s.t.Fatal("login did not set a session cookie")
	return nil
}

// webhook posts a mock-signed event carrying session.
func (s *testServer) webhook(eventType string, session *checkout.Session) *httptest.ResponseRecorder {
	s.t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_test",
		"type": eventType,
		"data": map[string]interface{}{"object": session},
	})
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", checkout.MockSignature)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) resolve(id string) *checkout.Session {
	s.t.Helper()
	sess, err := s.gateway.ResolveSession(context.Background(), id)
	require.NoError(s.t, err)
	return sess
}

// decode unmarshals a JSON response body.
func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

// errorCode returns the code of a JSON error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var apiErr handlers.APIError
	decode(t, rec, &apiErr)
	return apiErr.Code
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
