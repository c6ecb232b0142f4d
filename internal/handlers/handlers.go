package handlers

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/internal/websocket"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

// Services groups the service layer the handlers call into.
type Services struct {
	Shows       services.ShowServicer
	Cars        services.CarServicer
	Voting      services.VotingServicer
	Ledger      services.LedgerServicer
	Leaderboard services.LeaderboardServicer
	Sponsors    services.SponsorServicer
	Attendees   services.AttendeeServicer
}

// Options tunes request handling.
type Options struct {
	// RateLimit and RateBurst bound checkout and login requests per client IP.
	// Login has its own buckets. A zero RateLimit disables limiting.
	RateLimit rate.Limit
	RateBurst int
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a reverse proxy that overwrites those headers.
	TrustProxy               bool
	RequestTimeout           time.Duration
	RequireBranchAttestation bool
	// Location interprets admin deadlines given without a zone.
	Location *time.Location
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Shows        services.ShowServicer
	Cars         services.CarServicer
	Voting       services.VotingServicer
	Ledger       services.LedgerServicer
	Leaderboard  services.LeaderboardServicer
	Sponsors     services.SponsorServicer
	Attendees    services.AttendeeServicer
	Gateway      checkout.Gateway
	Auth         *auth.Auth
	Hub          *websocket.Hub
	Metrics      *metrics.Metrics
	Log          logger.Logger
	limiter      *IPRateLimiter
	loginLimiter *IPRateLimiter
	opts         Options
}

// New creates a new Handlers instance with all dependencies
func New(
	svc Services,
	gateway checkout.Gateway,
	adminAuth *auth.Auth,
	hub *websocket.Hub,
	m *metrics.Metrics,
	log logger.Logger,
	opts Options,
) *Handlers {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	h := &Handlers{
		Shows:       svc.Shows,
		Cars:        svc.Cars,
		Voting:      svc.Voting,
		Ledger:      svc.Ledger,
		Leaderboard: svc.Leaderboard,
		Sponsors:    svc.Sponsors,
		Attendees:   svc.Attendees,
		Gateway:     gateway,
		Auth:        adminAuth,
		Hub:         hub,
		Metrics:     m,
		Log:         log,
		opts:        opts,
	}
	if opts.RateLimit > 0 {
		h.limiter = NewIPRateLimiter(opts.RateLimit, opts.RateBurst)
		h.loginLimiter = NewIPRateLimiter(opts.RateLimit, opts.RateBurst)
	}
	return h
}

// NewForTesting creates a Handlers instance with a known admin password,
// no websocket hub and no rate limiting.
func NewForTesting(svc Services, gateway checkout.Gateway) *Handlers {
	return New(svc, gateway, auth.New("test-password"), nil, nil, logger.Discard(), Options{})
}
