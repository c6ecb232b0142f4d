package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/config"
	"github.com/karmankarshows/carshow/internal/handlers"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/internal/websocket"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

const (
	countdownInterval = time.Second
	shutdownTimeout   = 10 * time.Second
)

// App holds all application dependencies
type App struct {
	log             logger.Logger
	cfg             *config.Config
	handlers        *handlers.Handlers
	repo            *repository.Repository
	gateway         checkout.Gateway
	show            *repository.ShowRecord
	baseURL         string
	cancelCountdown context.CancelFunc
}

// Option overrides a dependency, mainly for tests.
type Option func(*options)

type options struct {
	gateway checkout.Gateway
	network networkProvider
}

// WithGateway replaces the payment gateway chosen from config.
func WithGateway(g checkout.Gateway) Option {
	return func(o *options) { o.gateway = g }
}

func withNetwork(p networkProvider) Option {
	return func(o *options) { o.network = p }
}

// New creates and initializes a new application instance
func New(cfg *config.Config, log logger.Logger, adminAuth *auth.Auth, opts ...Option) (*App, error) {
	o := options{network: realNetworkProvider{}}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	deadline, err := cfg.VotingDeadline()
	if err != nil {
		return nil, err
	}

	repo, err := repository.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	baseURL := resolveBaseURL(cfg.Server.BaseURL, cfg.Server.Addr, o.network)
	if baseURL != strings.TrimRight(cfg.Server.BaseURL, "/") {
		log.Info("Base URL derived from LAN address", "url", baseURL)
	}

	gateway := o.gateway
	if gateway == nil {
		gateway = newGateway(cfg, log)
	}

	m := metrics.New()

	// Initialize services
	showService := services.NewShowService(log, repo)
	carService := services.NewCarService(log, repo, baseURL)
	votingService := services.NewVotingService(log, repo, showService, gateway, m, services.VotingOptions{
		BaseURL:                  baseURL,
		Currency:                 cfg.Stripe.Currency,
		RequireBranchAttestation: cfg.Voting.RequireBranchAttestation,
	})
	leaderboardService := services.NewLeaderboardService(log, repo)
	ledgerService := services.NewLedgerService(log, repo, showService, leaderboardService, m)
	sponsorService := services.NewSponsorService(log, repo)
	attendeeService := services.NewAttendeeService(log, repo, showService, gateway, m, baseURL)

	show, err := showService.EnsureDefaultShow(context.Background(), models.Show{
		Slug:              cfg.Show.Slug,
		Title:             cfg.Show.Title,
		Date:              cfg.Show.Date,
		Time:              cfg.Show.Time,
		LocationName:      cfg.Show.LocationName,
		Address:           cfg.Show.Address,
		Benefiting:        cfg.Show.Benefiting,
		SuggestedDonation: cfg.Show.SuggestedDonation,
		Description:       cfg.Show.Description,
	}, deadline)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to set up show %q: %w", cfg.Show.Slug, err)
	}

	// Initialize WebSocket hub with DI
	hub := websocket.New(log, showService)
	hub.Start()
	showService.SetBroadcaster(hub)
	votingService.SetBroadcaster(hub)

	// Start countdown with context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go hub.StartVotingCountdown(ctx, countdownInterval)

	h := handlers.New(handlers.Services{
		Shows:       showService,
		Cars:        carService,
		Voting:      votingService,
		Ledger:      ledgerService,
		Leaderboard: leaderboardService,
		Sponsors:    sponsorService,
		Attendees:   attendeeService,
	}, gateway, adminAuth, hub, m, log, handlers.Options{
		RateLimit:                rate.Limit(cfg.RateLimit.PerSecond),
		RateBurst:                cfg.RateLimit.Burst,
		RequestTimeout:           cfg.Server.RequestTimeout,
		TrustProxy:               cfg.Server.TrustProxy,
		RequireBranchAttestation: cfg.Voting.RequireBranchAttestation,
		Location:                 loc,
	})

	return &App{
		log:             log,
		cfg:             cfg,
		handlers:        h,
		repo:            repo,
		gateway:         gateway,
		show:            show,
		baseURL:         baseURL,
		cancelCountdown: cancel,
	}, nil
}

// newGateway returns the Stripe gateway, or an auto-paying mock when no
// secret key is configured.
func newGateway(cfg *config.Config, log logger.Logger) checkout.Gateway {
	if cfg.StripeEnabled() {
		return checkout.NewStripeGateway(checkout.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			APIURL:        cfg.Stripe.APIURL,
		}, log)
	}
	log.Warn("STRIPE_SECRET_KEY is not set: running with the mock gateway, every checkout is paid without charging anyone")
	return checkout.NewMockGateway(checkout.WithAutoPay())
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// BaseURL is the public URL printed on cards and sent to the gateway.
func (a *App) BaseURL() string {
	return a.baseURL
}

// Close performs graceful shutdown of app resources
func (a *App) Close() {
	if a.cancelCountdown != nil {
		a.cancelCountdown()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info("Server starting", "addr", srv.Addr, "url", a.baseURL, "show", a.show.Slug, "voting_open", a.show.VotingOpen)
	a.log.Info("Admin API", "url", a.baseURL+"/api/admin")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// resolveBaseURL keeps a configured base URL unless it is empty or points at
// localhost, which phones scanning a QR code cannot reach.
func resolveBaseURL(configured, addr string, provider networkProvider) string {
	configured = strings.TrimRight(strings.TrimSpace(configured), "/")
	if configured != "" && !strings.Contains(configured, "localhost") {
		return configured
	}
	port := "8080"
	if _, p, err := net.SplitHostPort(addr); err == nil && p != "" {
		port = p
	}
	return fmt.Sprintf("http://%s:%s", getPreferredIP(provider), port)
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider lists network interfaces.
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IPv4 address for LAN access, preferring
// private ranges, or "localhost" when there is none.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String()
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}
