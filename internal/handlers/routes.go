package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if h.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	// WebSocket sits outside the timeout so connections stay open.
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	// Payment provider callbacks
	r.Post("/webhooks/stripe", h.handleStripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.opts.RequestTimeout))

		r.Get("/health", h.handleHealth)

		// Shows (public)
		r.Get("/api/shows/active", h.handleActiveShow)
		r.Get("/api/shows/{slug}", h.handleGetShow)
		r.Get("/api/shows/{slug}/status", h.handleVotingStatus)
		r.Get("/api/shows/{slug}/cars", h.handleListPublicCars)
		r.Get("/api/shows/{slug}/sponsors", h.handleShowSponsors)

		// Registration and check-in (public)
		r.Post("/api/register", h.handleRegisterCar)
		r.Get("/checkin/{slug}/{token}", h.handleGetCheckIn)
		r.Get("/api/checkin/{slug}/{token}", h.handleGetCheckIn)
		r.Post("/api/checkin/{slug}/{token}", h.handleCheckIn)

		// Voting (public)
		r.Get("/v/{slug}/{token}/{category}", h.handleVotePage)
		r.With(h.rateLimited).Post("/api/checkout/vote", h.handleVoteCheckout)
		r.Get("/success", h.handleVoteSuccess)

		// Attendees and donations (public)
		r.Post("/api/attend/{slug}", h.handleAttend)
		r.With(h.rateLimited).Post("/api/attend/donation-checkout", h.handleDonationCheckout)
		r.Get("/donation-success", h.handleDonationSuccess)

		// Auth
		r.With(h.loginRateLimited).Post("/api/admin/login", h.handleLogin)
		r.Post("/api/admin/logout", h.handleLogout)

		// Admin API (protected)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)

			r.Get("/api/admin/session", h.handleSession)
			r.Get("/api/admin/summary", h.handleSummary)
			r.Get("/api/admin/attendees", h.handleListAttendees)

			// Voting control
			r.Post("/api/admin/voting-control", h.handleSetVotingStatus)
			r.Post("/api/admin/voting-toggle", h.handleToggleVoting)
			r.Post("/api/admin/voting-deadline", h.handleSetVotingDeadline)

			// Results
			r.Get("/api/admin/leaderboard", h.handleLeaderboard)
			r.Get("/api/admin/leaderboard.png", h.handleLeaderboardChart)

			// Ledger
			r.Get("/api/admin/export-votes.csv", h.handleExportCSV)
			r.Get("/api/admin/export-votes.xlsx", h.handleExportXLSX)
			r.Get("/api/admin/export-snapshot.zip", h.handleExportSnapshot)
			r.Post("/api/admin/close-and-export", h.handleCloseAndExport)
			r.Post("/api/admin/reset-votes", h.handleResetVotes)

			// Cars
			r.Get("/api/admin/cars", h.handleListCars)
			r.Get("/api/admin/placeholders", h.handleListPlaceholders)
			r.Post("/api/admin/placeholders", h.handleCreatePlaceholders)
			r.Post("/api/admin/waiver-received", h.handleWaiverReceived)
			r.Get("/api/admin/qr/{token}", h.handleQRCode)

			// Sponsors
			r.Get("/api/admin/sponsors", h.handleListSponsors)
			r.Post("/api/admin/sponsors", h.handleAddSponsor)
			r.Delete("/api/admin/sponsors/{id}", h.handleRemoveSponsor)

			r.Handle("/metrics", h.Metrics.Handler())
		})
	})

	return r
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]string{"status": "ok"})
}
