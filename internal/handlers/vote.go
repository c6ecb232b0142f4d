package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/services"
)

// handleVotePage returns what a voter needs to buy votes for one car in one
// category. The page is served even while voting is closed so the voter
// sees the show's state.
func (h *Handlers) handleVotePage(w http.ResponseWriter, r *http.Request) {
	show, err := h.showFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	category, ok := models.CategoryBySlug(chi.URLParam(r, "category"))
	if !ok {
		respondError(w, services.ErrInvalidCategory)
		return
	}
	car, err := h.Cars.PublicCar(r.Context(), show.ID, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondOK(w, VotePageResponse{
		Show:                showResponse(show),
		Car:                 *car,
		Category:            category,
		VotePriceCents:      services.VotePriceCents,
		MinQuantity:         services.MinVoteQuantity,
		MaxQuantity:         services.MaxVoteQuantity,
		AttestationRequired: h.opts.RequireBranchAttestation && category.Branch,
	})
}

// handleVoteCheckout opens a checkout session and returns its redirect URL.
func (h *Handlers) handleVoteCheckout(w http.ResponseWriter, r *http.Request) {
	var req services.VoteCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	redirect, err := h.Voting.InitiateVoteCheckout(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, redirect)
}

// handleVoteSuccess reconciles the session the provider redirected back with.
// Reloading the page is safe.
func (h *Handlers) handleVoteSuccess(w http.ResponseWriter, r *http.Request) {
	result, err := h.Voting.ReconcileCheckout(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}
