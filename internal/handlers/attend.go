package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karmankarshows/carshow/internal/services"
)

// handleAttend signs an attendee in at the gate.
func (h *Handlers) handleAttend(w http.ResponseWriter, r *http.Request) {
	var in services.AttendeeInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	slug := chi.URLParam(r, "slug")
	attendee, err := h.Attendees.Register(r.Context(), slug, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, AttendeeResponse{AttendeeID: attendee.ID, ShowSlug: slug})
}

// handleDonationCheckout starts a donation checkout, or records a skipped
// donation when the amount is zero.
func (h *Handlers) handleDonationCheckout(w http.ResponseWriter, r *http.Request) {
	var req services.DonationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	result, err := h.Attendees.InitiateDonation(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}

func (h *Handlers) handleDonationSuccess(w http.ResponseWriter, r *http.Request) {
	result, err := h.Attendees.ReconcileDonation(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, result)
}
