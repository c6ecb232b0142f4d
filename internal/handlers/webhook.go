package handlers

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

const maxWebhookBody = 64 * 1024

// handleStripeWebhook verifies a provider event and reconciles completed
// checkout sessions. Events that do not concern us are acknowledged so the
// provider stops retrying them. Failures return 5xx so it retries.
func (h *Handlers) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, BadRequest("Could not read webhook body"))
		return
	}

	event, err := h.Gateway.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if stderrors.Is(err, checkout.ErrInvalidSignature) {
			h.Log.Warn("Webhook signature rejected", "error", err)
			respondError(w, NewAPIError(http.StatusBadRequest, ErrCodeInvalidSignature, "Invalid webhook signature"))
			return
		}
		respondError(w, BadRequest("Malformed webhook event"))
		return
	}

	if event.Type != checkout.EventSessionCompleted && event.Type != checkout.EventSessionAsyncPaymentSuccess {
		h.Log.Debug("Webhook event ignored", "event_id", event.ID, "type", event.Type)
		respondOK(w, map[string]bool{"received": true})
		return
	}
	if event.Session == nil {
		respondOK(w, map[string]bool{"received": true})
		return
	}

	var result interface{}
	if event.Session.Metadata[services.MetaPurpose] == services.PurposeDonation {
		result, err = h.Attendees.ReconcileDonationSession(r.Context(), event.Session)
	} else {
		result, err = h.Voting.ReconcileSession(r.Context(), event.Session)
	}
	if err != nil {
		h.Log.Error("Webhook reconciliation failed", "event_id", event.ID, "session_id", event.Session.ID, "error", err)
		respondError(w, err)
		return
	}
	respondOK(w, result)
}
