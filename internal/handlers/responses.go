package handlers

import (
	"time"

	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
)

// ShowResponse is the public view of a show.
type ShowResponse struct {
	models.Show
	VotingEndsAt *time.Time `json:"voting_ends_at,omitempty"`
}

func showResponse(rec *repository.ShowRecord) ShowResponse {
	return ShowResponse{Show: rec.Show, VotingEndsAt: rec.VotingEndsAt}
}

// VotePageResponse is everything the vote page for one car and category needs.
type VotePageResponse struct {
	Show                ShowResponse       `json:"show"`
	Car                 services.PublicCar `json:"car"`
	Category            models.Category    `json:"category"`
	VotePriceCents      int64              `json:"vote_price_cents"`
	MinQuantity         int                `json:"min_qty"`
	MaxQuantity         int                `json:"max_qty"`
	AttestationRequired bool               `json:"attestation_required"`
}

// CheckInResponse describes a card for the check-in form.
type CheckInResponse struct {
	Show        ShowResponse       `json:"show"`
	Car         services.PublicCar `json:"car"`
	Placeholder bool               `json:"placeholder"`
}

// AttendeeResponse is returned after a gate sign-in. The client posts the
// attendee id back with the donation choice.
type AttendeeResponse struct {
	AttendeeID int64  `json:"attendee_id"`
	ShowSlug   string `json:"show_slug"`
}

// VotingStatusResponse is the response for voting status changes
type VotingStatusResponse struct {
	Open   bool       `json:"open"`
	EndsAt *time.Time `json:"ends_at,omitempty"`
}

// SponsorResponse is returned when a sponsor is added.
type SponsorResponse struct {
	ID int64 `json:"id"`
}

// PlaceholderResponse reports how many cards were created.
type PlaceholderResponse struct {
	Created int `json:"created"`
}

// PlaceholderCard is one printable card.
type PlaceholderCard struct {
	CarID       int64              `json:"car_id"`
	Placeholder bool               `json:"placeholder"`
	Links       services.VoteLinks `json:"links"`
}

// AdminSummaryResponse is the admin dashboard summary.
type AdminSummaryResponse struct {
	Show         ShowResponse              `json:"show"`
	Ledger       repository.LedgerStats    `json:"ledger"`
	Donations    *services.DonationSummary `json:"donations"`
	Fields       []models.FieldMetric      `json:"field_metrics"`
	Waivers      int                       `json:"waivers_received"`
	Cars         int                       `json:"cars"`
	Placeholders int                       `json:"placeholders"`
}
