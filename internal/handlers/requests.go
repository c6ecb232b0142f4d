package handlers

import "github.com/karmankarshows/carshow/internal/services"

// LoginRequest is the admin login body.
type LoginRequest struct {
	Password string `json:"password"`
}

// RegisterRequest is a walk-up car registration for one show.
type RegisterRequest struct {
	ShowSlug string `json:"show_slug"`
	services.Registration
}

// VotingStatusRequest represents a request to set voting open/closed
type VotingStatusRequest struct {
	Open bool `json:"open"`
}

// VotingDeadlineRequest sets or clears the automatic close time. An empty
// ends_at clears it.
type VotingDeadlineRequest struct {
	EndsAt string `json:"ends_at"`
}

// PlaceholderRequest pre-creates numbered cards.
type PlaceholderRequest struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// WaiverRequest marks a car's waiver as received.
type WaiverRequest struct {
	CarID      int64  `json:"car_id"`
	ReceivedBy string `json:"received_by"`
}
