package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
)

// showFromPath resolves the {slug} URL parameter.
func (h *Handlers) showFromPath(r *http.Request) (*repository.ShowRecord, error) {
	return h.Shows.ShowBySlug(r.Context(), chi.URLParam(r, "slug"))
}

func (h *Handlers) handleActiveShow(w http.ResponseWriter, r *http.Request) {
	show, err := h.Shows.ActiveShow(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, showResponse(show))
}

func (h *Handlers) handleGetShow(w http.ResponseWriter, r *http.Request) {
	show, err := h.showFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, showResponse(show))
}

func (h *Handlers) handleVotingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Shows.Status(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, status)
}

// handleListPublicCars lists checked-in cars without owner details.
func (h *Handlers) handleListPublicCars(w http.ResponseWriter, r *http.Request) {
	show, err := h.showFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cars, err := h.Cars.ListCars(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]services.PublicCar, 0, len(cars))
	for _, c := range cars {
		if c.IsPlaceholder() {
			continue
		}
		out = append(out, services.PublicCar{CarNumber: c.CarNumber, Year: c.Year, Make: c.Make, Model: c.Model})
	}
	respondOK(w, out)
}

func (h *Handlers) handleShowSponsors(w http.ResponseWriter, r *http.Request) {
	show, err := h.showFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lineup, err := h.Sponsors.ForShow(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, lineup)
}

// handleRegisterCar registers a walk-up owner and car and returns the
// printable vote links.
func (h *Handlers) handleRegisterCar(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	show, err := h.Shows.ShowBySlug(r.Context(), req.ShowSlug)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	car, err := h.Cars.Register(r.Context(), show.ID, req.Registration)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("Car registered", "show", show.Slug, "car_number", car.CarNumber)
	respondCreated(w, h.Cars.VoteLinks(show.Slug, car))
}

func (h *Handlers) handleGetCheckIn(w http.ResponseWriter, r *http.Request) {
	show, err := h.showFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	car, err := h.Cars.CarByToken(r.Context(), show.ID, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, CheckInResponse{
		Show:        showResponse(show),
		Car:         services.PublicCar{CarNumber: car.CarNumber, Year: car.Year, Make: car.Make, Model: car.Model},
		Placeholder: car.IsPlaceholder(),
	})
}

// handleCheckIn attaches owner and car details to a pre-printed card.
func (h *Handlers) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	show, err := h.showFromPath(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in services.CheckIn
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	car, err := h.Cars.CheckIn(r.Context(), show.ID, chi.URLParam(r, "token"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("Car checked in", "show", show.Slug, "car_number", car.CarNumber)
	respondOK(w, h.Cars.VoteLinks(show.Slug, car))
}
