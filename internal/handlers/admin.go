package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/config"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeZIP  = "application/zip"
	contentTypePNG  = "image/png"

	qrSize = 512
)

// adminShow resolves the show an admin request targets: ?show=slug, or the
// active show.
func (h *Handlers) adminShow(r *http.Request) (*repository.ShowRecord, error) {
	if slug := strings.TrimSpace(r.URL.Query().Get("show")); slug != "" {
		return h.Shows.ShowBySlug(r.Context(), slug)
	}
	return h.Shows.ActiveShow(r.Context())
}

func (h *Handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	stats, err := h.Ledger.Stats(ctx, show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	donations, err := h.Attendees.DonationTotals(ctx, show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fields, err := h.Attendees.FieldMetrics(ctx, show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	waivers, err := h.Cars.ListWaivers(ctx, show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cars, err := h.Cars.ListCars(ctx, show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := AdminSummaryResponse{
		Show:      showResponse(show),
		Ledger:    stats,
		Donations: donations,
		Fields:    fields,
		Waivers:   len(waivers),
		Cars:      len(cars),
	}
	for i := range cars {
		if cars[i].IsPlaceholder() {
			resp.Placeholders++
		}
	}
	respondOK(w, resp)
}

func (h *Handlers) handleListAttendees(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	attendees, err := h.Attendees.ListAttendees(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, attendees)
}

// Voting control

func (h *Handlers) handleSetVotingStatus(w http.ResponseWriter, r *http.Request) {
	var req VotingStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	h.updateVoting(w, r, func(a showAction) (*repository.ShowRecord, error) {
		return h.Shows.SetVotingOpen(r.Context(), a.session, a.show.ID, req.Open)
	})
}

func (h *Handlers) handleToggleVoting(w http.ResponseWriter, r *http.Request) {
	h.updateVoting(w, r, func(a showAction) (*repository.ShowRecord, error) {
		return h.Shows.ToggleVoting(r.Context(), a.session, a.show.ID)
	})
}

// handleSetVotingDeadline accepts RFC 3339 or "YYYY-MM-DD HH:MM" in the
// configured time zone. An empty value clears the deadline.
func (h *Handlers) handleSetVotingDeadline(w http.ResponseWriter, r *http.Request) {
	var req VotingDeadlineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	endsAt, err := h.parseDeadline(req.EndsAt)
	if err != nil {
		respondError(w, err)
		return
	}
	h.updateVoting(w, r, func(a showAction) (*repository.ShowRecord, error) {
		return h.Shows.SetDeadline(r.Context(), a.session, a.show.ID, endsAt)
	})
}

func (h *Handlers) parseDeadline(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(config.VotingEndLayout, raw, h.opts.Location)
	if err != nil {
		return nil, BadRequest(fmt.Sprintf("Invalid ends_at %q, want YYYY-MM-DD HH:MM", raw))
	}
	return &t, nil
}

// showAction is an admin session acting on one show.
type showAction struct {
	session *auth.Session
	show    *repository.ShowRecord
}

func (h *Handlers) updateVoting(w http.ResponseWriter, r *http.Request, apply func(showAction) (*repository.ShowRecord, error)) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := apply(showAction{session: sess, show: show})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, VotingStatusResponse{Open: updated.VotingOpen, EndsAt: updated.VotingEndsAt})
}

// Results

func (h *Handlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	board, err := h.Leaderboard.Full(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, board)
}

func (h *Handlers) handleLeaderboardChart(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	png, err := h.Leaderboard.Chart(r.Context(), show.ID, show.Title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondFile(w, contentTypePNG, "", png)
}

// Ledger

func (h *Handlers) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.Ledger.ExportCSV(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondFile(w, contentTypeCSV, show.Slug+"-votes.csv", data)
}

func (h *Handlers) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.Ledger.ExportXLSX(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondFile(w, contentTypeXLSX, show.Slug+"-votes.xlsx", data)
}

func (h *Handlers) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.Ledger.Snapshot(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondFile(w, contentTypeZIP, snap.Filename, snap.Data)
}

// handleCloseAndExport closes voting and downloads the final snapshot.
func (h *Handlers) handleCloseAndExport(w http.ResponseWriter, r *http.Request) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.Ledger.CloseAndSnapshot(r.Context(), sess, show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondFile(w, contentTypeZIP, snap.Filename, snap.Data)
}

// handleResetVotes downloads a snapshot and clears the show's ledger. The
// number of deleted entries is returned in X-Votes-Deleted.
func (h *Handlers) handleResetVotes(w http.ResponseWriter, r *http.Request) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, deleted, err := h.Ledger.ResetWithSnapshot(r.Context(), sess, show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Warn("Votes reset by admin", "show", show.Slug, "deleted", deleted)
	w.Header().Set("X-Votes-Deleted", strconv.FormatInt(deleted, 10))
	respondFile(w, contentTypeZIP, snap.Filename, snap.Data)
}

// Cars

func (h *Handlers) handleListCars(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cars, err := h.Cars.ListCars(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondOK(w, cars)
}

// handleListPlaceholders lists pre-printed cards nobody has checked in yet,
// with the links to print on them.
func (h *Handlers) handleListPlaceholders(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cars, err := h.Cars.ListCars(r.Context(), show.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cards := make([]PlaceholderCard, 0)
	for i := range cars {
		if !cars[i].IsPlaceholder() {
			continue
		}
		cards = append(cards, PlaceholderCard{
			CarID:       cars[i].ID,
			Placeholder: true,
			Links:       h.Cars.VoteLinks(show.Slug, &cars[i]),
		})
	}
	respondOK(w, cards)
}

func (h *Handlers) handleCreatePlaceholders(w http.ResponseWriter, r *http.Request) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req PlaceholderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.Cars.CreatePlaceholders(r.Context(), sess, show.ID, req.Start, req.Count)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, PlaceholderResponse{Created: created})
}

func (h *Handlers) handleWaiverReceived(w http.ResponseWriter, r *http.Request) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req WaiverRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Cars.MarkWaiverReceived(r.Context(), sess, show.ID, req.CarID, req.ReceivedBy); err != nil {
		h.fail(w, r, err)
		return
	}
	respondSuccess(w, "Waiver recorded")
}

// handleQRCode renders a QR code for a car's vote link in ?category=, or its
// check-in link when no category is given.
func (h *Handlers) handleQRCode(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	car, err := h.Cars.CarByToken(r.Context(), show.ID, chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	link := h.Cars.CheckInURL(show.Slug, car.Token)
	if slug := r.URL.Query().Get("category"); slug != "" {
		category, ok := models.CategoryBySlug(slug)
		if !ok {
			respondError(w, services.ErrInvalidCategory)
			return
		}
		link = h.Cars.VoteURL(show.Slug, car.Token, category)
	}

	png, err := h.Cars.QRCode(link, qrSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondFile(w, contentTypePNG, "", png)
}

// Sponsors

func (h *Handlers) handleListSponsors(w http.ResponseWriter, r *http.Request) {
	show, err := h.adminShow(r)
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

func (h *Handlers) handleAddSponsor(w http.ResponseWriter, r *http.Request) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var in services.SponsorInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, err)
		return
	}
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := h.Sponsors.Add(r.Context(), sess, show.ID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondCreated(w, SponsorResponse{ID: id})
}

func (h *Handlers) handleRemoveSponsor(w http.ResponseWriter, r *http.Request) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, err := parseIntParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}
	show, err := h.adminShow(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Sponsors.Remove(r.Context(), sess, show.ID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	respondDeleted(w)
}
