package repository

import (
	"context"
	"database/sql"

	"github.com/karmankarshows/carshow/internal/models"
)

// CategoryTotal is one (category, car) aggregate.
type CategoryTotal struct {
	Category  string
	CarNumber int
	Votes     int
}

// LedgerStats summarises a show's ledger.
type LedgerStats struct {
	Entries     int   `json:"entries"`
	Votes       int   `json:"votes"`
	AmountCents int64 `json:"amount_cents"`
}

// InsertLedgerEntry writes a paid vote keyed by its checkout session. It returns
// false, with no error, when an entry for the session already exists.
func (r *Repository) InsertLedgerEntry(ctx context.Context, e models.LedgerEntry) (bool, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO votes (show_id, car_id, category, vote_qty, amount_cents, stripe_session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stripe_session_id) DO NOTHING`,
		e.ShowID, e.CarID, e.Category, e.Quantity, e.AmountCents, e.SessionID, createdAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetLedgerEntryBySession retrieves the entry recorded for a checkout session.
func (r *Repository) GetLedgerEntryBySession(ctx context.Context, sessionID string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT id, show_id, car_id, category, vote_qty, amount_cents, stripe_session_id, created_at
		FROM votes WHERE stripe_session_id = ?`, sessionID).
		Scan(&e.ID, &e.ShowID, &e.CarID, &e.Category, &e.Quantity, &e.AmountCents, &e.SessionID, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CategoryTotals sums votes per (category, car) ordered by category, then
// total descending, then car number ascending.
func (r *Repository) CategoryTotals(ctx context.Context, showID int64) ([]CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT v.category, c.car_number, SUM(v.vote_qty) AS total
		FROM votes v
		JOIN cars c ON c.id = v.car_id
		WHERE v.show_id = ?
		GROUP BY v.category, c.car_number
		ORDER BY v.category, total DESC, c.car_number ASC`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.CarNumber, &t.Votes); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// OverallTotals sums votes per car across categories, highest first.
func (r *Repository) OverallTotals(ctx context.Context, showID int64) ([]models.Standing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.car_number, SUM(v.vote_qty) AS total
		FROM votes v
		JOIN cars c ON c.id = v.car_id
		WHERE v.show_id = ?
		GROUP BY c.car_number
		ORDER BY total DESC, c.car_number ASC`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []models.Standing
	for rows.Next() {
		var s models.Standing
		if err := rows.Scan(&s.CarNumber, &s.Votes); err != nil {
			return nil, err
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

// ExportLedger returns every entry for a show joined with car and owner, oldest first.
func (r *Repository) ExportLedger(ctx context.Context, showID int64) ([]models.ExportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT v.id, v.show_id, v.car_id, v.category, v.vote_qty, v.amount_cents, v.stripe_session_id, v.created_at,
			c.car_number, c.year, c.make, c.model,
			p.name, p.phone, p.email, p.opt_in_future
		FROM votes v
		JOIN cars c ON c.id = v.car_id
		LEFT JOIN people p ON p.id = c.person_id
		WHERE v.show_id = ?
		ORDER BY v.created_at ASC, v.id ASC`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ExportRow
	for rows.Next() {
		var row models.ExportRow
		var year, carMake, carModel, name, phone, email sql.NullString
		var optIn sql.NullBool
		if err := rows.Scan(&row.ID, &row.ShowID, &row.CarID, &row.Category, &row.Quantity, &row.AmountCents,
			&row.SessionID, &row.CreatedAt, &row.CarNumber, &year, &carMake, &carModel,
			&name, &phone, &email, &optIn); err != nil {
			return nil, err
		}
		row.Year = year.String
		row.Make = carMake.String
		row.Model = carModel.String
		row.OwnerName = name.String
		row.OwnerPhone = phone.String
		row.OwnerEmail = email.String
		row.OptInFuture = optIn.Bool
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteLedger removes every entry for a show and returns how many were removed.
func (r *Repository) DeleteLedger(ctx context.Context, showID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM votes WHERE show_id = ?`, showID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// LedgerStats returns entry, vote and amount totals for a show.
func (r *Repository) LedgerStats(ctx context.Context, showID int64) (LedgerStats, error) {
	var stats LedgerStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(vote_qty), 0), COALESCE(SUM(amount_cents), 0)
		FROM votes WHERE show_id = ?`, showID).Scan(&stats.Entries, &stats.Votes, &stats.AmountCents)
	return stats, err
}
