package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/karmankarshows/carshow/internal/models"
)

const showColumns = `id, slug, title, date, time, location_name, address, benefiting,
	suggested_donation, description, voting_open, voting_ends_at, is_active, created_at`

// ShowRecord is a show row plus the optional voting deadline.
type ShowRecord struct {
	models.Show
	VotingEndsAt *time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (*ShowRecord, error) {
	var rec ShowRecord
	var date, tm, location, address, benefiting, donation, description sql.NullString
	var endsAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.Slug, &rec.Title, &date, &tm, &location, &address, &benefiting,
		&donation, &description, &rec.VotingOpen, &endsAt, &rec.IsActive, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Date = date.String
	rec.Time = tm.String
	rec.LocationName = location.String
	rec.Address = address.String
	rec.Benefiting = benefiting.String
	rec.SuggestedDonation = donation.String
	rec.Description = description.String
	if endsAt.Valid {
		t := endsAt.Time
		rec.VotingEndsAt = &t
	}
	return &rec, nil
}

// GetShowBySlug retrieves a show by its URL slug.
func (r *Repository) GetShowBySlug(ctx context.Context, slug string) (*ShowRecord, error) {
	rec, err := scanShow(r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE slug = ?`, slug))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// GetShow retrieves a show by ID.
func (r *Repository) GetShow(ctx context.Context, id int64) (*ShowRecord, error) {
	rec, err := scanShow(r.db.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// GetActiveShow returns the most recently created active show.
func (r *Repository) GetActiveShow(ctx context.Context) (*ShowRecord, error) {
	rec, err := scanShow(r.db.QueryRowContext(ctx,
		`SELECT `+showColumns+` FROM shows WHERE is_active = 1 ORDER BY id DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListShows returns every show, newest first.
func (r *Repository) ListShows(ctx context.Context) ([]ShowRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+showColumns+` FROM shows ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shows []ShowRecord
	for rows.Next() {
		rec, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, *rec)
	}
	return shows, rows.Err()
}

// CreateShowIfMissing inserts the show unless its slug already exists.
// It reports whether a row was created.
func (r *Repository) CreateShowIfMissing(ctx context.Context, show models.Show) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO shows (slug, title, date, time, location_name, address, benefiting,
			suggested_donation, description, voting_open, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		show.Slug, show.Title, show.Date, show.Time, show.LocationName, show.Address, show.Benefiting,
		show.SuggestedDonation, show.Description, show.VotingOpen, show.IsActive, r.now())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetVotingOpen flips the persisted voting flag for a show.
func (r *Repository) SetVotingOpen(ctx context.Context, showID int64, open bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE shows SET voting_open = ? WHERE id = ?`, open, showID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetVotingDeadline stores (or clears, when endsAt is nil) the automatic close time.
func (r *Repository) SetVotingDeadline(ctx context.Context, showID int64, endsAt *time.Time) error {
	var value any
	if endsAt != nil {
		value = endsAt.UTC()
	}
	result, err := r.db.ExecContext(ctx, `UPDATE shows SET voting_ends_at = ? WHERE id = ?`, value, showID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CloseVotingIfDue closes voting when the stored deadline is at or before now.
// It reports whether this call performed the close.
func (r *Repository) CloseVotingIfDue(ctx context.Context, showID int64, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE shows SET voting_open = 0, voting_ends_at = NULL
		WHERE id = ? AND voting_open = 1 AND voting_ends_at IS NOT NULL AND voting_ends_at <= ?`,
		showID, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
