package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/karmankarshows/carshow/internal/models"
)

// CreateAttendee stores a gate sign-in and bumps the field fill-rate counters.
func (r *Repository) CreateAttendee(ctx context.Context, a models.Attendee, fields map[string]bool) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO attendees (show_id, first_name, last_name, phone, email, zip,
				sponsor_opt_in, updates_opt_in, consent_text, consent_version, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ShowID, a.FirstName, a.LastName, a.Phone, a.Email, a.Zip,
			a.SponsorOptIn, a.UpdatesOptIn, a.ConsentText, a.ConsentVersion, r.now())
		if err != nil {
			return err
		}
		if id, err = result.LastInsertId(); err != nil {
			return err
		}
		for field, provided := range fields {
			provideInc, skipInc := 0, 1
			if provided {
				provideInc, skipInc = 1, 0
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO field_metrics (show_id, field, provided, skipped) VALUES (?, ?, ?, ?)
				ON CONFLICT(show_id, field) DO UPDATE SET
					provided = provided + excluded.provided,
					skipped = skipped + excluded.skipped`,
				a.ShowID, field, provideInc, skipInc); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// GetAttendee retrieves an attendee by ID.
func (r *Repository) GetAttendee(ctx context.Context, id int64) (*models.Attendee, error) {
	var a models.Attendee
	var phone, email, zip sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, show_id, first_name, last_name, phone, email, zip, sponsor_opt_in, updates_opt_in,
			consent_text, consent_version, created_at
		FROM attendees WHERE id = ?`, id).
		Scan(&a.ID, &a.ShowID, &a.FirstName, &a.LastName, &phone, &email, &zip, &a.SponsorOptIn, &a.UpdatesOptIn,
			&a.ConsentText, &a.ConsentVersion, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Phone, a.Email, a.Zip = phone.String, email.String, zip.String
	return &a, nil
}

// ListAttendees returns the attendees of a show, oldest first.
func (r *Repository) ListAttendees(ctx context.Context, showID int64) ([]models.Attendee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, show_id, first_name, last_name, phone, email, zip, sponsor_opt_in, updates_opt_in,
			consent_text, consent_version, created_at
		FROM attendees WHERE show_id = ? ORDER BY id`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Attendee
	for rows.Next() {
		var a models.Attendee
		var phone, email, zip sql.NullString
		if err := rows.Scan(&a.ID, &a.ShowID, &a.FirstName, &a.LastName, &phone, &email, &zip,
			&a.SponsorOptIn, &a.UpdatesOptIn, &a.ConsentText, &a.ConsentVersion, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Phone, a.Email, a.Zip = phone.String, email.String, zip.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// FieldMetrics returns fill-rate counters for a show's attendee form.
func (r *Repository) FieldMetrics(ctx context.Context, showID int64) ([]models.FieldMetric, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT field, provided, skipped FROM field_metrics WHERE show_id = ? ORDER BY field`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FieldMetric
	for rows.Next() {
		var m models.FieldMetric
		if err := rows.Scan(&m.Field, &m.Provided, &m.Skipped); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateDonation inserts a donation row in the given status.
func (r *Repository) CreateDonation(ctx context.Context, d models.Donation) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO donations (show_id, attendee_id, amount_cents, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ShowID, d.AttendeeID, d.AmountCents, string(d.Status), r.now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetDonation retrieves a donation by ID.
func (r *Repository) GetDonation(ctx context.Context, id int64) (*models.Donation, error) {
	var d models.Donation
	var status string
	var session sql.NullString
	var paidAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, show_id, attendee_id, amount_cents, status, stripe_session_id, created_at, paid_at
		FROM donations WHERE id = ?`, id).
		Scan(&d.ID, &d.ShowID, &d.AttendeeID, &d.AmountCents, &status, &session, &d.CreatedAt, &paidAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Status = models.DonationStatus(status)
	d.SessionID = session.String
	if paidAt.Valid {
		t := paidAt.Time
		d.PaidAt = &t
	}
	return &d, nil
}

// SetDonationSession links a pending donation to its checkout session.
func (r *Repository) SetDonationSession(ctx context.Context, donationID int64, sessionID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE donations SET stripe_session_id = ? WHERE id = ?`, sessionID, donationID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// MarkDonationPaid flips a pending donation to paid. It returns false when the
// donation was already paid, so repeated confirmations are harmless.
func (r *Repository) MarkDonationPaid(ctx context.Context, donationID int64, sessionID string, paidAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE donations SET status = 'paid', paid_at = ?, stripe_session_id = ?
		WHERE id = ? AND status = 'pending'`,
		paidAt.UTC(), sessionID, donationID)
	if isUniqueViolation(err) {
		return false, ErrDuplicate
	}
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DonationTotals sums paid donations for a show.
func (r *Repository) DonationTotals(ctx context.Context, showID int64) (count int, amountCents int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount_cents), 0) FROM donations WHERE show_id = ? AND status = 'paid'`,
		showID).Scan(&count, &amountCents)
	return count, amountCents, err
}
