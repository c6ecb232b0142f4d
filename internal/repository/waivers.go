package repository

import (
	"context"
	"database/sql"

	"github.com/karmankarshows/carshow/internal/models"
)

// MarkWaiverReceived records a signed waiver for a car. Marking twice keeps the first receipt.
func (r *Repository) MarkWaiverReceived(ctx context.Context, showID, carID int64, receivedBy string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO waivers (show_id, car_id, received_at, received_by) VALUES (?, ?, ?, ?)
		ON CONFLICT(show_id, car_id) DO NOTHING`,
		showID, carID, r.now(), receivedBy)
	return err
}

// ListWaivers returns all waivers collected for a show.
func (r *Repository) ListWaivers(ctx context.Context, showID int64) ([]models.Waiver, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT show_id, car_id, received_at, received_by FROM waivers WHERE show_id = ? ORDER BY car_id`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Waiver
	for rows.Next() {
		var w models.Waiver
		var by sql.NullString
		if err := rows.Scan(&w.ShowID, &w.CarID, &w.ReceivedAt, &by); err != nil {
			return nil, err
		}
		w.ReceivedBy = by.String
		out = append(out, w)
	}
	return out, rows.Err()
}
