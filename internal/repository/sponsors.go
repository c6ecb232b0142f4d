package repository

import (
	"context"
	"database/sql"

	"github.com/karmankarshows/carshow/internal/models"
)

// UpsertSponsor creates a sponsor or refreshes the logo and URL of an existing one.
func (r *Repository) UpsertSponsor(ctx context.Context, s models.Sponsor) (int64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sponsors (name, logo_path, website_url) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET logo_path = excluded.logo_path, website_url = excluded.website_url`,
		s.Name, s.LogoPath, s.WebsiteURL)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM sponsors WHERE name = ?`, s.Name).Scan(&id)
	return id, err
}

// AttachSponsor places a sponsor on a show. Attaching a title sponsor demotes
// any existing title sponsor for that show to standard placement.
func (r *Repository) AttachSponsor(ctx context.Context, showID, sponsorID int64, placement models.Placement, sortOrder int) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if placement == models.PlacementTitle {
			if _, err := tx.ExecContext(ctx,
				`UPDATE show_sponsors SET placement = 'standard' WHERE show_id = ? AND placement = 'title' AND sponsor_id <> ?`,
				showID, sponsorID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO show_sponsors (show_id, sponsor_id, placement, sort_order) VALUES (?, ?, ?, ?)
			ON CONFLICT(show_id, sponsor_id) DO UPDATE SET placement = excluded.placement, sort_order = excluded.sort_order`,
			showID, sponsorID, string(placement), sortOrder)
		return err
	})
}

// DetachSponsor removes a sponsor from a show.
func (r *Repository) DetachSponsor(ctx context.Context, showID, sponsorID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM show_sponsors WHERE show_id = ? AND sponsor_id = ?`, showID, sponsorID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ListShowSponsors returns a show's sponsors, title first, then by sort order and name.
func (r *Repository) ListShowSponsors(ctx context.Context, showID int64) ([]models.ShowSponsor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.logo_path, s.website_url, ss.placement, ss.sort_order
		FROM show_sponsors ss
		JOIN sponsors s ON s.id = ss.sponsor_id
		WHERE ss.show_id = ?
		ORDER BY CASE ss.placement WHEN 'title' THEN 0 ELSE 1 END, ss.sort_order, s.name`, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ShowSponsor
	for rows.Next() {
		var ss models.ShowSponsor
		var logo, url sql.NullString
		var placement string
		if err := rows.Scan(&ss.ID, &ss.Name, &logo, &url, &placement, &ss.SortOrder); err != nil {
			return nil, err
		}
		ss.LogoPath = logo.String
		ss.WebsiteURL = url.String
		ss.Placement = models.Placement(placement)
		out = append(out, ss)
	}
	return out, rows.Err()
}
