package repository

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Repository provides data access methods
type Repository struct {
	db    *sql.DB
	clock func() time.Time
}

// New opens (or creates) the SQLite database at dbPath and applies migrations.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single writer; this also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// SetClock overrides the time source used for created_at columns.
func (r *Repository) SetClock(clock func() time.Time) {
	r.clock = clock
}

func (r *Repository) now() time.Time {
	if r.clock != nil {
		return r.clock().UTC()
	}
	return time.Now().UTC()
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withTx runs fn inside a transaction, rolling back on error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS shows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			date TEXT,
			time TEXT,
			location_name TEXT,
			address TEXT,
			benefiting TEXT,
			suggested_donation TEXT,
			description TEXT,
			voting_open BOOLEAN NOT NULL DEFAULT 0,
			voting_ends_at DATETIME,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS people (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			phone TEXT,
			email TEXT,
			opt_in_future BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			show_id INTEGER NOT NULL,
			person_id INTEGER,
			car_number INTEGER NOT NULL,
			car_token TEXT NOT NULL UNIQUE,
			year TEXT,
			make TEXT,
			model TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (show_id) REFERENCES shows(id),
			FOREIGN KEY (person_id) REFERENCES people(id),
			UNIQUE(show_id, car_number)
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			show_id INTEGER NOT NULL,
			car_id INTEGER NOT NULL,
			category TEXT NOT NULL,
			vote_qty INTEGER NOT NULL CHECK (vote_qty BETWEEN 1 AND 50),
			amount_cents INTEGER NOT NULL,
			stripe_session_id TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (show_id) REFERENCES shows(id),
			FOREIGN KEY (car_id) REFERENCES cars(id)
		)`,
		`CREATE TABLE IF NOT EXISTS sponsors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			logo_path TEXT,
			website_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS show_sponsors (
			show_id INTEGER NOT NULL,
			sponsor_id INTEGER NOT NULL,
			placement TEXT NOT NULL DEFAULT 'standard',
			sort_order INTEGER NOT NULL DEFAULT 100,
			PRIMARY KEY (show_id, sponsor_id),
			FOREIGN KEY (show_id) REFERENCES shows(id),
			FOREIGN KEY (sponsor_id) REFERENCES sponsors(id) ON DELETE CASCADE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_show_sponsors_title
			ON show_sponsors(show_id) WHERE placement = 'title'`,
		`CREATE TABLE IF NOT EXISTS attendees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			show_id INTEGER NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT,
			email TEXT,
			zip TEXT,
			sponsor_opt_in BOOLEAN NOT NULL DEFAULT 0,
			updates_opt_in BOOLEAN NOT NULL DEFAULT 0,
			consent_text TEXT NOT NULL,
			consent_version TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (show_id) REFERENCES shows(id)
		)`,
		`CREATE TABLE IF NOT EXISTS field_metrics (
			show_id INTEGER NOT NULL,
			field TEXT NOT NULL,
			provided INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (show_id, field),
			FOREIGN KEY (show_id) REFERENCES shows(id)
		)`,
		`CREATE TABLE IF NOT EXISTS donations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			show_id INTEGER NOT NULL,
			attendee_id INTEGER NOT NULL,
			amount_cents INTEGER NOT NULL,
			status TEXT NOT NULL,
			stripe_session_id TEXT UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			paid_at DATETIME,
			FOREIGN KEY (show_id) REFERENCES shows(id),
			FOREIGN KEY (attendee_id) REFERENCES attendees(id)
		)`,
		`CREATE TABLE IF NOT EXISTS waivers (
			show_id INTEGER NOT NULL,
			car_id INTEGER NOT NULL,
			received_at DATETIME NOT NULL,
			received_by TEXT,
			PRIMARY KEY (show_id, car_id),
			FOREIGN KEY (show_id) REFERENCES shows(id),
			FOREIGN KEY (car_id) REFERENCES cars(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_show ON votes(show_id)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_car ON votes(car_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cars_show ON cars(show_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attendees_show ON attendees(show_id)`,
	}

	// Databases created before voting state moved onto the show row.
	additionalMigrations := []string{
		`ALTER TABLE shows ADD COLUMN voting_open BOOLEAN NOT NULL DEFAULT 0`,
		`ALTER TABLE shows ADD COLUMN voting_ends_at DATETIME`,
		`ALTER TABLE people ADD COLUMN opt_in_future BOOLEAN NOT NULL DEFAULT 0`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}

	for _, migration := range additionalMigrations {
		r.db.Exec(migration) // Ignore errors - columns may already exist
	}

	return nil
}
