package models

import "time"

// Show is a single car show event. VotingOpen is the only switch that gates
// new checkout sessions, and it is read from the store on every request.
type Show struct {
	ID                int64     `json:"id"`
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	Date              string    `json:"date"`
	Time              string    `json:"time"`
	LocationName      string    `json:"location_name"`
	Address           string    `json:"address"`
	Benefiting        string    `json:"benefiting"`
	SuggestedDonation string    `json:"suggested_donation"`
	Description       string    `json:"description"`
	VotingOpen        bool      `json:"voting_open"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// Person is a car owner.
type Person struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	OptInFuture bool      `json:"opt_in_future"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Car is a registered (or placeholder) car within one show.
type Car struct {
	ID        int64     `json:"id"`
	ShowID    int64     `json:"show_id"`
	PersonID  *int64    `json:"person_id,omitempty"`
	CarNumber int       `json:"car_number"`
	Token     string    `json:"car_token"`
	Year      string    `json:"year"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Owner     *Person   `json:"owner,omitempty"`
}

// IsPlaceholder reports whether the car was pre-printed and never checked in.
func (c *Car) IsPlaceholder() bool {
	return c.PersonID == nil
}

// LedgerEntry is one paid vote purchase. SessionID is unique across all shows.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	ShowID      int64     `json:"show_id"`
	CarID       int64     `json:"car_id"`
	Category    string    `json:"category"`
	Quantity    int       `json:"vote_qty"`
	AmountCents int64     `json:"amount_cents"`
	SessionID   string    `json:"stripe_session_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExportRow is a ledger entry joined with its car and owner.
type ExportRow struct {
	LedgerEntry
	CarNumber   int    `json:"car_number"`
	Year        string `json:"year"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	OwnerName   string `json:"owner_name"`
	OwnerPhone  string `json:"owner_phone"`
	OwnerEmail  string `json:"owner_email"`
	OptInFuture bool   `json:"opt_in_future"`
}

// Standing is one leaderboard line.
type Standing struct {
	CarNumber int `json:"car_number"`
	Votes     int `json:"votes"`
}

// CategoryStandings is the ranking for a single category.
type CategoryStandings struct {
	Category  Category   `json:"category"`
	Standings []Standing `json:"standings"`
}

// Placement of a sponsor on a show page.
type Placement string

const (
	PlacementTitle    Placement = "title"
	PlacementStandard Placement = "standard"
)

// Sponsor is a reusable sponsor record.
type Sponsor struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	LogoPath   string `json:"logo_path"`
	WebsiteURL string `json:"website_url"`
}

// ShowSponsor is a sponsor attached to a show.
type ShowSponsor struct {
	Sponsor
	Placement Placement `json:"placement"`
	SortOrder int       `json:"sort_order"`
}

// SponsorLineup is how sponsors render for a show.
type SponsorLineup struct {
	Title    *ShowSponsor  `json:"title,omitempty"`
	Standard []ShowSponsor `json:"standard"`
}

// Attendee is a spectator who signed in at the gate.
type Attendee struct {
	ID             int64     `json:"id"`
	ShowID         int64     `json:"show_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	Zip            string    `json:"zip"`
	SponsorOptIn   bool      `json:"sponsor_opt_in"`
	UpdatesOptIn   bool      `json:"updates_opt_in"`
	ConsentText    string    `json:"consent_text"`
	ConsentVersion string    `json:"consent_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// DonationStatus tracks a gate donation.
type DonationStatus string

const (
	DonationPending DonationStatus = "pending"
	DonationPaid    DonationStatus = "paid"
	DonationSkipped DonationStatus = "skipped"
)

// Donation is an optional gate donation from an attendee.
type Donation struct {
	ID          int64          `json:"id"`
	ShowID      int64          `json:"show_id"`
	AttendeeID  int64          `json:"attendee_id"`
	AmountCents int64          `json:"amount_cents"`
	Status      DonationStatus `json:"status"`
	SessionID   string         `json:"stripe_session_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	PaidAt      *time.Time     `json:"paid_at,omitempty"`
}

// Waiver records that a signed liability waiver was collected for a car.
type Waiver struct {
	ShowID     int64     `json:"show_id"`
	CarID      int64     `json:"car_id"`
	ReceivedAt time.Time `json:"received_at"`
	ReceivedBy string    `json:"received_by"`
}

// FieldMetric counts how often an optional attendee field was filled in.
type FieldMetric struct {
	Field    string `json:"field"`
	Provided int    `json:"provided"`
	Skipped  int    `json:"skipped"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
