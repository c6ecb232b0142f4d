// Package export renders ledger, car and leaderboard data as CSV, XLSX and
// zip bundles for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/karmankarshows/carshow/internal/models"
)

// TimeLayout is how timestamps are written in every export.
const TimeLayout = time.RFC3339Nano

// LedgerHeader is the column order of the votes export.
var LedgerHeader = []string{
	"created_at", "category", "vote_qty", "amount_cents", "stripe_session_id",
	"car_number", "year", "make", "model",
	"owner_name", "owner_phone", "owner_email", "opt_in_future",
}

// WriteLedgerCSV writes ledger rows in the order given.
func WriteLedgerCSV(w io.Writer, rows []models.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LedgerHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(ledgerRecord(r)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.SessionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ledgerRecord(r models.ExportRow) []string {
	return []string{
		r.CreatedAt.UTC().Format(TimeLayout),
		r.Category,
		strconv.Itoa(r.Quantity),
		strconv.FormatInt(r.AmountCents, 10),
		r.SessionID,
		strconv.Itoa(r.CarNumber),
		r.Year,
		r.Make,
		r.Model,
		r.OwnerName,
		r.OwnerPhone,
		r.OwnerEmail,
		yesNo(r.OptInFuture),
	}
}

// ReadLedgerCSV parses a votes export back into rows. Only the ledger fields
// and car number are required; owner columns are carried through when present.
func ReadLedgerCSV(r io.Reader) ([]models.ExportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"created_at", "category", "vote_qty", "amount_cents", "stripe_session_id", "car_number"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var rows []models.ExportRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		// Skip empty rows
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		row, err := parseLedgerRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseLedgerRecord(record []string, cols map[string]int) (models.ExportRow, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var row models.ExportRow
	createdAt, err := time.Parse(TimeLayout, get("created_at"))
	if err != nil {
		return row, fmt.Errorf("invalid created_at: %w", err)
	}
	qty, err := strconv.Atoi(get("vote_qty"))
	if err != nil {
		return row, fmt.Errorf("invalid vote_qty: %w", err)
	}
	amount, err := strconv.ParseInt(get("amount_cents"), 10, 64)
	if err != nil {
		return row, fmt.Errorf("invalid amount_cents: %w", err)
	}
	carNumber, err := strconv.Atoi(get("car_number"))
	if err != nil {
		return row, fmt.Errorf("invalid car_number: %w", err)
	}
	sessionID := get("stripe_session_id")
	if sessionID == "" {
		return row, fmt.Errorf("missing stripe_session_id")
	}

	row.CreatedAt = createdAt.UTC()
	row.Category = get("category")
	row.Quantity = qty
	row.AmountCents = amount
	row.SessionID = sessionID
	row.CarNumber = carNumber
	row.Year = get("year")
	row.Make = get("make")
	row.Model = get("model")
	row.OwnerName = get("owner_name")
	row.OwnerPhone = get("owner_phone")
	row.OwnerEmail = get("owner_email")
	row.OptInFuture = get("opt_in_future") == "yes"
	return row, nil
}

// WriteCarsCSV writes the car roster with owner details and placeholder state.
func WriteCarsCSV(w io.Writer, cars []models.Car) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"car_number", "car_token", "year", "make", "model", "owner_name", "owner_phone", "owner_email", "opt_in_future", "placeholder"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, c := range cars {
		var name, phone, email string
		var optIn bool
		if c.Owner != nil {
			name, phone, email, optIn = c.Owner.Name, c.Owner.Phone, c.Owner.Email, c.Owner.OptInFuture
		}
		record := []string{
			strconv.Itoa(c.CarNumber), c.Token, c.Year, c.Make, c.Model,
			name, phone, email, yesNo(optIn), yesNo(c.IsPlaceholder()),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write car #%d: %w", c.CarNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLeaderboardCSV writes one row per (category, car) followed by the
// overall ranking under the category "Overall".
func WriteLeaderboardCSV(w io.Writer, byCategory []models.CategoryStandings, overall []models.Standing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"category", "rank", "car_number", "votes"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	write := func(category string, standings []models.Standing) error {
		for i, s := range standings {
			if err := cw.Write([]string{category, strconv.Itoa(i + 1), strconv.Itoa(s.CarNumber), strconv.Itoa(s.Votes)}); err != nil {
				return fmt.Errorf("failed to write %s standing: %w", category, err)
			}
		}
		return nil
	}
	for _, cs := range byCategory {
		if err := write(cs.Category.Name, cs.Standings); err != nil {
			return err
		}
	}
	if err := write("Overall", overall); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteAttendeesCSV writes gate sign-ins.
func WriteAttendeesCSV(w io.Writer, attendees []models.Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"created_at", "first_name", "last_name", "phone", "email", "zip", "sponsor_opt_in", "updates_opt_in", "consent_version"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, a := range attendees {
		record := []string{
			a.CreatedAt.UTC().Format(TimeLayout), a.FirstName, a.LastName, a.Phone, a.Email, a.Zip,
			yesNo(a.SponsorOptIn), yesNo(a.UpdatesOptIn), a.ConsentVersion,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write attendee %d: %w", a.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
