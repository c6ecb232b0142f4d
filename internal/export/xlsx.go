package export

import (
	"fmt"

	"github.com/karmankarshows/carshow/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the ledger workbook.
const (
	VotesSheet       = "Votes"
	LeaderboardSheet = "Leaderboard"
)

// LedgerWorkbook builds an XLSX file with the raw ledger on one sheet and the
// overall ranking on another.
func LedgerWorkbook(rows []models.ExportRow, overall []models.Standing) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", VotesSheet); err != nil {
		return nil, fmt.Errorf("failed to name votes sheet: %w", err)
	}
	if err := setRow(f, VotesSheet, 1, toAny(LedgerHeader)); err != nil {
		return nil, err
	}
	for i, r := range rows {
		values := []interface{}{
			r.CreatedAt.UTC().Format(TimeLayout),
			r.Category,
			r.Quantity,
			r.AmountCents,
			r.SessionID,
			r.CarNumber,
			r.Year,
			r.Make,
			r.Model,
			r.OwnerName,
			r.OwnerPhone,
			r.OwnerEmail,
			yesNo(r.OptInFuture),
		}
		if err := setRow(f, VotesSheet, i+2, values); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(LeaderboardSheet); err != nil {
		return nil, fmt.Errorf("failed to add leaderboard sheet: %w", err)
	}
	if err := setRow(f, LeaderboardSheet, 1, []interface{}{"rank", "car_number", "votes"}); err != nil {
		return nil, err
	}
	for i, s := range overall {
		if err := setRow(f, LeaderboardSheet, i+2, []interface{}{i + 1, s.CarNumber, s.Votes}); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
