package services_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/export"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/internal/testutil"
)

// seedVote writes a ledger entry directly, as reconciliation would.
func seedVote(t *testing.T, repo *repository.Repository, showID, carID int64, category string, qty int, session string, at time.Time) {
	t.Helper()
	inserted, err := repo.InsertLedgerEntry(context.Background(), models.LedgerEntry{
		ShowID:      showID,
		CarID:       carID,
		Category:    category,
		Quantity:    qty,
		AmountCents: int64(qty) * 100,
		SessionID:   session,
		CreatedAt:   at,
	})
	require.NoError(t, err)
	require.True(t, inserted, "session %s already recorded", session)
}

func TestExport_OldestFirstWithOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car1 := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")
	car2 := testutil.SeedCar(t, env.sqlite, show.ID, 2, "tok-2")

	seedVote(t, env.sqlite, show.ID, car2.ID, "Navy", 3, "cs_b", testNow.Add(-time.Minute))
	seedVote(t, env.sqlite, show.ID, car1.ID, "Army", 1, "cs_a", testNow.Add(-time.Hour))

	rows, err := env.ledger.Export(ctx, show.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "cs_a", rows[0].SessionID)
	assert.Equal(t, 1, rows[0].CarNumber)
	assert.Equal(t, "Owner tok-1", rows[0].OwnerName)
	assert.Equal(t, "cs_b", rows[1].SessionID)
	assert.Equal(t, int64(300), rows[1].AmountCents)
}

func TestExport_EmptyIsNotNil(t *testing.T) {
	env := newTestEnv(t)
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	rows, err := env.ledger.Export(context.Background(), show.ID)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	csv, err := env.ledger.ExportCSV(context.Background(), show.ID)
	require.NoError(t, err)
	back, err := export.ReadLedgerCSV(bytes.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestExportCSV_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 7, "tok-7")
	seedVote(t, env.sqlite, show.ID, car.ID, "People's Choice", 5, "cs_pc", testNow.Add(-time.Hour))

	data, err := env.ledger.ExportCSV(ctx, show.ID)
	require.NoError(t, err)
	rows, err := export.ReadLedgerCSV(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "People's Choice", rows[0].Category)
	assert.Equal(t, 5, rows[0].Quantity)
	assert.Equal(t, 7, rows[0].CarNumber)
}

func TestExportXLSX(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 7, "tok-7")
	seedVote(t, env.sqlite, show.ID, car.ID, "Army", 2, "cs_1", testNow)

	data, err := env.ledger.ExportXLSX(ctx, show.ID)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	votes, err := f.GetRows(export.VotesSheet)
	require.NoError(t, err)
	assert.Len(t, votes, 2)
	board, err := f.GetRows(export.LeaderboardSheet)
	require.NoError(t, err)
	assert.Len(t, board, 2)
}

func TestReset_ScopedToShow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	other := testutil.SeedShow(t, env.sqlite, "fall-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")
	otherCar := testutil.SeedCar(t, env.sqlite, other.ID, 1, "tok-o")

	seedVote(t, env.sqlite, show.ID, car.ID, "Army", 1, "cs_1", testNow)
	seedVote(t, env.sqlite, show.ID, car.ID, "Navy", 2, "cs_2", testNow)
	seedVote(t, env.sqlite, other.ID, otherCar.ID, "Army", 4, "cs_3", testNow)

	n, err := env.ledger.Reset(ctx, adminSession(), show.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := env.ledger.Export(ctx, show.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
	overall, err := env.board.Overall(ctx, show.ID)
	require.NoError(t, err)
	assert.Empty(t, overall)

	kept, err := env.ledger.Export(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	cars, err := env.cars.ListCars(ctx, show.ID)
	require.NoError(t, err)
	assert.Len(t, cars, 1, "reset must keep cars")
}

func TestReset_EmptyLedger(t *testing.T) {
	env := newTestEnv(t)
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	n, err := env.ledger.Reset(context.Background(), adminSession(), show.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReset_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")
	seedVote(t, env.sqlite, show.ID, car.ID, "Army", 1, "cs_1", testNow)

	_, err := env.ledger.Reset(ctx, nil, show.ID)
	assert.ErrorIs(t, err, auth.ErrNoSession)
	_, err = env.ledger.Reset(ctx, expiredSession(), show.ID)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)

	rows, err := env.ledger.Export(ctx, show.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReset_ReplayAfterResetRecordsAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")

	sess := paidVoteSession("cs_again", show.ID, car.ID, "Army", 2)
	first, err := env.voting.ReconcileSession(ctx, &sess)
	require.NoError(t, err)
	require.Equal(t, services.OutcomeCommitted, first.Outcome)

	_, err = env.ledger.Reset(ctx, adminSession(), show.ID)
	require.NoError(t, err)

	second, err := env.voting.ReconcileSession(ctx, &sess)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeCommitted, second.Outcome)
}

func TestSnapshot_Contents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")
	seedVote(t, env.sqlite, show.ID, car.ID, "Army", 3, "cs_1", testNow)

	snap, err := env.ledger.Snapshot(ctx, show.ID)
	require.NoError(t, err)
	assert.Equal(t, "spring-show-snapshot-20260523-150000.zip", snap.Filename)

	files := unzip(t, snap.Data)
	for _, name := range []string{"votes.csv", "votes.xlsx", "cars.csv", "leaderboard.csv", "attendees.csv"} {
		assert.Contains(t, files, name)
	}
	votes, err := export.ReadLedgerCSV(bytes.NewReader(files["votes.csv"]))
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, "cs_1", votes[0].SessionID)
}

func TestSnapshot_UnknownShow(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ledger.Snapshot(context.Background(), 404)
	assert.Equal(t, services.ErrShowNotFound, err)
}

func TestResetWithSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")
	seedVote(t, env.sqlite, show.ID, car.ID, "Army", 3, "cs_1", testNow)

	snap, n, err := env.ledger.ResetWithSnapshot(ctx, adminSession(), show.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	votes, err := export.ReadLedgerCSV(bytes.NewReader(unzip(t, snap.Data)["votes.csv"]))
	require.NoError(t, err)
	assert.Len(t, votes, 1, "snapshot must hold the entries that were reset")

	rows, err := env.ledger.Export(ctx, show.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResetWithSnapshot_UnknownShowDeletesNothing(t *testing.T) {
	env := newTestEnv(t)
	_, n, err := env.ledger.ResetWithSnapshot(context.Background(), adminSession(), 404)
	require.Error(t, err)
	assert.Zero(t, n)
}

func TestCloseAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")

	pending, err := env.voting.InitiateVoteCheckout(ctx, services.VoteCheckoutRequest{ShowSlug: "spring-show", CarToken: car.Token, CategorySlug: "army", Quantity: 2})
	require.NoError(t, err)

	_, err = env.ledger.CloseAndSnapshot(ctx, adminSession(), show.ID)
	require.NoError(t, err)

	status, err := env.shows.Status(ctx, "spring-show")
	require.NoError(t, err)
	assert.False(t, status.Open)

	_, err = env.voting.InitiateVoteCheckout(ctx, services.VoteCheckoutRequest{ShowSlug: "spring-show", CarToken: car.Token, CategorySlug: "army", Quantity: 1})
	assert.Equal(t, services.ErrVotingClosed, err)

	env.gateway.MarkPaid(pending.SessionID)
	result, err := env.voting.ReconcileCheckout(ctx, pending.SessionID)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeCommitted, result.Outcome)
}

func TestCloseAndSnapshot_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	_, err := env.ledger.CloseAndSnapshot(context.Background(), expiredSession(), show.ID)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)

	status, err := env.shows.Status(context.Background(), "spring-show")
	require.NoError(t, err)
	assert.True(t, status.Open)
}

func TestReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")
	seedVote(t, env.sqlite, show.ID, car.ID, "Army", 1, "cs_existing", testNow)

	row := func(session, category string, number, qty int) models.ExportRow {
		return models.ExportRow{
			LedgerEntry: models.LedgerEntry{Category: category, Quantity: qty, AmountCents: int64(qty) * 100, SessionID: session, CreatedAt: testNow},
			CarNumber:   number,
		}
	}
	result, err := env.ledger.Replay(ctx, show.ID, []models.ExportRow{
		row("cs_existing", "Army", 1, 1),
		row("cs_new", "Navy", 1, 4),
		row("cs_ghost", "Navy", 99, 1),
		row("cs_bad_cat", "Best Paint", 1, 1),
		row("cs_bad_qty", "Navy", 1, 51),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Len(t, result.Skipped, 3)

	stats, err := env.ledger.Stats(ctx, show.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.LedgerStats{Entries: 2, Votes: 5, AmountCents: 500}, stats)
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = b
	}
	return files
}
