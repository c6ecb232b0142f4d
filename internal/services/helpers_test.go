package services_test

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/internal/metrics"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/internal/testutil"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

const testBaseURL = "http://show.test"

// testNow is the fixed wall clock used by services under test.
var testNow = time.Date(2026, 5, 23, 15, 0, 0, 0, time.UTC)

// recordingBroadcaster captures hub messages.
type recordingBroadcaster struct {
	mu       sync.Mutex
	statuses []services.VotingStatus
	votes    []services.VoteRecorded
}

func (b *recordingBroadcaster) BroadcastVotingStatus(status services.VotingStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, status)
}

func (b *recordingBroadcaster) BroadcastVoteRecorded(vote services.VoteRecorded) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.votes = append(b.votes, vote)
}

func (b *recordingBroadcaster) Votes() []services.VoteRecorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]services.VoteRecorded(nil), b.votes...)
}

func (b *recordingBroadcaster) Statuses() []services.VotingStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]services.VotingStatus(nil), b.statuses...)
}

// testEnv wires every service against one repository and a mock gateway.
type testEnv struct {
	repo      repository.FullRepository
	sqlite    *repository.Repository
	gateway   *checkout.MockGateway
	metrics   *metrics.Metrics
	hub       *recordingBroadcaster
	shows     *services.ShowService
	cars      *services.CarService
	voting    *services.VotingService
	ledger    *services.LedgerService
	board     *services.LeaderboardService
	sponsors  *services.SponsorService
	attendees *services.AttendeeService
}

type envOption func(*envConfig)

type envConfig struct {
	voting  services.VotingOptions
	wrap    func(repository.FullRepository) repository.FullRepository
	gateway []checkout.MockOption
}

func withAttestation() envOption {
	return func(c *envConfig) { c.voting.RequireBranchAttestation = true }
}

func withRepo(wrap func(repository.FullRepository) repository.FullRepository) envOption {
	return func(c *envConfig) { c.wrap = wrap }
}

func withGateway(opts ...checkout.MockOption) envOption {
	return func(c *envConfig) { c.gateway = append(c.gateway, opts...) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{voting: services.VotingOptions{BaseURL: testBaseURL}}
	for _, opt := range opts {
		opt(&cfg)
	}

	sqlite := testutil.NewTestRepository(t)
	var repo repository.FullRepository = sqlite
	if cfg.wrap != nil {
		repo = cfg.wrap(sqlite)
	}

	log := logger.Discard()
	env := &testEnv{
		repo:    repo,
		sqlite:  sqlite,
		gateway: checkout.NewMockGateway(cfg.gateway...),
		metrics: metrics.New(),
		hub:     &recordingBroadcaster{},
	}
	clock := func() time.Time { return testNow }

	env.shows = services.NewShowService(log, repo)
	env.shows.SetClock(clock)
	env.shows.SetBroadcaster(env.hub)

	env.cars = services.NewCarService(log, repo, testBaseURL)
	env.cars.SetClock(clock)

	env.voting = services.NewVotingService(log, repo, env.shows, env.gateway, env.metrics, cfg.voting)
	env.voting.SetBroadcaster(env.hub)

	env.board = services.NewLeaderboardService(log, repo)
	env.ledger = services.NewLedgerService(log, repo, env.shows, env.board, env.metrics)
	env.ledger.SetClock(clock)

	env.sponsors = services.NewSponsorService(log, repo)
	env.sponsors.SetClock(clock)
	env.attendees = services.NewAttendeeService(log, repo, env.shows, env.gateway, env.metrics, testBaseURL)
	return env
}

// adminSession returns a session valid at testNow.
func adminSession() *auth.Session {
	return &auth.Session{
		Token:     "test-session",
		IssuedAt:  testNow.Add(-time.Minute),
		LastSeen:  testNow.Add(-time.Minute),
		ExpiresAt: testNow.Add(time.Hour),
		Idle:      time.Hour,
	}
}

// expiredSession returns a session that expired before testNow.
func expiredSession() *auth.Session {
	return &auth.Session{
		Token:     "stale-session",
		IssuedAt:  testNow.Add(-13 * time.Hour),
		LastSeen:  testNow.Add(-2 * time.Hour),
		ExpiresAt: testNow.Add(-time.Hour),
	}
}

// paidVoteSession builds a paid gateway session carrying vote metadata.
func paidVoteSession(id string, showID, carID int64, category string, qty int) checkout.Session {
	return checkout.Session{
		ID:            id,
		PaymentStatus: checkout.StatusPaid,
		AmountTotal:   int64(qty) * services.VotePriceCents,
		Metadata: map[string]string{
			services.MetaShowID:   strconv.FormatInt(showID, 10),
			services.MetaCarID:    strconv.FormatInt(carID, 10),
			services.MetaCategory: category,
			services.MetaQuantity: strconv.Itoa(qty),
			services.MetaPurpose:  services.PurposeVote,
		},
	}
}

// fakeRegistration generates a walk-up registration from a seeded faker.
func fakeRegistration(f *gofakeit.Faker, carNumber int) services.Registration {
	return services.Registration{
		Name:        f.Name(),
		Phone:       f.Phone(),
		Email:       f.Email(),
		OptInFuture: f.Bool(),
		CarNumber:   carNumber,
		Year:        strconv.Itoa(f.Number(1950, 1989)),
		Make:        f.CarMaker(),
		Model:       f.CarModel(),
	}
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
