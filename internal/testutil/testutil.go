package testutil

import (
	"context"
	"testing"

	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

// SeedShow inserts a show with the given slug and voting state and returns it.
func SeedShow(t *testing.T, repo repository.ShowRepository, slug string, votingOpen bool) *repository.ShowRecord {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.CreateShowIfMissing(ctx, models.Show{Slug: slug, Title: slug, IsActive: true}); err != nil {
		t.Fatalf("failed to create show: %v", err)
	}
	show, err := repo.GetShowBySlug(ctx, slug)
	if err != nil {
		t.Fatalf("failed to load show: %v", err)
	}
	if err := repo.SetVotingOpen(ctx, show.ID, votingOpen); err != nil {
		t.Fatalf("failed to set voting state: %v", err)
	}
	show.VotingOpen = votingOpen
	return show
}

// SeedCar registers a car with an owner and returns it.
func SeedCar(t *testing.T, repo repository.CarRepository, showID int64, number int, token string) *models.Car {
	t.Helper()
	ctx := context.Background()

	id, err := repo.RegisterCar(ctx,
		models.Person{Name: "Owner " + token, Phone: "555-0100", Email: token + "@example.com"},
		models.Car{ShowID: showID, CarNumber: number, Token: token, Year: "1967", Make: "Ford", Model: "Mustang"})
	if err != nil {
		t.Fatalf("failed to register car #%d: %v", number, err)
	}
	car, err := repo.GetCar(ctx, id)
	if err != nil {
		t.Fatalf("failed to load car: %v", err)
	}
	return car
}
