package services_test

import (
	"context"
	"testing"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/internal/testutil"
)

func intPtr(n int) *int { return &n }

func TestSponsors_Lineup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	inputs := []services.SponsorInput{
		{Name: "Harbor Tire", SortOrder: intPtr(20)},
		{Name: "Bay Detailing", SortOrder: intPtr(10)},
		{Name: "Vista Auto Glass"},
		{Name: "Karman Motors", Placement: models.PlacementTitle, WebsiteURL: "https://karman.example"},
	}
	for _, in := range inputs {
		if _, err := env.sponsors.Add(ctx, adminSession(), show.ID, in); err != nil {
			t.Fatalf("Add %s failed: %v", in.Name, err)
		}
	}

	lineup, err := env.sponsors.ForShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("ForShow failed: %v", err)
	}
	if lineup.Title == nil || lineup.Title.Name != "Karman Motors" {
		t.Fatalf("expected Karman Motors as title, got %+v", lineup.Title)
	}
	var names []string
	for _, s := range lineup.Standard {
		names = append(names, s.Name)
	}
	want := []string{"Bay Detailing", "Harbor Tire", "Vista Auto Glass"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if lineup.Standard[2].SortOrder != services.DefaultSponsorOrder {
		t.Errorf("expected default sort order, got %d", lineup.Standard[2].SortOrder)
	}
}

func TestSponsors_TitleReplacesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	if _, err := env.sponsors.Add(ctx, adminSession(), show.ID, services.SponsorInput{Name: "Old Title", Placement: models.PlacementTitle}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := env.sponsors.Add(ctx, adminSession(), show.ID, services.SponsorInput{Name: "New Title", Placement: models.PlacementTitle}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	lineup, err := env.sponsors.ForShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("ForShow failed: %v", err)
	}
	if lineup.Title == nil || lineup.Title.Name != "New Title" {
		t.Fatalf("expected New Title, got %+v", lineup.Title)
	}
	if len(lineup.Standard) != 1 || lineup.Standard[0].Name != "Old Title" {
		t.Errorf("expected previous title demoted to standard, got %+v", lineup.Standard)
	}
}

func TestSponsors_UpsertByName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	other := testutil.SeedShow(t, env.sqlite, "fall-show", true)

	first, err := env.sponsors.Add(ctx, adminSession(), show.ID, services.SponsorInput{Name: "Harbor Tire", LogoPath: "/old.png"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	second, err := env.sponsors.Add(ctx, adminSession(), other.ID, services.SponsorInput{Name: "Harbor Tire", LogoPath: "/new.png"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if first != second {
		t.Errorf("expected the same sponsor record, got %d and %d", first, second)
	}

	lineup, err := env.sponsors.ForShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("ForShow failed: %v", err)
	}
	if lineup.Standard[0].LogoPath != "/new.png" {
		t.Errorf("expected refreshed logo, got %q", lineup.Standard[0].LogoPath)
	}
}

func TestSponsors_Remove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	id, err := env.sponsors.Add(ctx, adminSession(), show.ID, services.SponsorInput{Name: "Harbor Tire"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := env.sponsors.Remove(ctx, adminSession(), show.ID, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := env.sponsors.Remove(ctx, adminSession(), show.ID, id); err != nil {
		t.Errorf("removing twice should be a no-op, got %v", err)
	}

	lineup, err := env.sponsors.ForShow(ctx, show.ID)
	if err != nil {
		t.Fatalf("ForShow failed: %v", err)
	}
	if lineup.Title != nil || len(lineup.Standard) != 0 {
		t.Errorf("expected empty lineup, got %+v", lineup)
	}
	if lineup.Standard == nil {
		t.Error("standard sponsors should be an empty slice, not nil")
	}
}

func TestSponsors_Validation(t *testing.T) {
	env := newTestEnv(t)
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	tests := []struct {
		name string
		sess *auth.Session
		in   services.SponsorInput
		want error
	}{
		{"blank name", adminSession(), services.SponsorInput{Name: "  "}, services.ErrSponsorNameRequired},
		{"bad placement", adminSession(), services.SponsorInput{Name: "X", Placement: "gold"}, services.ErrInvalidPlacement},
		{"no session", nil, services.SponsorInput{Name: "X"}, auth.ErrNoSession},
		{"expired session", expiredSession(), services.SponsorInput{Name: "X"}, auth.ErrSessionExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.sponsors.Add(context.Background(), tt.sess, show.ID, tt.in); err != tt.want {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
