package services_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/models"
	"github.com/karmankarshows/carshow/internal/repository"
	"github.com/karmankarshows/carshow/internal/repository/mock"
	"github.com/karmankarshows/carshow/internal/services"
	"github.com/karmankarshows/carshow/internal/testutil"
)

func TestRegister_CreatesOwnerAndCar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	reg := fakeRegistration(gofakeit.New(7), 12)

	car, err := env.cars.Register(ctx, show.ID, reg)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if car.CarNumber != 12 || car.ShowID != show.ID {
		t.Errorf("unexpected car %+v", car)
	}
	if len(car.Token) != 36 {
		t.Errorf("expected a UUID token, got %q", car.Token)
	}
	if car.Owner == nil || car.Owner.Name != reg.Name || car.Owner.Email != reg.Email {
		t.Errorf("owner not stored: %+v", car.Owner)
	}
	if car.IsPlaceholder() {
		t.Error("registered car must not be a placeholder")
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	f := gofakeit.New(11)

	missing := fakeRegistration(f, 1)
	missing.Model = "  "
	zero := fakeRegistration(f, 0)
	negative := fakeRegistration(f, -4)

	tests := []struct {
		name string
		reg  services.Registration
		want error
	}{
		{"missing model", missing, services.ErrMissingFields},
		{"zero car number", zero, services.ErrInvalidCarNumber},
		{"negative car number", negative, services.ErrInvalidCarNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.cars.Register(context.Background(), show.ID, tt.reg); err != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegister_CarNumberCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	other := testutil.SeedShow(t, env.sqlite, "fall-show", true)
	f := gofakeit.New(3)

	first, err := env.cars.Register(ctx, show.ID, fakeRegistration(f, 5))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := env.cars.Register(ctx, show.ID, fakeRegistration(f, 5)); err != services.ErrCarNumberTaken {
		t.Fatalf("expected ErrCarNumberTaken, got %v", err)
	}
	if _, err := env.cars.Register(ctx, other.ID, fakeRegistration(f, 5)); err != nil {
		t.Fatalf("same number in another show should be allowed: %v", err)
	}

	kept, err := env.cars.CarByToken(ctx, show.ID, first.Token)
	if err != nil {
		t.Fatalf("CarByToken failed: %v", err)
	}
	if kept.Owner.Name != first.Owner.Name {
		t.Error("collision must not overwrite the existing owner")
	}
}

func TestCreatePlaceholders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	testutil.SeedCar(t, env.sqlite, show.ID, 3, "tok-3")

	created, err := env.cars.CreatePlaceholders(ctx, adminSession(), show.ID, 1, 5)
	if err != nil {
		t.Fatalf("CreatePlaceholders failed: %v", err)
	}
	if created != 4 {
		t.Errorf("expected 4 created (number 3 taken), got %d", created)
	}

	cars, err := env.cars.ListCars(ctx, show.ID)
	if err != nil {
		t.Fatalf("ListCars failed: %v", err)
	}
	if len(cars) != 5 {
		t.Fatalf("expected 5 cars, got %d", len(cars))
	}
	placeholders := 0
	tokens := map[string]bool{}
	for _, c := range cars {
		if c.IsPlaceholder() {
			placeholders++
		}
		tokens[c.Token] = true
	}
	if placeholders != 4 {
		t.Errorf("expected 4 placeholders, got %d", placeholders)
	}
	if len(tokens) != 5 {
		t.Error("expected unique tokens")
	}

	again, err := env.cars.CreatePlaceholders(ctx, adminSession(), show.ID, 1, 5)
	if err != nil || again != 0 {
		t.Errorf("expected a no-op rerun, got %d, %v", again, err)
	}
}

func TestCreatePlaceholders_Range(t *testing.T) {
	env := newTestEnv(t)
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	for _, tc := range []struct{ start, count int }{{0, 5}, {1, 0}, {1, 1001}, {-1, 10}} {
		if _, err := env.cars.CreatePlaceholders(context.Background(), adminSession(), show.ID, tc.start, tc.count); err != services.ErrInvalidPlaceholderRange {
			t.Errorf("start=%d count=%d: expected ErrInvalidPlaceholderRange, got %v", tc.start, tc.count, err)
		}
	}
	if _, err := env.cars.CreatePlaceholders(context.Background(), expiredSession(), show.ID, 1, 1); err != auth.ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestCreatePlaceholders_StopsOnError(t *testing.T) {
	env := newTestEnv(t, withRepo(func(r repository.FullRepository) repository.FullRepository {
		m := mock.NewRepository(r)
		m.CreateCarError = stderrors.New("disk full")
		return m
	}))
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)

	created, err := env.cars.CreatePlaceholders(context.Background(), adminSession(), show.ID, 1, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	if created != 0 {
		t.Errorf("expected 0 created, got %d", created)
	}
}

func TestCheckIn_Placeholder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	if _, err := env.cars.CreatePlaceholders(ctx, adminSession(), show.ID, 10, 1); err != nil {
		t.Fatalf("CreatePlaceholders failed: %v", err)
	}
	cars, _ := env.cars.ListCars(ctx, show.ID)
	token := cars[0].Token

	car, err := env.cars.CheckIn(ctx, show.ID, token, services.CheckIn{
		Name: "Ray Ortiz", Phone: "555-0111", Email: "ray@example.com", Year: "1969", Make: "Chevrolet", Model: "Camaro",
	})
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if car.IsPlaceholder() || car.Owner.Name != "Ray Ortiz" || car.Model != "Camaro" {
		t.Errorf("unexpected car after check-in %+v", car)
	}
	if car.CarNumber != 10 || car.Token != token {
		t.Error("check-in must not change number or token")
	}
}

func TestCheckIn_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")

	if _, err := env.cars.CheckIn(ctx, show.ID, "nope", services.CheckIn{}); err != services.ErrCarNotFound {
		t.Errorf("expected ErrCarNotFound, got %v", err)
	}
	if _, err := env.cars.CheckIn(ctx, show.ID, "tok-1", services.CheckIn{Name: "x"}); err != services.ErrMissingFields {
		t.Errorf("expected ErrMissingFields, got %v", err)
	}
}

func TestPublicCar_HidesOwner(t *testing.T) {
	env := newTestEnv(t)
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	testutil.SeedCar(t, env.sqlite, show.ID, 8, "tok-8")

	pub, err := env.cars.PublicCar(context.Background(), show.ID, "tok-8")
	if err != nil {
		t.Fatalf("PublicCar failed: %v", err)
	}
	want := services.PublicCar{CarNumber: 8, Year: "1967", Make: "Ford", Model: "Mustang"}
	if *pub != want {
		t.Errorf("expected %+v, got %+v", want, *pub)
	}
}

func TestMarkWaiverReceived(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	show := testutil.SeedShow(t, env.sqlite, "spring-show", true)
	other := testutil.SeedShow(t, env.sqlite, "fall-show", true)
	car := testutil.SeedCar(t, env.sqlite, show.ID, 1, "tok-1")
	foreign := testutil.SeedCar(t, env.sqlite, other.ID, 1, "tok-f")

	for i := 0; i < 2; i++ {
		if err := env.cars.MarkWaiverReceived(ctx, adminSession(), show.ID, car.ID, ""); err != nil {
			t.Fatalf("MarkWaiverReceived failed: %v", err)
		}
	}
	waivers, err := env.cars.ListWaivers(ctx, show.ID)
	if err != nil {
		t.Fatalf("ListWaivers failed: %v", err)
	}
	if len(waivers) != 1 || waivers[0].ReceivedBy != "admin" {
		t.Errorf("expected one waiver received by admin, got %+v", waivers)
	}

	if err := env.cars.MarkWaiverReceived(ctx, adminSession(), show.ID, foreign.ID, "gate"); err != services.ErrCarNotFound {
		t.Errorf("expected ErrCarNotFound for a car in another show, got %v", err)
	}
	if err := env.cars.MarkWaiverReceived(ctx, nil, show.ID, car.ID, "gate"); err != auth.ErrNoSession {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestVoteLinks(t *testing.T) {
	env := newTestEnv(t)
	car := &models.Car{CarNumber: 4, Token: "abc-123"}

	links := env.cars.VoteLinks("spring-show", car)
	if links.CheckInURL != testBaseURL+"/checkin/spring-show/abc-123" {
		t.Errorf("unexpected check-in URL %q", links.CheckInURL)
	}
	if len(links.Categories) != len(models.Categories) {
		t.Fatalf("expected %d links, got %d", len(models.Categories), len(links.Categories))
	}
	if links.Categories[0].URL != testBaseURL+"/v/spring-show/abc-123/army" {
		t.Errorf("unexpected first link %q", links.Categories[0].URL)
	}
	if links.Categories[6].URL != testBaseURL+"/v/spring-show/abc-123/peoples-choice" {
		t.Errorf("unexpected last link %q", links.Categories[6].URL)
	}
}

func TestQRCode_PNG(t *testing.T) {
	env := newTestEnv(t)
	png, err := env.cars.QRCode(testBaseURL+"/v/spring-show/abc/army", 0)
	if err != nil {
		t.Fatalf("QRCode failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("expected PNG output")
	}
}
