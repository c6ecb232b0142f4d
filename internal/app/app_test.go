package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/karmankarshows/carshow/internal/auth"
	"github.com/karmankarshows/carshow/internal/config"
	"github.com/karmankarshows/carshow/internal/logger"
	"github.com/karmankarshows/carshow/pkg/checkout"
)

// lanProvider reports a single private LAN address.
var lanProvider = mockNetworkProvider{interfaces: []networkInterface{
	mockInterface{flags: net.FlagUp, addrs: []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)}}},
}}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "carshow.db")
	cfg.Server.BaseURL = "http://show.test"
	cfg.Show.Slug = "spring-show"
	cfg.Show.Title = "Spring Show"
	return cfg
}

func createTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{withNetwork(lanProvider)}, opts...)
	a, err := New(cfg, logger.Discard(), auth.New("test-password"), opts...)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNew_InitializesApp(t *testing.T) {
	a := createTestApp(t, testConfig(t))

	if a.handlers == nil {
		t.Error("expected handlers to be initialized")
	}
	if a.repo == nil {
		t.Error("expected repo to be initialized")
	}
	if a.cancelCountdown == nil {
		t.Error("expected cancelCountdown to be set")
	}
	if a.show == nil || a.show.Slug != "spring-show" {
		t.Errorf("expected the configured show to exist, got %+v", a.show)
	}
	if a.BaseURL() != "http://show.test" {
		t.Errorf("expected configured base URL, got %q", a.BaseURL())
	}
}

func TestNew_UsesMockGatewayWithoutStripeKey(t *testing.T) {
	a := createTestApp(t, testConfig(t))
	if _, ok := a.gateway.(*checkout.MockGateway); !ok {
		t.Errorf("expected mock gateway, got %T", a.gateway)
	}
}

func TestNew_UsesStripeGatewayWithKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stripe.SecretKey = "sk_test_123"
	a := createTestApp(t, cfg)
	if _, ok := a.gateway.(*checkout.StripeGateway); !ok {
		t.Errorf("expected stripe gateway, got %T", a.gateway)
	}
}

func TestNew_FailsWithBadDBPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = "/nonexistent/path/db.sqlite"

	if _, err := New(cfg, logger.Discard(), auth.New("pw")); err == nil {
		t.Error("expected error for invalid db path")
	}
}

func TestNew_FailsWithBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Voting.Timezone = "Mars/Olympus_Mons"

	if _, err := New(cfg, logger.Discard(), auth.New("pw")); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestNew_KeepsShowStateAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)
	first := createTestApp(t, cfg)
	if err := first.repo.SetVotingOpen(context.Background(), first.show.ID, false); err != nil {
		t.Fatalf("SetVotingOpen failed: %v", err)
	}
	first.Close()

	second := createTestApp(t, cfg)
	if second.show.ID != first.show.ID {
		t.Errorf("expected the same show, got ids %d and %d", first.show.ID, second.show.ID)
	}
	if second.show.VotingOpen {
		t.Error("expected voting to stay closed after restart")
	}
}

func TestNew_AppliesConfiguredDeadline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Voting.Timezone = "America/Chicago"
	cfg.Voting.End = "2099-06-01 18:00"
	a := createTestApp(t, cfg)

	if a.show.VotingEndsAt == nil {
		t.Fatal("expected voting deadline to be set")
	}
	if got := a.show.VotingEndsAt.UTC().Hour(); got != 23 {
		t.Errorf("expected 18:00 Chicago (23:00 UTC), got %d:00 UTC", got)
	}
}

func TestApp_Router_ServesRequests(t *testing.T) {
	a := createTestApp(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/api/shows/active", nil)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var show struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &show); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if show.Slug != "spring-show" || show.Title != "Spring Show" {
		t.Errorf("unexpected show %+v", show)
	}
}

func TestApp_Run_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Addr = "127.0.0.1:0"
	a := createTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_Close_StopsCountdown(t *testing.T) {
	a := createTestApp(t, testConfig(t))
	a.Close()
	// Closing twice must not panic.
	a.cancelCountdown()
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		addr       string
		want       string
	}{
		{"configured kept", "https://show.example.org/", ":8080", "https://show.example.org"},
		{"empty uses LAN", "", ":9090", "http://192.168.1.20:9090"},
		{"localhost replaced", "http://localhost:8080", ":8080", "http://192.168.1.20:8080"},
		{"bad addr uses default port", "", "nonsense", "http://192.168.1.20:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveBaseURL(tt.configured, tt.addr, lanProvider); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// mockInterface implements networkInterface for testing
type mockInterface struct {
	flags net.Flags
	addrs []net.Addr
	err   error
}

func (m mockInterface) Flags() net.Flags {
	return m.flags
}

func (m mockInterface) Addrs() ([]net.Addr, error) {
	return m.addrs, m.err
}

// mockNetworkProvider implements networkProvider for testing
type mockNetworkProvider struct {
	interfaces []networkInterface
	err        error
}

func (m mockNetworkProvider) Interfaces() ([]networkInterface, error) {
	return m.interfaces, m.err
}

func TestGetPreferredIP_RealInterfaces(t *testing.T) {
	ip := getPreferredIP(realNetworkProvider{})
	if ip == "" {
		t.Fatal("IP should never be empty")
	}
	if ip != "localhost" {
		parsed := net.ParseIP(ip)
		if parsed == nil || parsed.To4() == nil {
			t.Errorf("expected IPv4 address or 'localhost', got: %s", ip)
		}
	}
}

func TestGetPreferredIP(t *testing.T) {
	ipNet := func(s string) net.Addr { return &net.IPNet{IP: net.ParseIP(s), Mask: net.CIDRMask(24, 32)} }

	tests := []struct {
		name     string
		provider mockNetworkProvider
		want     string
	}{
		{"network error", mockNetworkProvider{err: net.ErrClosed}, "localhost"},
		{"addrs error", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, err: net.ErrClosed},
		}}, "localhost"},
		{"ip addr type", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.5")}}},
		}}, "10.0.0.5"},
		{"public fallback", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("8.8.8.8")}},
		}}, "8.8.8.8"},
		{"private preferred over public", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("8.8.8.8"), ipNet("172.20.1.4")}},
		}}, "172.20.1.4"},
		{"ipv6 skipped", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp, addrs: []net.Addr{ipNet("fe80::1")}},
		}}, "localhost"},
		{"down interface skipped", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: 0, addrs: []net.Addr{ipNet("192.168.1.9")}},
		}}, "localhost"},
		{"loopback skipped", mockNetworkProvider{interfaces: []networkInterface{
			mockInterface{flags: net.FlagUp | net.FlagLoopback, addrs: []net.Addr{ipNet("127.0.0.1")}},
		}}, "localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getPreferredIP(tt.provider); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
