package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// VotingEndLayout is the wall-clock format accepted for voting.end.
const VotingEndLayout = "2006-01-02 15:04"

// Config holds every setting the server and the admin tool read at startup.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Admin     AdminConfig     `yaml:"admin"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Voting    VotingConfig    `yaml:"voting"`
	Show      ShowConfig      `yaml:"show"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// TrustProxy takes client IPs from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AdminConfig holds admin console authentication settings.
type AdminConfig struct {
	Password    string        `yaml:"password"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// StripeConfig holds payment provider credentials. An empty secret key runs
// the server against the in-memory mock gateway.
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency"`
	APIURL        string `yaml:"api_url"`
}

// VotingConfig holds voting rules.
type VotingConfig struct {
	End                      string `yaml:"end"`
	Timezone                 string `yaml:"timezone"`
	RequireBranchAttestation bool   `yaml:"require_branch_attestation"`
}

// ShowConfig describes the show created on first start.
type ShowConfig struct {
	Slug              string `yaml:"slug"`
	Title             string `yaml:"title"`
	Date              string `yaml:"date"`
	Time              string `yaml:"time"`
	LocationName      string `yaml:"location_name"`
	Address           string `yaml:"address"`
	Benefiting        string `yaml:"benefiting"`
	SuggestedDonation string `yaml:"suggested_donation"`
	Description       string `yaml:"description"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	HTTP  bool   `yaml:"http"`
}

// RateLimitConfig bounds public checkout and login traffic per client IP.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{Path: "carshow.db"},
		Admin: AdminConfig{
			SessionTTL:  12 * time.Hour,
			IdleTimeout: 2 * time.Hour,
		},
		Stripe: StripeConfig{Currency: "usd"},
		Voting: VotingConfig{Timezone: "America/Chicago"},
		Show: ShowConfig{
			Slug:              "karman-charity-show",
			Title:             "Karman Charity Car Show",
			LocationName:      "Karman Community Lot",
			Benefiting:        "Local veterans",
			SuggestedDonation: "$10",
		},
		Log:       LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{PerSecond: 2, Burst: 10},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults, then
// applies environment overrides. A missing file falls back to defaults plus environment.
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY value: %v", err)
		}
		cfg.Server.TrustProxy = b
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("ADMIN_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_IDLE_TIMEOUT value: %v", err)
		}
		cfg.Admin.IdleTimeout = d
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.Stripe.SecretKey = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		cfg.Stripe.WebhookSecret = v
	}
	if v := os.Getenv("VOTING_END"); v != "" {
		cfg.Voting.End = v
	}
	if v := os.Getenv("VOTING_TIMEZONE"); v != "" {
		cfg.Voting.Timezone = v
	}
	if v := os.Getenv("REQUIRE_BRANCH_ATTESTATION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid REQUIRE_BRANCH_ATTESTATION value: %v", err)
		}
		cfg.Voting.RequireBranchAttestation = b
	}
	if v := os.Getenv("SHOW_SLUG"); v != "" {
		cfg.Show.Slug = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate checks settings that would otherwise fail later at request time.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Show.Slug == "" {
		return fmt.Errorf("show.slug is required")
	}
	if _, err := c.VotingDeadline(); err != nil {
		return err
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	return nil
}

// Location returns the configured voting time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Voting.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Voting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid voting.timezone %q: %w", c.Voting.Timezone, err)
	}
	return loc, nil
}

// VotingDeadline parses voting.end in the configured time zone. It returns nil
// when no deadline is configured.
func (c *Config) VotingDeadline() (*time.Time, error) {
	if strings.TrimSpace(c.Voting.End) == "" {
		return nil, nil
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	t, err := time.ParseInLocation(VotingEndLayout, strings.TrimSpace(c.Voting.End), loc)
	if err != nil {
		return nil, fmt.Errorf("invalid voting.end %q, want YYYY-MM-DD HH:MM: %w", c.Voting.End, err)
	}
	return &t, nil
}

// StripeEnabled reports whether real Stripe credentials were supplied.
func (c *Config) StripeEnabled() bool {
	return c.Stripe.SecretKey != ""
}
