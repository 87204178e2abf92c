package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Env      string
	HTTPAddr string
	DB       PostgresConfig
	Session  SessionConfig
	Stripe   StripeConfig
	Quota    QuotaConfig
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
	Database string
	SSLMode  string
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	PriceIDProMonthly string
	FrontendURL       string
	// LiveEntitlementCheck makes the entitlement resolver confirm plans
	// against Stripe instead of trusting the stored record alone.
	LiveEntitlementCheck bool
}

type QuotaConfig struct {
	FreeSearches int
	FreeReveals  int
	ProSearches  int
	ProReveals   int
	// ResetSchedule is a cron expression for the periodic quota reset.
	ResetSchedule string
}

// LoadConfig reads the process environment once. Secrets are carried in the
// returned struct and handed to components at construction; nothing reads
// the environment after startup.
func LoadConfig() (*Config, error) {
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return nil, errors.New("SESSION_SECRET must be set")
	}

	ttl, err := parseDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	freeSearches, err := parseInt("QUOTA_FREE_SEARCHES", 25)
	if err != nil {
		return nil, err
	}
	freeReveals, err := parseInt("QUOTA_FREE_REVEALS", 5)
	if err != nil {
		return nil, err
	}
	proSearches, err := parseInt("QUOTA_PRO_SEARCHES", 1000)
	if err != nil {
		return nil, err
	}
	proReveals, err := parseInt("QUOTA_PRO_REVEALS", 200)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:      envOr("ENV", "local"),
		HTTPAddr: envOr("HTTP_ADDR", "0.0.0.0:8080"),
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     envOr("POSTGRES_PORT", "5432"),
			Database: envOr("POSTGRES_DB", "novahunt"),
			SSLMode:  envOr("POSTGRES_SSLMODE", "disable"),
		},
		Session: SessionConfig{
			Secret: sessionSecret,
			TTL:    ttl,
		},
		Stripe: StripeConfig{
			SecretKey:            os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:        os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceIDProMonthly:    os.Getenv("STRIPE_PRICE_ID_PRO_MONTHLY"),
			FrontendURL:          os.Getenv("FRONTEND_URL"),
			LiveEntitlementCheck: strings.EqualFold(os.Getenv("STRIPE_LIVE_ENTITLEMENT_CHECK"), "true"),
		},
		Quota: QuotaConfig{
			FreeSearches:  freeSearches,
			FreeReveals:   freeReveals,
			ProSearches:   proSearches,
			ProReveals:    proReveals,
			ResetSchedule: envOr("QUOTA_RESET_SCHEDULE", "@weekly"),
		},
	}

	return cfg, nil
}

// IsProduction reports whether the process runs with production settings
// (cookie Secure attribute, among others).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return v, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New(key + " must be a duration like 24h")
	}
	return v, nil
}
