// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the API server reads at start-up.
type Config struct {
	Port          string
	DatabaseURL   string
	RunMigrations bool
	LogLevel      slog.Level

	JWTSecret string
	TokenTTL  time.Duration

	SweepSchedule         string
	QuotationValidityDays int
	InvoiceDueDays        int

	Twilio TwilioConfig
}

// TwilioConfig holds SMS credentials. Notifications fall back to logging when
// AccountSID is empty.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Enabled reports whether SMS delivery is configured.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:          withDefault(getenv("APP_PORT"), "8080"),
		DatabaseURL:   getenv("DATABASE_URL"),
		JWTSecret:     getenv("JWT_SECRET"),
		SweepSchedule: withDefault(getenv("SWEEP_SCHEDULE"), "@every 5m"),
		Twilio: TwilioConfig{
			AccountSID: getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: getenv("TWILIO_FROM_NUMBER"),
		},
	}

	var err error
	if cfg.RunMigrations, err = parseBool(getenv("RUN_MIGRATIONS"), true); err != nil {
		return nil, fmt.Errorf("RUN_MIGRATIONS: %w", err)
	}
	if cfg.TokenTTL, err = parseDuration(getenv("TOKEN_TTL"), 24*time.Hour); err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if cfg.QuotationValidityDays, err = parseInt(getenv("QUOTATION_VALIDITY_DAYS"), 7); err != nil {
		return nil, fmt.Errorf("QUOTATION_VALIDITY_DAYS: %w", err)
	}
	if cfg.InvoiceDueDays, err = parseInt(getenv("INVOICE_DUE_DAYS"), 14); err != nil {
		return nil, fmt.Errorf("INVOICE_DUE_DAYS: %w", err)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(withDefault(getenv("LOG_LEVEL"), "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.QuotationValidityDays <= 0 {
		return fmt.Errorf("QUOTATION_VALIDITY_DAYS must be positive")
	}
	if c.InvoiceDueDays <= 0 {
		return fmt.Errorf("INVOICE_DUE_DAYS must be positive")
	}
	return nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func parseBool(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func parseInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseDuration(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}
