package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL": "postgres://localhost/bikes",
		"JWT_SECRET":   "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "@every 5m", cfg.SweepSchedule)
	assert.Equal(t, 7, cfg.QuotationValidityDays)
	assert.Equal(t, 14, cfg.InvoiceDueDays)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.Twilio.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"APP_PORT":                "9000",
		"DATABASE_URL":            "postgres://db/bikes",
		"JWT_SECRET":              "secret",
		"RUN_MIGRATIONS":          "false",
		"TOKEN_TTL":               "2h",
		"SWEEP_SCHEDULE":          "*/10 * * * *",
		"QUOTATION_VALIDITY_DAYS": "3",
		"LOG_LEVEL":               "debug",
		"TWILIO_ACCOUNT_SID":      "AC123",
		"TWILIO_AUTH_TOKEN":       "token",
		"TWILIO_FROM_NUMBER":      "+260970000000",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "*/10 * * * *", cfg.SweepSchedule)
	assert.Equal(t, 3, cfg.QuotationValidityDays)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.Twilio.Enabled())
}

func TestFromEnv_Errors(t *testing.T) {
	base := func(extra map[string]string) map[string]string {
		vars := map[string]string{"DATABASE_URL": "postgres://db/bikes", "JWT_SECRET": "secret"}
		for k, v := range extra {
			vars[k] = v
		}
		return vars
	}
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"missing required", map[string]string{}, "DATABASE_URL, JWT_SECRET"},
		{"bad bool", base(map[string]string{"RUN_MIGRATIONS": "maybe"}), "RUN_MIGRATIONS"},
		{"bad duration", base(map[string]string{"TOKEN_TTL": "forever"}), "TOKEN_TTL"},
		{"zero validity", base(map[string]string{"QUOTATION_VALIDITY_DAYS": "0"}), "QUOTATION_VALIDITY_DAYS"},
		{"bad due days", base(map[string]string{"INVOICE_DUE_DAYS": "two"}), "INVOICE_DUE_DAYS"},
		{"bad level", base(map[string]string{"LOG_LEVEL": "loud"}), "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(tt.vars))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
