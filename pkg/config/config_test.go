package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TODOD_TOKEN_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.HealthAddr())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "todod", cfg.Auth.TokenIssuer)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "@hourly", cfg.Janitor.InvitationPurgeSchedule)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TODOD_TOKEN_SECRET", testSecret)
	t.Setenv("TODOD_PORT", "9999")
	t.Setenv("TODOD_TOKEN_TTL", "1h")
	t.Setenv("TODOD_RATELIMIT_ENABLED", "false")
	t.Setenv("TODOD_LOG_LEVEL", "debug")
	t.Setenv("TODOD_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
}

func TestValidateRejectsMissingSecret(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TODOD_TOKEN_SECRET")
}

func TestValidateRejectsShortSecret(t *testing.T) {
	t.Setenv("TODOD_TOKEN_SECRET", "short")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Setenv("TODOD_TOKEN_SECRET", testSecret)
	t.Setenv("TODOD_LOG_LEVEL", "verbose")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TODOD_LOG_LEVEL")
}
