package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, EnvLocal, cfg.Environment)
	assert.Equal(t, devJWTSecret, cfg.JWT.SigningKey)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TokenTTL)
	assert.True(t, cfg.SeedDemoData)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "trustbridge.ledger", cfg.Kafka.LedgerTopic)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", EnvProduction)
	t.Setenv("JWT_SECRET", "prod-secret")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example, https://admin.example ,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")
	t.Setenv("AI_ENGINE_URL", "http://engine:8001/")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example", "https://admin.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Hour, cfg.JWT.TokenTTL)
	assert.Equal(t, "http://engine:8001", cfg.AIEngineURL)
	assert.Len(t, cfg.TrustedProxies, 1)
	assert.False(t, cfg.SeedDemoData)
}

func TestFromEnvErrors(t *testing.T) {
	t.Setenv("ENVIRONMENT", EnvProduction)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ACCESS_TOKEN_TTL", "forever")
	t.Setenv("TRUSTED_PROXIES", "nope")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL")
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestEngineFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "")
		t.Setenv("GEMINI_API_KEY", "")

		cfg, err := EngineFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8001", cfg.Addr)
		assert.Equal(t, "gemini-2.0-flash-exp", cfg.Gemini.Model)
		assert.InDelta(t, 0.3, cfg.Gemini.Temperature, 1e-9)
		assert.Equal(t, 8192, cfg.Gemini.MaxOutputTokens)
		assert.Equal(t, 100, cfg.RateLimitPerMinute)
	})

	t.Run("production needs internal token", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", EnvProduction)
		t.Setenv("INTERNAL_TOKEN", "")

		_, err := EngineFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "INTERNAL_TOKEN")
	})

	t.Run("bad temperature", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "")
		t.Setenv("GEMINI_TEMPERATURE", "7")

		_, err := EngineFromEnv()
		require.Error(t, err)
	})
}
