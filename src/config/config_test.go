package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assafrot/api-keys-app/src/models"
)

var envKeys = []string{
	"PORT", "DATABASE_URL", "STORE", "JWT_SECRET", "ALLOWED_ORIGINS", "COOKIE_SECURE",
	"LOG_LEVEL", "LOG_FORMAT", "DEFAULT_MONTHLY_LIMIT", "TRACK_USAGE", "USAGE_RESET_ENABLED",
	"VALIDATION_RATE_PER_MINUTE", "VALIDATION_RATE_BURST", "POSTHOG_API_KEY", "POSTHOG_HOST",
	"POSTHOG_ENABLED", "OWNER_USERNAME", "OWNER_PASSWORD", "CONFIG_FILE",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if prev, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, prev) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 1000, cfg.DefaultMonthlyLimit)
	assert.Equal(t, 60, cfg.ValidationRatePerMinute)
	assert.Equal(t, 20, cfg.ValidationRateBurst)
	assert.False(t, cfg.TrackUsage)
	assert.False(t, cfg.UsageResetEnabled)
	assert.True(t, cfg.JWTSecretGenerated)
	assert.Len(t, cfg.JWTSecret, 32)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE", "Memory")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TRACK_USAGE", "yes")
	t.Setenv("DEFAULT_MONTHLY_LIMIT", "250")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.True(t, cfg.TrackUsage)
	assert.Equal(t, 250, cfg.DefaultMonthlyLimit)
	assert.False(t, cfg.JWTSecretGenerated)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}

func TestLoad_FileOverlayBelowEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
  cookie_secure: true
database:
  store: memory
keys:
  default_monthly_limit: 50
  usage_reset_enabled: true
rate_limit:
  per_minute: 10
  burst: 2
logging:
  level: debug
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Port, "environment wins over file")
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 50, cfg.DefaultMonthlyLimit)
	assert.True(t, cfg.UsageResetEnabled)
	assert.Equal(t, 10, cfg.ValidationRatePerMinute)
	assert.Equal(t, 2, cfg.ValidationRateBurst)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat, "unset file fields keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"unknown store", func(c *Config) { c.Store = "redis" }},
		{"missing database url", func(c *Config) { c.DatabaseURL = "" }},
		{"zero default limit", func(c *Config) { c.DefaultMonthlyLimit = 0 }},
		{"default limit above integer column", func(c *Config) { c.DefaultMonthlyLimit = models.MaxCounter + 1 }},
		{"zero burst", func(c *Config) { c.ValidationRateBurst = 0 }},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }},
	}

	base := Default()
	base.JWTSecret = secret
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWTSecret = secret
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "abc")
	assert.Equal(t, 5, getEnvInt("CONFIG_TEST_INT", 5))
}
