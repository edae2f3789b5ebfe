package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 5, cfg.AuthRateLimitPerMinute)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_port: ":9090"
request_timeout_seconds: 5
cors_allowed_origins: ["https://app.example.com"]
index_concurrency: 2
`), 0o600))

	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("INDEX_CONCURRENCY", "8")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 2, cfg.IndexConcurrency)
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := &Config{DatabaseDriver: DriverPostgres, RequestTimeout: time.Second}
	assert.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/db"
	assert.NoError(t, cfg.Validate())
}
