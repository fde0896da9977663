package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
jwt:
  signing_key: secret
  issuer: recoveryhub
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultCirclesConfig(), cfg.Circles)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "secret", cfg.JWT.SigningKey)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: db.internal
    port: 5432
circles:
  max_circles_per_user: 3
  store_timeout: 2s
`)
	t.Setenv("CIRCLES_REDEEM_ATTEMPT_LIMIT", "4")
	t.Setenv("DATABASE_POSTGRES_HOST", "override.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Circles.MaxCirclesPerUser)
	assert.Equal(t, 2*time.Second, cfg.Circles.StoreTimeout)
	assert.Equal(t, 4, cfg.Circles.RedeemAttemptLimit)
	assert.Equal(t, "override.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.DSN(), "host=override.internal port=5432")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
