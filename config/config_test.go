package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("APP_ENV", "development")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Database.Store)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{""}, cfg.Scheduler.Series)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.RecalculateInterval)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_PostgresFromComponents(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "engine")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "progress")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Database.Store)
	assert.Equal(t, "postgres://engine:pw@db:5432/progress?sslmode=disable", cfg.Database.URL)
}

func TestFromEnv_Validation(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("APP_ENV", "production")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE=memory is not allowed in production")

	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE", "mongo")
	_, err = FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE must be memory or postgres")
}

func TestFromEnv_Lists(t *testing.T) {
	t.Setenv("SCHEDULER_SERIES", "-, spring ,,autumn")
	t.Setenv("HTTP_API_KEY_HASHES", "h1,h2")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"", "spring", "autumn"}, cfg.Scheduler.Series)
	assert.Equal(t, []string{"h1", "h2"}, cfg.HTTP.APIKeyHashes)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=9191\nLOG_FORMAT=text\n"), 0o600))

	// godotenv never overrides variables that are already set.
	t.Setenv("HTTP_PORT", "")
	os.Unsetenv("HTTP_PORT")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.HTTP.Port)
	assert.Equal(t, "json", cfg.Observability.LogFormat)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
