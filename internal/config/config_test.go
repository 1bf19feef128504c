package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DOLOS_DB_PATH", filepath.Join(t.TempDir(), "dolos.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, time.Hour, cfg.HistoryRetention)
	assert.Equal(t, 5*time.Minute, cfg.HistorySweepEvery)
	assert.Equal(t, 10000, cfg.MaxStatRecords)
	assert.Equal(t, "disabled", cfg.GeoGateMode)
	assert.Nil(t, cfg.GeoGateCountries)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DOLOS_DB_PATH", filepath.Join(t.TempDir(), "dolos.db"))
	t.Setenv("DOLOS_ENV", "production")
	t.Setenv("DOLOS_HTTP_PORT", "9090")
	t.Setenv("DOLOS_HISTORY_RETENTION", "30m")
	t.Setenv("DOLOS_MAX_STAT_RECORDS", "500")
	t.Setenv("DOLOS_GEO_GATE_MODE", "deny")
	t.Setenv("DOLOS_GEO_GATE_COUNTRIES", "RU, KP ,CN")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 30*time.Minute, cfg.HistoryRetention)
	assert.Equal(t, 500, cfg.MaxStatRecords)
	assert.Equal(t, "deny", cfg.GeoGateMode)
	assert.Equal(t, []string{"RU", "KP", "CN"}, cfg.GeoGateCountries)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("DOLOS_DB_PATH", filepath.Join(t.TempDir(), "dolos.db"))
	t.Setenv("DOLOS_HISTORY_RETENTION", "soon")
	t.Setenv("DOLOS_MAX_STAT_RECORDS", "lots")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.HistoryRetention)
	assert.Equal(t, 10000, cfg.MaxStatRecords)
}
