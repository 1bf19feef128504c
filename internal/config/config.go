package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	GeoIPPath    string
	JWTSecret    string

	// Attack history tuning.
	HistoryRetention  time.Duration
	HistorySweepEvery time.Duration
	MaxStatRecords    int

	// Country gate: "disabled", "allow" or "deny" plus a comma-separated
	// ISO country code list.
	GeoGateMode      string
	GeoGateCountries []string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:         getEnv("DOLOS_ENV", "development"),
		HTTPPort:            getEnv("DOLOS_HTTP_PORT", "8080"),
		DatabasePath:        getEnv("DOLOS_DB_PATH", filepath.Join("data", "dolos.db")),
		GeoIPPath:           getEnv("DOLOS_GEOIP_DB", ""),
		JWTSecret:           getEnv("DOLOS_JWT_SECRET", ""),
		HistoryRetention:  getEnvDuration("DOLOS_HISTORY_RETENTION", time.Hour),
		HistorySweepEvery: getEnvDuration("DOLOS_HISTORY_SWEEP_INTERVAL", 5*time.Minute),
		MaxStatRecords:    getEnvInt("DOLOS_MAX_STAT_RECORDS", 10000),
		GeoGateMode:       getEnv("DOLOS_GEO_GATE_MODE", "disabled"),
		GeoGateCountries:  getEnvList("DOLOS_GEO_GATE_COUNTRIES"),
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return fallback
}
