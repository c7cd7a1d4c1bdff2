// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the tracker service.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// NATSURL is the NATS server to publish live positions to.
	// Empty (the default) disables position publishing.
	NATSURL string

	// FlushInterval is how often buffered samples are persisted.
	// Defaults to 30s. Set FLUSH_INTERVAL to a Go duration to override.
	FlushInterval time.Duration

	// SimSeed seeds the simulated location source so runs are
	// reproducible. Defaults to 1.
	SimSeed int64

	// SimBaseLat and SimBaseLon anchor the simulated random walk.
	// They default to downtown Dubai.
	SimBaseLat float64
	SimBaseLon float64

	// SimInterval is the spacing between simulated fixes. Defaults to 1s.
	SimInterval time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or
// describing the first malformed value.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		NATSURL:     os.Getenv("NATS_URL"),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.FlushInterval, err = getDuration("FLUSH_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SimInterval, err = getDuration("SIM_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SimSeed, err = getInt64("SIM_SEED", 1); err != nil {
		return Config{}, err
	}
	if cfg.SimBaseLat, err = getFloat("SIM_BASE_LAT", 25.276987); err != nil {
		return Config{}, err
	}
	if cfg.SimBaseLon, err = getFloat("SIM_BASE_LON", 55.296249); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration parses the environment variable named by key as a Go
// duration, returning fallback when it is unset.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", key, v)
	}
	return d, nil
}

// getInt64 parses the environment variable named by key as an integer,
// returning fallback when it is unset.
func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

// getFloat parses the environment variable named by key as a float,
// returning fallback when it is unset.
func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
