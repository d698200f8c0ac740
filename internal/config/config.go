// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers .env, an optional YAML file and JURY_* environment variables.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogJSON switches log output to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// StorageDriver selects the backend: memory, postgres or sqlite.
	StorageDriver string `koanf:"storage_driver" validate:"oneof=memory postgres sqlite"`

	// StorageDSN is the connection string of the SQL backends.
	StorageDSN string `koanf:"storage_dsn" validate:"required_unless=StorageDriver memory"`

	// StorageDebug logs every SQL query.
	StorageDebug bool `koanf:"storage_debug"`

	// Epsilon is the probability of serving a random candidate instead of
	// the most informative one.
	Epsilon float64 `koanf:"epsilon" validate:"gte=0,lte=1"`

	// MinViews is the visit count below which a project is prioritised.
	MinViews int `koanf:"min_views" validate:"gte=0"`

	// BusyTimeoutMS is how long a project counts as occupied by the judge
	// that was last assigned to it.
	BusyTimeoutMS int `koanf:"busy_timeout_ms" validate:"gt=0"`

	// RandomSeed fixes the selection random source; 0 seeds from the clock.
	RandomSeed int64 `koanf:"random_seed"`

	// DedupeSize bounds the number of remembered comparison batches.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=0"`

	// TopCacheTTLMS is how long prize rankings are cached. 0 disables caching.
	TopCacheTTLMS int `koanf:"top_cache_ttl_ms" validate:"gte=0"`

	// MaxTopLimit caps GET /prizes/{id}/top?limit.
	MaxTopLimit int `koanf:"max_top_limit" validate:"gt=0"`

	// RateLimitPerMinute is the per-IP request budget. 0 disables limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute" validate:"gte=0"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		StorageDriver:      "memory",
		Epsilon:            0.25,
		MinViews:           2,
		BusyTimeoutMS:      10 * 60 * 1000,
		DedupeSize:         50_000,
		TopCacheTTLMS:      2_000,
		MaxTopLimit:        100,
		RateLimitPerMinute: 600,
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// BusyTimeout returns BusyTimeoutMS as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

// TopCacheTTL returns TopCacheTTLMS as a duration.
func (c *Config) TopCacheTTL() time.Duration {
	return time.Duration(c.TopCacheTTLMS) * time.Millisecond
}
