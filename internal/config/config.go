// Package config defines service configuration and its defaults.
//
// Values are layered by Load: defaults from New, then an optional YAML file
// named by ARENA_CONFIG, then ARENA_* environment variables.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory evaluation queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the completion event id cache.
	DedupeSize int `koanf:"dedupe_size"`
	// EvaluationTimeoutMS caps one background evaluation.
	EvaluationTimeoutMS int `koanf:"evaluation_timeout_ms"`

	// StoreBackend selects memory or postgres.
	StoreBackend     string `koanf:"store_backend"`
	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`

	// RedisAddr enables publishing notifications to redis when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisChannel  string `koanf:"redis_channel"`

	// JWTSecret verifies HS256 session tokens from the identity provider.
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	// CORSAllowedOrigins is a comma separated origin list for the dashboard.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// MaxListLimit caps GET /competitions?limit.
	MaxListLimit int `koanf:"max_list_limit"`
}

// DefaultJWTSecret is only meant for local development.
const DefaultJWTSecret = "arena-dev-secret"

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		EventQueueSize:      10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		DedupeSize:          100_000,
		EvaluationTimeoutMS: 5_000,
		StoreBackend:        BackendMemory,
		PostgresMaxConns:    10,
		RedisChannel:        "arena:achievements",
		JWTSecret:           DefaultJWTSecret,
		JWTIssuer:           "",
		CORSAllowedOrigins:  "*",
		MaxListLimit:        100,
	}
}

// EvaluationTimeout returns EvaluationTimeoutMS as a duration.
func (c *Config) EvaluationTimeout() time.Duration {
	return time.Duration(c.EvaluationTimeoutMS) * time.Millisecond
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreBackend != BackendMemory && c.StoreBackend != BackendPostgres:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	case c.StoreBackend == BackendPostgres && strings.TrimSpace(c.PostgresDSN) == "":
		return fmt.Errorf("%w: postgres_dsn is required for the postgres backend", ErrInvalidConfig)
	case strings.TrimSpace(c.JWTSecret) == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.MaxListLimit < 1:
		return fmt.Errorf("%w: max_list_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
