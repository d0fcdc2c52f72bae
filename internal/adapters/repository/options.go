package repository

import (
	"time"

	"github.com/okian/arena/pkg/logger"
)

type pgOptions struct {
	maxConns        int32
	minConns        int32
	maxConnLifetime time.Duration
	migrate         bool
	log             logger.Logger
}

// Option applies a configuration option to the Postgres store.
type Option func(*pgOptions)

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(o *pgOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithMinConns keeps n connections warm.
func WithMinConns(n int32) Option {
	return func(o *pgOptions) {
		if n >= 0 {
			o.minConns = n
		}
	}
}

// WithMaxConnLifetime recycles connections older than d.
func WithMaxConnLifetime(d time.Duration) Option {
	return func(o *pgOptions) {
		if d > 0 {
			o.maxConnLifetime = d
		}
	}
}

// WithMigrations controls whether schema migrations run on open.
func WithMigrations(enabled bool) Option {
	return func(o *pgOptions) {
		o.migrate = enabled
	}
}

// WithLogger sets the logger used for migration progress.
func WithLogger(l logger.Logger) Option {
	return func(o *pgOptions) {
		if l != nil {
			o.log = l
		}
	}
}
