package achievement

import (
	"time"

	"github.com/okian/arena/pkg/logger"
)

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithNotifier sets who is told about new achievements.
func WithNotifier(n Notifier) Option {
	return func(e *Evaluator) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger sets a custom logger for the evaluator.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLockStripes sets how many per-user lock stripes are used.
func WithLockStripes(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.stripes = n
		}
	}
}
