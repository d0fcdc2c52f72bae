package dedupe

import "time"

type options struct {
	maxSize int
	prefix  string
	ttl     time.Duration
}

// Option configures a Deduper.
type Option func(*options)

// WithMaxSize bounds the in-memory deduper. maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL sets how long Redis remembers an id.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}
