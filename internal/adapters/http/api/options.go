package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/arena/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithNotifications mounts h at /ws/notifications.
func WithNotifications(h http.Handler) Option {
	return func(s *Server) {
		s.notifications = h
	}
}

// WithAllowedOrigins sets the CORS origins. Empty keeps "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithRequestTimeout bounds each /api/v1 request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReadinessCheck adds a dependency probed by /readyz.
func WithReadinessCheck(name string, check func(context.Context) error) Option {
	return func(s *Server) {
		if check != nil {
			s.checks = append(s.checks, readinessCheck{name: name, check: check})
		}
	}
}
