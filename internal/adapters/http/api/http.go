// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/arena/internal/adapters/http/auth"
	"github.com/okian/arena/internal/adapters/http/swagger"
	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/profile"
	"github.com/okian/arena/internal/domain/stats"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	GetProfile(ctx context.Context, userID string) (model.User, error)
	UpdateProfile(ctx context.Context, actorID, userID string, upd profile.Update) (model.User, error)
	Achievements(ctx context.Context, userID string) ([]model.Achievement, error)
	EvaluateNow(ctx context.Context, actorID, userID string) ([]model.Achievement, error)

	Summary(ctx context.Context, userID string) (stats.Summary, error)
	Progress(ctx context.Context, userID string) ([]stats.ProgressPoint, error)
	Activity(ctx context.Context, userID string) ([]stats.ActivityPoint, error)

	CreateCompetition(ctx context.Context, actorID string, in service.NewCompetition) (model.Competition, error)
	ListCompetitions(ctx context.Context, filter model.CompetitionFilter) ([]model.Competition, error)
	GetCompetition(ctx context.Context, id string) (model.Competition, error)
	JoinCompetition(ctx context.Context, actorID, id string) (model.Competition, error)
	RecordWinners(ctx context.Context, actorID, id, eventID string, winners []string) (service.WinnersResult, error)

	GetStats(ctx context.Context) map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps           Dependencies
	verifier       *auth.Verifier
	notifications  http.Handler
	allowedOrigins []string
	requestTimeout time.Duration
	checks         []readinessCheck
	startedAt      time.Time
	logger         logger.Logger
	router         chi.Router
}

// NewServer creates the API server. verifier checks session tokens.
func NewServer(deps Dependencies, verifier *auth.Verifier, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		verifier:       verifier,
		allowedOrigins: []string{"*"},
		requestTimeout: 30 * time.Second,
		startedAt:      time.Now(),
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	swagger.Register(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))
		r.Use(auth.Authenticate(s.verifier, s.fail))
		requireSession := auth.Require(s.fail)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.With(requireSession).Put("/", s.handleUpdateProfile)
			r.Get("/achievements", s.handleAchievements)
			r.With(requireSession).Post("/achievements/evaluate", s.handleEvaluate)
			r.Get("/stats", s.handleSummary)
			r.Get("/charts/progress", s.handleProgress)
			r.Get("/charts/activity", s.handleActivity)
		})

		r.Route("/competitions", func(r chi.Router) {
			r.Get("/", s.handleListCompetitions)
			r.With(requireSession).Post("/", s.handleCreateCompetition)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCompetition)
				r.With(requireSession).Post("/join", s.handleJoin)
				r.With(requireSession).Post("/winners", s.handleRecordWinners)
			})
		})
	})

	if s.notifications != nil {
		r.With(auth.Authenticate(s.verifier, s.fail)).Handle("/ws/notifications", s.notifications)
	}
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its kind maps to. Server errors
// are logged and their detail hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("requestId", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail adapts writeError to auth.ErrorWriter.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, err)
}

// decodeJSON reads one JSON document from the body into v.
func decodeJSON(r *http.Request, w http.ResponseWriter, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// session returns the caller's user id, or "" for anonymous requests.
func session(r *http.Request) string {
	s, _ := auth.FromContext(r.Context())
	return s.UserID
}
