package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/okian/arena/internal/adapters/http/api"
	"github.com/okian/arena/internal/adapters/http/auth"
	"github.com/okian/arena/internal/adapters/http/ws"
	"github.com/okian/arena/internal/adapters/notify"
	"github.com/okian/arena/internal/adapters/repository"
	app "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 15 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We collect our own system metrics on a custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if cfg.JWTSecret == config.DefaultJWTSecret {
		log.Warn(ctx, "using the development jwt_secret; set ARENA_JWT_SECRET in production")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "arena exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	// Stop accepting requests, hang up websockets, then drain queued evaluations.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	a.hub.Close()
	if err := a.svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// application is the wired process, ready to start.
type application struct {
	svc     *app.Service
	hub     *ws.Hub
	handler http.Handler
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires stores, notifiers, the service and the HTTP handler from cfg.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	a := &application{}

	users, competitions, pg, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	var apiOpts []api.Option
	if pg != nil {
		a.closers = append(a.closers, pg.Close)
		apiOpts = append(apiOpts, api.WithReadinessCheck("postgres", pg.Ping))
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	a.hub = ws.NewHub(verifier, originChecker(cfg.AllowedOrigins()), log.Named("ws"))

	notifiers := notify.Multi{notify.NewLogNotifier(log.Named("notify")), a.hub}
	svcOpts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.EventQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithEvaluationTimeout(cfg.EvaluationTimeout()),
		app.WithMaxListLimit(cfg.MaxListLimit),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			a.close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		apiOpts = append(apiOpts, api.WithReadinessCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		notifiers = append(notifiers, notify.NewRedisNotifier(client, cfg.RedisChannel))
		svcOpts = append(svcOpts, app.WithDeduper(dedupe.NewRedisDeduper(client)))
		log.Info(ctx, "redis enabled", logger.String("addr", cfg.RedisAddr), logger.String("channel", cfg.RedisChannel))
	}
	svcOpts = append(svcOpts, app.WithNotifier(notifiers))

	a.svc = app.New(users, competitions, svcOpts...)
	apiOpts = append(apiOpts,
		api.WithLogger(log.Named("http")),
		api.WithAllowedOrigins(cfg.AllowedOrigins()),
		api.WithNotifications(a.hub),
	)
	a.handler = api.NewServer(a.svc, verifier, apiOpts...).Handler()
	return a, nil
}

// openStores returns the configured stores. pg is nil for the memory backend.
func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.UserStore, repository.CompetitionStore, *repository.Postgres, error) {
	if cfg.StoreBackend != config.BackendPostgres {
		return repository.NewMemoryUserStore(), repository.NewMemoryCompetitionStore(), nil, nil
	}
	pg, err := repository.OpenPostgres(ctx, cfg.PostgresDSN,
		repository.WithMaxConns(int32(cfg.PostgresMaxConns)),
		repository.WithLogger(log.Named("postgres")),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	return pg.Users(), pg.Competitions(), pg, nil
}

// originChecker allows websocket origins from the CORS list. "*" allows all.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc serviceGauges) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies queue and worker gauges from svc.
func updateServiceMetrics(svc serviceGauges) {
	metrics.UpdateQueueSize(svc.QueueLen())
	metrics.UpdateWorkerCount(svc.WorkerCount())
}

// serviceGauges is the cheap subset of the service the metrics loop reads.
type serviceGauges interface {
	QueueLen() int
	WorkerCount() int
}
