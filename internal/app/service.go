// Package service wires stores, the achievement evaluator and the async
// evaluation pipeline into the operations the HTTP API exposes.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/arena/internal/adapters/mq/queue"
	workerpool "github.com/okian/arena/internal/adapters/mq/worker"
	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/achievement"
	"github.com/okian/arena/internal/domain/dedupe"
	"github.com/okian/arena/internal/domain/profile"
	"github.com/okian/arena/pkg/logger"
)

// Service implements the API dependencies for profiles, competitions and achievements.
type Service struct {
	mu sync.RWMutex

	users        repository.UserStore
	competitions repository.CompetitionStore
	profiles     *profile.Service
	evaluator    *achievement.Evaluator
	deduper      dedupe.Deduper
	queue        *eventqueue.InMemoryQueue
	pool         *workerpool.Pool
	notifier     achievement.Notifier

	workerCount  int
	queueSize    int
	dedupeSize   int
	evalTimeout  time.Duration
	maxListLimit int
	now          func() time.Time

	started   bool
	startedAt time.Time
	logger    logger.Logger
}

// New constructs a Service over the given stores. Call Start before use.
func New(users repository.UserStore, competitions repository.CompetitionStore, opts ...Option) *Service {
	s := &Service{
		users:        users,
		competitions: competitions,
		workerCount:  runtime.NumCPU() * 2,
		queueSize:    10_000,
		dedupeSize:   100_000,
		evalTimeout:  5 * time.Second,
		maxListLimit: 100,
		now:          time.Now,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.profiles = profile.NewService(users, s.now)
	evalOpts := []achievement.Option{
		achievement.WithLogger(s.logger.Named("achievement")),
		achievement.WithClock(s.now),
	}
	if s.notifier != nil {
		evalOpts = append(evalOpts, achievement.WithNotifier(s.notifier))
	}
	s.evaluator = achievement.NewEvaluator(users, competitions, evalOpts...)
	return s
}

// Start creates the queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.deduper == nil {
		s.deduper = dedupe.NewMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.queue, s.evaluator,
		workerpool.WithSize(s.workerCount),
		workerpool.WithJobTimeout(s.evalTimeout),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	// Workers outlive the request that started the service; Stop drains them.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "achievement service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes the queue and waits for queued evaluations to finish or ctx to expire.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	s.logger.Info(ctx, "stopping achievement service")
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop workers: %w", err)
	}
	s.logger.Info(ctx, "achievement service stopped",
		logger.Any("processed", s.pool.Processed()),
		logger.Any("failed", s.pool.Failed()),
	)
	return nil
}

// running returns the live pipeline or ErrNotStarted.
func (s *Service) running() (*eventqueue.InMemoryQueue, dedupe.Deduper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.queue, s.deduper, nil
}

// QueueLen returns the number of queued evaluations, 0 when stopped.
func (s *Service) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0
	}
	return s.queue.Len()
}

// WorkerCount returns the configured worker pool size.
func (s *Service) WorkerCount() int {
	return s.workerCount
}

// GetStats returns service statistics for monitoring. It counts dedupe
// entries and users, so it backs /stats rather than periodic scrapes.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.queue.Len()
	stats["dedupeEntries"] = s.deduper.Size()
	stats["jobsProcessed"] = s.pool.Processed()
	stats["jobsFailed"] = s.pool.Failed()
	stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	if n, err := s.users.Count(ctx); err == nil {
		stats["users"] = n
	}
	return stats
}
