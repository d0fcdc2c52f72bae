// Package worker runs queued achievement evaluations.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const defaultJobTimeout = 5 * time.Second

// Queue is where workers take jobs from.
type Queue interface {
	Next(ctx context.Context) (model.EvaluationJob, bool)
	Close() error
}

// Evaluator runs one achievement evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) ([]model.Achievement, error)
}

// Pool drains the queue with a fixed number of workers.
type Pool struct {
	queue      Queue
	evaluator  Evaluator
	size       int
	jobTimeout time.Duration
	logger     logger.Logger

	wg        sync.WaitGroup
	started   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a Pool. It does nothing until Start.
func NewPool(queue Queue, evaluator Evaluator, opts ...Option) *Pool {
	p := &Pool{
		queue:      queue,
		evaluator:  evaluator,
		size:       runtime.NumCPU() * 2,
		jobTimeout: defaultJobTimeout,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. They stop when ctx is done or the queue is drained after Shutdown.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	metrics.UpdateWorkerCount(p.size)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, p.logger.Named("worker-"+strconv.Itoa(i)))
	}
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()
	for {
		job, ok := p.queue.Next(ctx)
		if !ok {
			return
		}
		p.process(ctx, log, job)
	}
}

func (p *Pool) process(ctx context.Context, log logger.Logger, job model.EvaluationJob) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	granted, err := p.evaluator.Evaluate(jobCtx, job.UserID)
	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "evaluate")
		log.Error(ctx, "evaluation job failed",
			logger.String("event", job.EventID),
			logger.String("user", job.UserID),
			logger.Error(err),
		)
		return
	}
	log.Debug(ctx, "evaluation job done",
		logger.String("event", job.EventID),
		logger.String("user", job.UserID),
		logger.Int("granted", len(granted)),
	)
}

// Processed returns how many jobs ran, successful or not.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns how many jobs returned an error.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Shutdown closes the queue and waits for workers to drain it or for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "closing queue", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
