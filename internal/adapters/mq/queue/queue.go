// Package queue buffers evaluation jobs between the API and the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

const defaultCapacity = 10_000

// Queue is a bounded FIFO of evaluation jobs.
type Queue interface {
	// Enqueue never blocks; it returns ErrFull or ErrClosed when the job is rejected.
	Enqueue(ctx context.Context, job model.EvaluationJob) error
	// Next blocks for the next job. ok is false once the queue is closed and drained
	// or ctx is done.
	Next(ctx context.Context) (job model.EvaluationJob, ok bool)
	Len() int
	Capacity() int
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan model.EvaluationJob
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an InMemoryQueue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan model.EvaluationJob, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.report()
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job model.EvaluationJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}

	select {
	case q.jobs <- job:
		metrics.RecordQueueEnqueue()
		q.report()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Next(ctx context.Context) (model.EvaluationJob, bool) {
	select {
	case job, ok := <-q.jobs:
		if ok {
			metrics.RecordQueueDequeue()
			q.report()
		}
		return job, ok
	case <-ctx.Done():
		return model.EvaluationJob{}, false
	}
}

func (q *InMemoryQueue) Len() int { return len(q.jobs) }

func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops intake. Jobs already queued can still be drained with Next.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) report() {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
