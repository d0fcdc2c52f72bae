package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/internal/adapters/mq/worker"
	"github.com/okian/arena/internal/domain/model"
)

type stubEvaluator struct {
	mu       sync.Mutex
	users    []string
	fail     map[string]bool
	deadline bool
	delay    time.Duration
}

func (s *stubEvaluator) Evaluate(ctx context.Context, userID string) ([]model.Achievement, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, has := ctx.Deadline()
	s.deadline = s.deadline || has
	s.users = append(s.users, userID)
	if s.fail[userID] {
		return nil, errors.New("store down")
	}
	return []model.Achievement{{ID: "first_win"}}, nil
}

func (s *stubEvaluator) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users...)
}

func TestPool(t *testing.T) {
	Convey("Given a pool over a queue with jobs", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		eval := &stubEvaluator{fail: map[string]bool{"bad": true}}
		for _, u := range []string{"a", "b", "bad", "c"} {
			So(q.Enqueue(ctx, model.EvaluationJob{EventID: "e-" + u, UserID: u}), ShouldBeNil)
		}

		pool := worker.NewPool(q, eval, worker.WithSize(3), worker.WithJobTimeout(time.Second))
		So(pool.Size(), ShouldEqual, 3)
		pool.Start(ctx)
		pool.Start(ctx)

		Convey("When the pool is shut down", func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			err := pool.Shutdown(shutdownCtx)

			Convey("Then every queued job was evaluated with a deadline", func() {
				So(err, ShouldBeNil)
				So(eval.seen(), ShouldHaveLength, 4)
				So(eval.seen(), ShouldContain, "bad")
				So(pool.Processed(), ShouldEqual, 4)
				So(pool.Failed(), ShouldEqual, 1)
				So(eval.deadline, ShouldBeTrue)
			})
		})
	})

	Convey("Given a job slower than the job timeout", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		eval := &stubEvaluator{delay: time.Second}
		So(q.Enqueue(ctx, model.EvaluationJob{EventID: "slow", UserID: "u"}), ShouldBeNil)

		pool := worker.NewPool(q, eval, worker.WithSize(1), worker.WithJobTimeout(10*time.Millisecond))
		pool.Start(ctx)
		So(pool.Shutdown(context.Background()), ShouldBeNil)

		Convey("Then it is cut off and counted as failed", func() {
			So(pool.Failed(), ShouldEqual, 1)
			So(eval.seen(), ShouldBeEmpty)
		})
	})

	Convey("Given workers that never finish in time", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		eval := &stubEvaluator{delay: time.Second}
		So(q.Enqueue(context.Background(), model.EvaluationJob{UserID: "u"}), ShouldBeNil)

		pool := worker.NewPool(q, eval, worker.WithSize(1), worker.WithJobTimeout(time.Second))
		pool.Start(context.Background())
		time.Sleep(10 * time.Millisecond)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		Convey("Then Shutdown reports the timeout", func() {
			So(errors.Is(pool.Shutdown(shutdownCtx), context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}
