package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/internal/domain/model"
)

func job(id string) model.EvaluationJob {
	return model.EvaluationJob{EventID: id, UserID: "u-" + id, CompetitionID: "c1", EnqueuedAt: time.Now()}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity 2", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		So(q.Capacity(), ShouldEqual, 2)
		So(q.Len(), ShouldEqual, 0)

		Convey("When two jobs are enqueued", func() {
			So(q.Enqueue(ctx, job("1")), ShouldBeNil)
			So(q.Enqueue(ctx, job("2")), ShouldBeNil)

			Convey("Then a third is rejected as full", func() {
				So(errors.Is(q.Enqueue(ctx, job("3")), queue.ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then jobs come out in order", func() {
				first, ok := q.Next(ctx)
				So(ok, ShouldBeTrue)
				So(first.EventID, ShouldEqual, "1")
				second, _ := q.Next(ctx)
				So(second.EventID, ShouldEqual, "2")
				So(q.Len(), ShouldEqual, 0)
			})

			Convey("Then closing still lets the backlog drain", func() {
				So(q.Close(), ShouldBeNil)
				So(q.Close(), ShouldBeNil)
				So(errors.Is(q.Enqueue(ctx, job("3")), queue.ErrClosed), ShouldBeTrue)

				_, ok := q.Next(ctx)
				So(ok, ShouldBeTrue)
				_, ok = q.Next(ctx)
				So(ok, ShouldBeTrue)
				_, ok = q.Next(ctx)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When waiting on an empty queue with a deadline", func() {
			waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, ok := q.Next(waitCtx)

			Convey("Then Next gives up", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the caller's context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			err := q.Enqueue(cancelled, job("1"))

			Convey("Then the job is rejected", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 0)
			})
		})
	})
}
