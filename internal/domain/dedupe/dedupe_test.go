package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/dedupe"
)

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bounded memory deduper", t, func() {
		d := dedupe.NewMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When an id is recorded twice", func() {
			first, err1 := d.SeenAndRecord(ctx, "evt-1")
			second, err2 := d.SeenAndRecord(ctx, "evt-1")

			Convey("Then only the second call reports it as seen", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When more ids arrive than fit", func() {
			for _, id := range []string{"a", "b", "c", "d"} {
				_, _ = d.SeenAndRecord(ctx, id)
			}

			Convey("Then the oldest is forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				seen, _ := d.SeenAndRecord(ctx, "d")
				So(seen, ShouldBeTrue)
				seen, _ = d.SeenAndRecord(ctx, "a")
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When an id is unrecorded", func() {
			_, _ = d.SeenAndRecord(ctx, "evt-1")
			So(d.Unrecord(ctx, "evt-1"), ShouldBeNil)
			So(d.Unrecord(ctx, "never-seen"), ShouldBeNil)

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				seen, _ := d.SeenAndRecord(ctx, "evt-1")
				So(seen, ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded memory deduper", t, func() {
		d := dedupe.NewMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			_, _ = d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			seen, _ := d.SeenAndRecord(ctx, "evt-0")
			So(seen, ShouldBeTrue)
			So(d.Unrecord(ctx, "evt-0"), ShouldBeNil)
			So(d.Size(), ShouldEqual, 999)
		})
	})

	Convey("Given concurrent producers racing on one id", t, func() {
		d := dedupe.NewMemoryDeduper()
		var fresh atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if seen, _ := d.SeenAndRecord(ctx, "shared"); !seen {
					fresh.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(fresh.Load(), ShouldEqual, 1)
		})
	})
}

func TestRedisDeduper(t *testing.T) {
	Convey("Given a redis deduper whose server is unreachable", t, func() {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 50 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer func() { _ = client.Close() }()
		d := dedupe.NewRedisDeduper(client, dedupe.WithKeyPrefix("test:"), dedupe.WithTTL(time.Minute))

		Convey("Then errors surface instead of silently passing events", func() {
			_, err := d.SeenAndRecord(context.Background(), "evt-1")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "evt-1")
			So(d.Unrecord(context.Background(), "evt-1"), ShouldNotBeNil)
			So(d.Size(), ShouldEqual, 0)
		})
	})
}
