package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/notify"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

type sink struct {
	calls int
	err   error
}

func (s *sink) Notify(context.Context, string, []model.Achievement) error {
	s.calls++
	return s.err
}

var granted = []model.Achievement{{ID: "first_win", Title: "First Victory"}}

func TestMulti(t *testing.T) {
	Convey("Given a fan-out over three sinks", t, func() {
		a, b, c := &sink{}, &sink{err: errors.New("b down")}, &sink{}
		m := notify.Multi{a, nil, b, c}

		Convey("When one sink fails", func() {
			err := m.Notify(context.Background(), "u1", granted)

			Convey("Then the others still run and the failure is reported", func() {
				So(a.calls, ShouldEqual, 1)
				So(b.calls, ShouldEqual, 1)
				So(c.calls, ShouldEqual, 1)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "b down")
			})
		})

		Convey("When every sink succeeds", func() {
			So(notify.Multi{a, c}.Notify(context.Background(), "u1", granted), ShouldBeNil)
		})
	})
}

func TestLogNotifier(t *testing.T) {
	Convey("Given a log notifier writing JSON", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithFormat("json"), logger.WithOutput(&buf)), ShouldBeNil)
		n := notify.NewLogNotifier(logger.Get())

		So(n.Notify(context.Background(), "u1", granted), ShouldBeNil)

		Convey("Then each achievement is logged", func() {
			var rec map[string]any
			So(json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec), ShouldBeNil)
			So(rec["msg"], ShouldEqual, "achievement unlocked")
			So(rec["user"], ShouldEqual, "u1")
			So(rec["achievement"], ShouldEqual, "first_win")
		})
	})
}

func TestRedisNotifier(t *testing.T) {
	Convey("Given a redis notifier", t, func() {
		Convey("When the server is unreachable", func() {
			client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
			defer func() { _ = client.Close() }()
			n := notify.NewRedisNotifier(client, "arena:achievements")

			Convey("Then the channel is per user and publish errors surface", func() {
				So(n.Channel("u1"), ShouldEqual, "arena:achievements:u1")
				So(n.Notify(context.Background(), "u1", granted), ShouldNotBeNil)
			})
		})

		addr := os.Getenv("ARENA_TEST_REDIS_ADDR")
		if addr == "" {
			return
		}

		Convey("When a subscriber listens on the user channel", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client := redis.NewClient(&redis.Options{Addr: addr})
			defer func() { _ = client.Close() }()
			n := notify.NewRedisNotifier(client, "arena:test")

			sub := client.Subscribe(ctx, n.Channel("u1"))
			defer func() { _ = sub.Close() }()
			_, err := sub.Receive(ctx)
			So(err, ShouldBeNil)

			So(n.Notify(ctx, "u1", granted), ShouldBeNil)
			msg, err := sub.ReceiveMessage(ctx)

			Convey("Then it receives the achievements", func() {
				So(err, ShouldBeNil)
				var got notify.Message
				So(json.Unmarshal([]byte(msg.Payload), &got), ShouldBeNil)
				So(got.Type, ShouldEqual, notify.MessageType)
				So(got.Achievements, ShouldResemble, granted)
			})
		})
	})
}
