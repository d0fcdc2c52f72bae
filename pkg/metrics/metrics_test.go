package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithName("test", "unit"),
				WithLatencyBuckets([]float64{1, 10}),
				WithLabels(map[string]string{"env": "test"}),
				WithRegisterer(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.evaluations.WithLabelValues(OutcomeGranted).Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_evaluations_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithRegisterer(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithRegisterer(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording evaluations", func() {
			before := testutil.ToFloat64(globalManager.evaluations.WithLabelValues(OutcomeNone))
			RecordEvaluation(OutcomeNone, 3)

			Convey("Then the outcome counter moves", func() {
				after := testutil.ToFloat64(globalManager.evaluations.WithLabelValues(OutcomeNone))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording store operations", func() {
			before := testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("user.get"))
			RecordStoreOperation("user.get", 1, nil)
			RecordStoreOperation("user.get", 1, errors.New("down"))

			Convey("Then only failures count as errors", func() {
				after := testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("user.get"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When moving gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.7)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.7)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				RecordAchievementGranted("first_win")
				RecordNotification("log", "ok")
				RecordCompetitionCreated()
				RecordWinnersRecorded(2)
				RecordEventDuplicate()
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(12)
				RecordWorkerError()
				RecordHTTPRequest("users", "GET", "200", 1.5)
				AddWebsocketConnections(1)
				AddWebsocketConnections(-1)
				RecordErrorByComponent("store", "timeout")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
