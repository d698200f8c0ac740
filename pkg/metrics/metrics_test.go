package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return -1
	}
	return m.GetGauge().GetValue()
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors use the jury namespace", func() {
				manager.skips.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "jury_judging_skips_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels follow the options", func() {
				manager.comparisons.Add(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var family *dto.MetricFamily
				for _, f := range families {
					if f.GetName() == "test_unit_comparisons_total" {
						family = f
					}
				}
				So(family, ShouldNotBeNil)
				So(family.GetMetric(), ShouldHaveLength, 1)
				metric := family.GetMetric()[0]
				So(metric.GetCounter().GetValue(), ShouldEqual, 3)
				So(metric.GetLabel(), ShouldHaveLength, 1)
				So(metric.GetLabel()[0].GetName(), ShouldEqual, "env")
				So(metric.GetLabel()[0].GetValue(), ShouldEqual, "test")
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording judging events", func() {
			before := counterValue(globalManager.assignments.WithLabelValues("exploit"))
			RecordAssignment("exploit")
			RecordAssignment("exploit")

			Convey("Then counters advance", func() {
				So(counterValue(globalManager.assignments.WithLabelValues("exploit")), ShouldEqual, before+2)
			})
		})

		Convey("When recording comparisons and batches", func() {
			comparisons := counterValue(globalManager.comparisons)
			duplicates := counterValue(globalManager.batches.WithLabelValues("duplicate"))
			RecordComparisons(4)
			RecordBatch("duplicate")

			Convey("Then both are counted", func() {
				So(counterValue(globalManager.comparisons), ShouldEqual, comparisons+4)
				So(counterValue(globalManager.batches.WithLabelValues("duplicate")), ShouldEqual, duplicates+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateStoreRecords("projects", 42)
			UpdateSystemGoroutineCount(7)

			Convey("Then the last value wins", func() {
				So(gaugeValue(globalManager.storeRecords.WithLabelValues("projects")), ShouldEqual, 42)
				So(gaugeValue(globalManager.systemGoroutineCount), ShouldEqual, 7)
			})
		})

		Convey("When recording everything else", func() {
			Convey("Then nothing panics", func() {
				So(func() {
					RecordPoolExhausted()
					RecordSkip()
					RecordGuardAction("clamped")
					RecordSelectionLatency(1.5)
					RecordSelectionPoolSize(12)
					RecordRatingUpdateLatency(0.4)
					RecordTopCacheHit()
					RecordTopCacheMiss()
					RecordStoreOperation("judge_session", 0.2)
					RecordHTTPRequest("/judging/current", "GET", "200")
					RecordHTTPRequestDuration("/judging/current", "GET", "200", 3)
					RecordErrorByComponent("service", "not_found")
					RecordErrorByEndpoint("/judging/compare", "POST", "bad_request")
					UpdateSystemMemoryUsage(1024)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})

		Convey("When reading the registry", func() {
			Convey("Then it is the custom one", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
