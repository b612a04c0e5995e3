package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fetch-cycle pipeline and the alert engine.
type Metrics struct {
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	CycleRunning  prometheus.Gauge

	StationsFound   prometheus.Counter
	StationsErrored prometheus.Counter

	ObservationsApplied prometheus.Counter
	ObservationsStale   prometheus.Counter

	// Alert lifecycle metrics.
	AlertsDelivered        prometheus.Counter
	AlertsDeliveryFailures prometheus.Counter
	AlertsReactivated      prometheus.Counter

	StationDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.CycleRunning,
		m.StationsFound,
		m.StationsErrored,
		m.ObservationsApplied,
		m.ObservationsStale,
		m.AlertsDelivered,
		m.AlertsDeliveryFailures,
		m.AlertsReactivated,
		m.StationDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can construct many instances without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "cycles_total",
			Help:      "Total fetch cycles started.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_alert",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch cycle.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 240},
		}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "river_alert",
			Name:      "cycle_running",
			Help:      "1 while a fetch cycle is in flight, 0 otherwise.",
		}),
		StationsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "stations_found_total",
			Help:      "Total stations returned by the upstream feed across cycles.",
		}),
		StationsErrored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "stations_errored_total",
			Help:      "Total station pipelines that failed with a non-stale error.",
		}),
		ObservationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "observations_applied_total",
			Help:      "Total conditional writes that advanced a station record.",
		}),
		ObservationsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "observations_stale_total",
			Help:      "Total conditional writes discarded as duplicate or out-of-order.",
		}),
		AlertsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "alerts_delivered_total",
			Help:      "Total notifications delivered and marked triggered.",
		}),
		AlertsDeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "alerts_delivery_failures_total",
			Help:      "Total delivery attempts that failed and left the subscription active.",
		}),
		AlertsReactivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_alert",
			Name:      "alerts_reactivated_total",
			Help:      "Total triggered subscriptions returned to active after cooldown.",
		}),
		StationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_alert",
			Name:      "station_duration_seconds",
			Help:      "Duration of one station pipeline (fetch, ingest, evaluate).",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
