package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// poll/reconcile loop.
type Metrics struct {
	PollCycles    prometheus.Counter
	FetchErrors   *prometheus.CounterVec // labels: source
	Snapshots     *prometheus.CounterVec // labels: source, outcome={created,updated,refreshed,removed,noop}
	CycleDuration prometheus.Histogram

	AlertsActive   prometheus.Gauge
	AlertsCreated  prometheus.Counter
	AlertsUpdated  prometheus.Counter
	AlertsRemoved  *prometheus.CounterVec // labels: reason={cancelled,final,expired,cycle-miss}
	WavesActive    prometheus.Gauge
	ViewersActive  prometheus.Gauge
	CommandsPushed prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PollCycles,
		m.FetchErrors,
		m.Snapshots,
		m.CycleDuration,
		m.AlertsActive,
		m.AlertsCreated,
		m.AlertsUpdated,
		m.AlertsRemoved,
		m.WavesActive,
		m.ViewersActive,
		m.CommandsPushed,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eew",
			Name:      "poll_cycles_total",
			Help:      "Completed feed polling cycles.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eew",
			Name:      "fetch_errors_total",
			Help:      "Feed fetches that produced no snapshot, by source.",
		}, []string{"source"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eew",
			Name:      "snapshots_total",
			Help:      "Snapshots applied to the reconciler, by source and outcome.",
		}, []string{"source", "outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eew",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-join-reconcile cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		AlertsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eew",
			Name:      "alerts_active",
			Help:      "Currently active alerts.",
		}),
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eew",
			Name:      "alerts_created_total",
			Help:      "Alerts created.",
		}),
		AlertsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eew",
			Name:      "alerts_updated_total",
			Help:      "Alerts updated by a revised report.",
		}),
		AlertsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eew",
			Name:      "alerts_removed_total",
			Help:      "Alerts removed, by reason.",
		}, []string{"reason"}),
		WavesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eew",
			Name:      "wave_simulations_active",
			Help:      "Wavefront simulations currently running.",
		}),
		ViewersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eew",
			Name:      "viewers_active",
			Help:      "Connected presentation clients.",
		}),
		CommandsPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eew",
			Name:      "render_commands_total",
			Help:      "Render commands broadcast to presentation clients.",
		}),
	}
}
