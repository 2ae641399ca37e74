// Package observability defines the Prometheus metrics of the heatmap service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the heatmap.
type Metrics struct {
	FetchDuration *prometheus.HistogramVec // labels: stage={geometry,membership,metrics}
	FetchErrors   *prometheus.CounterVec   // labels: stage
	StaleMetrics  prometheus.Counter

	Renders      *prometheus.CounterVec // labels: format={svg,png,webp}
	RenderErrors prometheus.Counter

	RegionsInScope prometheus.Gauge
	MetricEntries  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FetchDuration,
		m.FetchErrors,
		m.StaleMetrics,
		m.Renders,
		m.RenderErrors,
		m.RegionsInScope,
		m.MetricEntries,
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
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "zipheat",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream dataset fetches by stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zipheat",
			Name:      "fetch_errors_total",
			Help:      "Failed upstream fetches by stage.",
		}, []string{"stage"}),
		StaleMetrics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zipheat",
			Name:      "stale_metric_responses_total",
			Help:      "Metric responses discarded because the mode changed while in flight.",
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zipheat",
			Name:      "renders_total",
			Help:      "Rendered heatmaps by output format.",
		}, []string{"format"}),
		RenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zipheat",
			Name:      "render_errors_total",
			Help:      "Render attempts that ended in the error state.",
		}),
		RegionsInScope: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zipheat",
			Name:      "regions_in_scope",
			Help:      "Regions left after the county membership join.",
		}),
		MetricEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "zipheat",
			Name:      "metric_entries",
			Help:      "Entries in the live ZIP metric map.",
		}),
	}
}
