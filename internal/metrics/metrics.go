// Package metrics exposes Prometheus counters for uploads, derivations and charts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build independent instances.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	uploads      *prometheus.CounterVec
	derivations  *prometheus.CounterVec
	charts       *prometheus.CounterVec
	loadSeconds  prometheus.Histogram
	loadedModels prometheus.Gauge
}

// New registers every collector on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mofax",
			Name:      "model_loads_total",
			Help:      "Model loads by outcome.",
		}, []string{"result"}),
		derivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mofax",
			Name:      "derivations_total",
			Help:      "Table and chart derivations by cache outcome.",
		}, []string{"derivation", "cache"}),
		charts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mofax",
			Name:      "chart_requests_total",
			Help:      "Chart requests by chart and outcome.",
		}, []string{"chart", "outcome"}),
		loadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mofax",
			Name:      "model_load_seconds",
			Help:      "Time spent persisting and opening a model file.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		loadedModels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mofax",
			Name:      "loaded_models",
			Help:      "Models currently held by sessions.",
		}),
	}
	m.registry.MustRegister(
		m.uploads, m.derivations, m.charts, m.loadSeconds, m.loadedModels,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveLoad(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
	m.loadSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDerivation(derivation string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.derivations.WithLabelValues(derivation, outcome).Inc()
}

func (m *Metrics) ObserveChart(chart, outcome string) {
	if m == nil {
		return
	}
	m.charts.WithLabelValues(chart, outcome).Inc()
}

func (m *Metrics) SetLoadedModels(n int) {
	if m == nil {
		return
	}
	m.loadedModels.Set(float64(n))
}
