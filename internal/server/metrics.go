package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the run monitor's prometheus collectors. Each server owns
// its registry so tests can build several servers.
type Metrics struct {
	registry *prometheus.Registry

	evaluations   *prometheus.CounterVec
	evalDuration  prometheus.Histogram
	activeRuns    prometheus.Gauge
	finishedRuns  *prometheus.CounterVec
	bestObjective *prometheus.GaugeVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "badger",
			Name:      "evaluations_total",
			Help:      "Number of evaluated points.",
		}, []string{"env"}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "badger",
			Name:      "evaluation_duration_seconds",
			Help:      "Time from candidate generation to recorded evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "badger",
			Name:      "runs_active",
			Help:      "Runs currently running or paused.",
		}),
		finishedRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "badger",
			Name:      "runs_finished_total",
			Help:      "Finished runs by exit reason.",
		}, []string{"exit"}),
		bestObjective: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "badger",
			Name:      "best_objective",
			Help:      "Best value of the first objective per run.",
		}, []string{"run"}),
	}

	m.registry.MustRegister(
		m.evaluations,
		m.evalDuration,
		m.activeRuns,
		m.finishedRuns,
		m.bestObjective,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
