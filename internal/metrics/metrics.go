// Package metrics exports rebuild, query and federation counters to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/claimgraph/internal/federation"
	"github.com/roach88/claimgraph/internal/graph"
	"github.com/roach88/claimgraph/internal/query"
	"github.com/roach88/claimgraph/internal/rebuild"
)

const namespace = "claimgraph"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	rebuildRuns     *prometheus.CounterVec
	rebuildItems    *prometheus.CounterVec
	rebuildRunning  prometheus.Gauge
	queryDuration   *prometheus.HistogramVec
	partnerFailures *prometheus.CounterVec
}

var (
	_ rebuild.Observer    = (*Metrics)(nil)
	_ query.Observer      = (*Metrics)(nil)
	_ federation.Observer = (*Metrics)(nil)
)

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		rebuildRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "runs_total",
			Help:      "Finished graph rebuilds by result.",
		}, []string{"result"}),
		rebuildItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "items_total",
			Help:      "Records processed by graph rebuilds by result.",
		}, []string{"result"}),
		rebuildRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "running",
			Help:      "1 while a graph rebuild is in progress.",
		}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Client query execution time by language and outcome.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"language", "outcome"}),
		partnerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "federation",
			Name:      "partner_failures_total",
			Help:      "Partner searches that failed or timed out.",
		}, []string{"partner"}),
	}
}

func (m *Metrics) RebuildStarted() {
	m.rebuildRunning.Set(1)
}

func (m *Metrics) RebuildItem(ok bool) {
	m.rebuildItems.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) RebuildFinished(failed bool) {
	m.rebuildRunning.Set(0)
	m.rebuildRuns.WithLabelValues(result(!failed)).Inc()
}

func (m *Metrics) QueryObserved(lang graph.Language, outcome string, elapsed time.Duration) {
	label := string(lang)
	if label == "" {
		label = "none"
	}
	m.queryDuration.WithLabelValues(label, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) PartnerFailed(partner string) {
	m.partnerFailures.WithLabelValues(partner).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
