// Package metrics exports Prometheus metrics for the fact-check pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "factcheck"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	ChecksTotal    *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ProbesTotal    *prometheus.CounterVec
	SourcesEmitted prometheus.Histogram
	CacheLookups   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every metric on reg. Passing a fresh prometheus.Registry
// keeps tests isolated from the global registry.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Completed pipeline runs by content type and outcome kind",
		}, []string{"type", "outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage", "outcome"}),
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_probes_total",
			Help:      "Candidate source reachability probes by result",
		}, []string{"result"}),
		SourcesEmitted: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sources_emitted",
			Help:      "Sources attached to a returned verdict",
			Buckets:   []float64{0, 1, 2, 3},
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Verdict cache lookups by result",
		}, []string{"result"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveStage(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCheck(contentType, outcome string, sources int) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(contentType, outcome).Inc()
	if outcome == "ok" {
		m.SourcesEmitted.Observe(float64(sources))
	}
}

func (m *Metrics) ObserveProbe(reachable bool) {
	if m == nil {
		return
	}
	result := "unreachable"
	if reachable {
		result = "reachable"
	}
	m.ProbesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry this Metrics was built on.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
