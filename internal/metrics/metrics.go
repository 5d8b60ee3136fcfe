// Package metrics defines the Prometheus collectors for the index worker
// and the query service, registered on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results.
const (
	CycleOK     = "ok"
	CycleFailed = "failed"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	QueueDepth       prometheus.Gauge
	CyclesTotal      *prometheus.CounterVec
	DocsIndexedTotal prometheus.Counter
	DocsDeletedTotal prometheus.Counter
	SkippedTotal     prometheus.Counter
	CycleDuration    prometheus.Histogram
	SearchLatency    prometheus.Histogram
	SearchCacheTotal *prometheus.CounterVec
	IndexGeneration  prometheus.Gauge
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wikindex_queue_depth",
			Help: "Entries waiting in the index queue.",
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wikindex_cycles_total",
			Help: "Drain cycles by result (ok, failed).",
		}, []string{"result"}),
		DocsIndexedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikindex_documents_indexed_total",
			Help: "Documents added to the index.",
		}),
		DocsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikindex_documents_deleted_total",
			Help: "Superseded documents removed from the index.",
		}),
		SkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikindex_entries_skipped_total",
			Help: "Entries dropped from a cycle because they failed.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wikindex_cycle_duration_seconds",
			Help:    "Drain cycle duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wikindex_search_latency_seconds",
			Help:    "Search latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SearchCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wikindex_search_cache_total",
			Help: "Search cache lookups by status (hit, miss).",
		}, []string{"status"}),
		IndexGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wikindex_index_generation",
			Help: "Generation of the currently published index view.",
		}),
	}

	m.registry.MustRegister(
		m.QueueDepth,
		m.CyclesTotal,
		m.DocsIndexedTotal,
		m.DocsDeletedTotal,
		m.SkippedTotal,
		m.CycleDuration,
		m.SearchLatency,
		m.SearchCacheTotal,
		m.IndexGeneration,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetQueueDepth records the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

// ObserveCycle records one finished drain cycle.
func (m *Metrics) ObserveCycle(failed bool, added, deleted, skipped int, d time.Duration, generation uint64) {
	if m == nil {
		return
	}
	result := CycleOK
	if failed {
		result = CycleFailed
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.DocsIndexedTotal.Add(float64(added))
	m.DocsDeletedTotal.Add(float64(deleted))
	m.SkippedTotal.Add(float64(skipped))
	m.CycleDuration.Observe(d.Seconds())
	if generation > 0 {
		m.IndexGeneration.Set(float64(generation))
	}
}

// ObserveSearch records one query.
func (m *Metrics) ObserveSearch(cacheHit bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	m.SearchCacheTotal.WithLabelValues(status).Inc()
	m.SearchLatency.Observe(d.Seconds())
}
