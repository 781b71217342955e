// Package metrics exposes Prometheus instrumentation for sync runs.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "playbooksync"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	entries       *prometheus.CounterVec
	patches       *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	itemErrors    *prometheus.CounterVec
	lastRunStatus *prometheus.GaugeVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Sync runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of sync runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Evaluated knowledge entries by recorded action.",
		}, []string{"action"}),
		patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_total",
			Help:      "Applied document edits by placement strategy.",
		}, []string{"strategy"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_lookups_total",
			Help:      "Document embedding cache lookups by result.",
		}, []string{"result"}),
		itemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_errors_total",
			Help:      "Recoverable errors recorded on runs by stage.",
		}, []string{"stage"}),
		lastRunStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Finish time of the latest run per status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.runs, m.runDuration, m.entries, m.patches, m.cacheLookups, m.itemErrors, m.lastRunStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RunFinished records a finalized run.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	m.lastRunStatus.WithLabelValues(status).SetToCurrentTime()
}

// EntryRecorded counts one match record by action.
func (m *Metrics) EntryRecorded(action string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(action).Inc()
}

// PatchApplied counts one applied edit by strategy.
func (m *Metrics) PatchApplied(strategy string) {
	if m == nil {
		return
	}
	m.patches.WithLabelValues(strategy).Inc()
}

// CacheLookups counts embedding cache hits and misses.
func (m *Metrics) CacheLookups(hits, misses int) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.cacheLookups.WithLabelValues("miss").Add(float64(misses))
}

// ItemError counts one recoverable error for stage.
func (m *Metrics) ItemError(stage string) {
	if m == nil {
		return
	}
	m.itemErrors.WithLabelValues(stage).Inc()
}
