// Package metrics defines the Prometheus collectors used by the feed cache,
// the normalizer and the tool endpoints, and exposes an HTTP handler for
// scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results.
const (
	FetchOK          = "ok"
	FetchNotModified = "not_modified"
	FetchError       = "error"
)

// Cache outcomes.
const (
	CacheHit     = "hit"
	CacheRefresh = "refresh"
	CacheStale   = "stale"
	CacheMiss    = "miss"
)

// Metrics holds all collectors. Each instance owns its registry so that
// tests can construct as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	FeedFetches      *prometheus.CounterVec
	FeedFetchLatency prometheus.Histogram
	CacheOutcomes    *prometheus.CounterVec
	SnapshotAge      prometheus.Gauge
	RecordsRecovered *prometheus.CounterVec
	ToolCalls        *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neucal_feed_fetches_total",
				Help: "Calendar feed fetch attempts by result (ok, not_modified, error).",
			},
			[]string{"result"},
		),
		FeedFetchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "neucal_feed_fetch_duration_seconds",
				Help:    "Calendar feed fetch latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
		),
		CacheOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neucal_feed_cache_total",
				Help: "Document requests by cache outcome (hit, refresh, stale, miss).",
			},
			[]string{"outcome"},
		),
		SnapshotAge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "neucal_feed_snapshot_age_seconds",
				Help: "Age of the calendar snapshot returned by the last document request.",
			},
		),
		RecordsRecovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neucal_records_recovered_total",
				Help: "Event fields (or whole records) that fell back to defaults during normalization.",
			},
			[]string{"field"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neucal_tool_calls_total",
				Help: "Tool invocations by tool name and status.",
			},
			[]string{"tool", "status"},
		),
	}

	m.registry.MustRegister(
		m.FeedFetches,
		m.FeedFetchLatency,
		m.CacheOutcomes,
		m.SnapshotAge,
		m.RecordsRecovered,
		m.ToolCalls,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
