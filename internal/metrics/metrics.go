// Package metrics exposes Prometheus instrumentation for the hub.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hub_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Imports
	ImportBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_import_batches_total",
			Help: "Import batches by platform and terminal status",
		},
		[]string{"platform", "status"},
	)

	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_import_rows_total",
			Help: "Imported and rejected rows",
		},
		[]string{"platform", "outcome"}, // "imported", "rejected"
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_import_duration_seconds",
			Help:    "Time to ingest, normalize and store one file",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Overview cache
	OverviewCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_overview_cache_hits_total",
			Help: "Overview requests served from cache",
		},
	)

	OverviewCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_overview_cache_misses_total",
			Help: "Overview requests computed from storage",
		},
	)

	// Platform sync
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_sync_runs_total",
			Help: "Platform sync rounds by outcome",
		},
		[]string{"outcome"}, // "ok", "partial", "skipped", "failed"
	)

	SyncAccountFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_sync_account_failures_total",
			Help: "Per-account sync failures",
		},
		[]string{"platform"},
	)

	SyncEntriesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_sync_entries_stored_total",
			Help: "Metric entries stored by platform sync",
		},
		[]string{"platform"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_sync_last_success_timestamp",
			Help: "Unix time of the last sync round without failures",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordImport records a finished import batch.
func RecordImport(platform, status string, imported, rejected int, duration time.Duration) {
	ImportBatchesTotal.WithLabelValues(platform, status).Inc()
	ImportRowsTotal.WithLabelValues(platform, "imported").Add(float64(imported))
	ImportRowsTotal.WithLabelValues(platform, "rejected").Add(float64(rejected))
	ImportDuration.Observe(duration.Seconds())
}

// RecordSync records one sync round.
func RecordSync(outcome string) {
	SyncRunsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}
