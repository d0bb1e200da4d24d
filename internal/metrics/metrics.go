// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package metrics provides Prometheus instrumentation for the sync
// pipeline, the document store, and the query API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync pipeline metrics

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetindex_sync_runs_total",
			Help: "Total number of sync runs by terminal status",
		},
		[]string{"status"}, // "success", "partial", "failed"
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetindex_sync_run_duration_seconds",
			Help:    "Duration of complete sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	SyncPagesFetched = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetindex_sync_pages_fetched",
			Help:    "Pages fetched from the upstream API per run",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		},
	)

	SyncShipsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetindex_sync_ships_total",
			Help: "Ship records processed per outcome across all runs",
		},
		[]string{"outcome"}, // "new", "updated", "unchanged", "skipped"
	)

	SyncFetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetindex_sync_fetch_retries_total",
			Help: "Total page fetch retries against the upstream API",
		},
	)

	SyncValidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetindex_sync_validation_errors_total",
			Help: "Records rejected at the validation trust boundary",
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetindex_upstream_circuit_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Store metrics

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetindex_store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreBulkFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetindex_store_bulk_fallbacks_total",
			Help: "Bulk upserts that degraded to per-document writes",
		},
	)

	SearchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetindex_search_fallbacks_total",
			Help: "Text searches served by the substring scan fallback",
		},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetindex_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetindex_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveStoreOperation records one store operation's duration.
func ObserveStoreOperation(operation string, start time.Time) {
	StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordSyncRun records the terminal metrics for one sync run.
func RecordSyncRun(status string, duration time.Duration, pages int) {
	SyncRunsTotal.WithLabelValues(status).Inc()
	SyncRunDuration.Observe(duration.Seconds())
	SyncPagesFetched.Observe(float64(pages))
}
