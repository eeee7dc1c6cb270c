// Package metrics provides Prometheus metrics collection for the
// catalog pipeline, modeled on the teacher's internal/metrics package
// and repurposed from per-request LLM gateway metrics to per-stage
// pipeline metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "catalog"

// StageDurationBuckets covers sub-second HTML scrapes through
// multi-minute full-provider runs.
var StageDurationBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60, 120, 300, 600, 900,
}

var (
	// FetchTotal counts extractor fetch outcomes per provider. The
	// catalog-pipeline binary records one per extract stage run, with
	// outcome "success" or "error".
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total extractor HTTP fetch attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// FetchRetriesTotal counts retries recorded through
	// Collector.RecordFetchRetry. The fetcher does not call it, so a
	// pipeline run leaves this counter at zero.
	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Total HTTP fetch retries issued",
		},
		[]string{"provider"},
	)

	// StageDuration tracks wall-clock time spent in each orchestrator
	// stage for a provider run.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Orchestrator stage duration in seconds",
			Buckets:   StageDurationBuckets,
		},
		[]string{"provider", "stage"},
	)

	// RowsSyncedTotal counts rows written to the working table by a
	// successful sync run.
	RowsSyncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_synced_total",
			Help:      "Total rows written to the working table",
		},
		[]string{"provider"},
	)

	// RollbackTotal counts rollback-restore invocations across sync and
	// promote.
	RollbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_total",
			Help:      "Total rollback-restore invocations",
		},
		[]string{"provider"},
	)
)
