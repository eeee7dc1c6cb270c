package metrics

import "time"

// Collector provides methods to record pipeline metrics, mirroring the
// teacher's Collector shape (a thin wrapper choosing which Prometheus
// vectors to touch) but over stage/fetch/sync events instead of
// per-request LLM gateway events.
type Collector struct{}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordFetch records one extractor HTTP fetch outcome.
func (c *Collector) RecordFetch(provider, outcome string) {
	FetchTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordFetchRetry records one retry attempt for provider.
func (c *Collector) RecordFetchRetry(provider string) {
	FetchRetriesTotal.WithLabelValues(provider).Inc()
}

// RecordStageDuration records how long a named orchestrator stage took
// for provider.
func (c *Collector) RecordStageDuration(provider, stage string, d time.Duration) {
	StageDuration.WithLabelValues(provider, stage).Observe(d.Seconds())
}

// RecordRowsSynced records the row count written by a successful sync.
func (c *Collector) RecordRowsSynced(provider string, rows int) {
	RowsSyncedTotal.WithLabelValues(provider).Add(float64(rows))
}

// RecordRollback records one rollback-restore invocation for provider.
func (c *Collector) RecordRollback(provider string) {
	RollbackTotal.WithLabelValues(provider).Inc()
}
