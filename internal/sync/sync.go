// Package sync implements the working-table sync (C9): replacing one
// provider's slice of the working table with a freshly fused set of
// rows, with a backup/rollback safety net, plus a best-effort refresh of
// the rate-limits table.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/store"
	"github.com/aicatalog/cpe/internal/synclock"
)

// Report summarizes one provider's sync run for the per-run report.
type Report struct {
	Provider        string
	InitialCount    int
	PreparedCount   int
	FinalCount      int
	RolledBack      bool
	RateLimitsError error
}

// Options configures a Run call.
type Options struct {
	BatchSize int
	LockTTL   time.Duration
}

// Run executes the sync protocol for provider: count the existing slice,
// back it up, delete it, insert the prepared rows in batches, verify the
// new count matches exactly, and on an insert or verify failure, delete
// whatever was inserted and restore the backup via the same batched-insert
// path. The rate-limits table is
// refreshed afterward on a best-effort basis; failures there are
// reported but never fail the run.
func Run(ctx context.Context, st store.Store, lock *synclock.Lock, provider string, prepared []catalog.DbRow, rateLimits []catalog.RateLimitRow, opts Options) (Report, error) {
	if err := lock.Acquire(ctx, opts.LockTTL); err != nil {
		return Report{}, fmt.Errorf("sync: acquire lock for %s: %w", provider, err)
	}
	defer lock.Release(ctx)

	report := Report{Provider: provider, PreparedCount: len(prepared)}

	initialCount, err := st.WorkingSliceCount(ctx, provider)
	if err != nil {
		return report, fmt.Errorf("sync: count existing slice for %s: %w", provider, err)
	}
	report.InitialCount = initialCount

	backup, err := st.BackupWorkingSlice(ctx, provider)
	if err != nil {
		return report, fmt.Errorf("sync: backup aborted before any mutation for %s: %w", provider, err)
	}

	if err := st.DeleteWorkingSlice(ctx, provider); err != nil {
		return report, fmt.Errorf("sync: delete slice for %s: %w", provider, err)
	}

	if err := insertAndVerify(ctx, st, provider, prepared, opts.BatchSize); err != nil {
		report.RolledBack = true
		restoreErr := st.DeleteWorkingSlice(ctx, provider)
		if restoreErr == nil {
			restoreErr = insertAndVerify(ctx, st, provider, backup, opts.BatchSize)
		}
		if restoreErr != nil {
			return report, fmt.Errorf("sync: insert failed (%v) and rollback-restore also failed for %s: %w", err, provider, restoreErr)
		}
		return report, fmt.Errorf("sync: insert failed for %s, rolled back to %d backed-up rows: %w", provider, len(backup), err)
	}

	finalCount, err := st.WorkingSliceCount(ctx, provider)
	if err != nil {
		return report, fmt.Errorf("sync: count after insert for %s: %w", provider, err)
	}
	report.FinalCount = finalCount

	if rateLimitsErr := st.UpsertRateLimits(ctx, rateLimits); rateLimitsErr != nil {
		report.RateLimitsError = fmt.Errorf("sync: rate-limits refresh for %s: %w", provider, rateLimitsErr)
	}

	return report, nil
}

func insertAndVerify(ctx context.Context, st store.Store, provider string, rows []catalog.DbRow, batchSize int) error {
	if err := st.InsertWorkingRows(ctx, rows, batchSize); err != nil {
		return fmt.Errorf("insert rows: %w", err)
	}
	count, err := st.WorkingSliceCount(ctx, provider)
	if err != nil {
		return fmt.Errorf("verify count: %w", err)
	}
	if count != len(rows) {
		return fmt.Errorf("verify count: expected %d rows, found %d", len(rows), count)
	}
	return nil
}
