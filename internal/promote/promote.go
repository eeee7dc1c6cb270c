// Package promote implements the production promoter (C12): the same
// backup/delete/insert/verify/rollback-restore protocol as the
// working-table sync, but sourced from the working-table slice and
// sinking to the production table, with a wider verification tolerance
// to accommodate concurrent production writers.
package promote

import (
	"context"
	"fmt"

	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/store"
)

// Report summarizes one provider's promotion run.
type Report struct {
	Provider      string
	InitialCount  int
	PreparedCount int
	FinalCount    int
	Tolerance     int
	RolledBack    bool
}

// Manifest is the per-run deploy manifest recorded alongside the report.
type Manifest struct {
	Provider      string
	RowsPromoted  int
	PreviousCount int
}

// Run promotes provider's working-table slice to production: back up the
// current production slice, replace it with the working-table slice, and
// verify the new count is within tolerance (±5%, or ±1 row, whichever is
// larger) of the prepared row count. Deviation beyond tolerance triggers
// a rollback-restore from the production backup.
func Run(ctx context.Context, st store.Store, provider string, cfg config.PromoteConfig) (Report, Manifest, error) {
	prepared, err := st.ReadWorkingSlice(ctx, provider)
	if err != nil {
		return Report{}, Manifest{}, fmt.Errorf("promote: read working slice for %s: %w", provider, err)
	}

	report := Report{Provider: provider, PreparedCount: len(prepared), Tolerance: tolerance(len(prepared), cfg)}

	backup, err := st.BackupProductionSlice(ctx, provider)
	if err != nil {
		return report, Manifest{}, fmt.Errorf("promote: backup aborted before any mutation for %s: %w", provider, err)
	}
	report.InitialCount = len(backup)

	if err := st.PromoteSlice(ctx, provider, prepared); err != nil {
		return report, Manifest{}, fmt.Errorf("promote: replace production slice for %s: %w", provider, err)
	}

	finalCount, err := st.ProductionSliceCount(ctx, provider)
	if err != nil {
		return report, Manifest{}, fmt.Errorf("promote: count production slice after promote for %s: %w", provider, err)
	}
	report.FinalCount = finalCount

	if abs(finalCount-len(prepared)) > report.Tolerance {
		report.RolledBack = true
		if restoreErr := st.PromoteSlice(ctx, provider, backup); restoreErr != nil {
			return report, Manifest{}, fmt.Errorf("promote: verify failed (final=%d, prepared=%d, tolerance=%d) and rollback-restore also failed for %s: %w", finalCount, len(prepared), report.Tolerance, provider, restoreErr)
		}
		return report, Manifest{}, fmt.Errorf("promote: verify failed for %s (final=%d, prepared=%d, tolerance=%d), rolled back to %d backed-up rows", provider, finalCount, len(prepared), report.Tolerance, len(backup))
	}

	manifest := Manifest{Provider: provider, RowsPromoted: len(prepared), PreviousCount: report.InitialCount}
	return report, manifest, nil
}

func tolerance(preparedCount int, cfg config.PromoteConfig) int {
	pct := int(float64(preparedCount) * cfg.TolerancePercent / 100)
	if pct < cfg.ToleranceMinRows {
		return cfg.ToleranceMinRows
	}
	return pct
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
