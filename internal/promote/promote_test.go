package promote

import (
	"testing"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCfg() config.PromoteConfig {
	return config.PromoteConfig{TolerancePercent: 5, ToleranceMinRows: 1}
}

func seedRows(provider string, n int) []catalog.DbRow {
	rows := make([]catalog.DbRow, n)
	for i := range rows {
		rows[i] = catalog.DbRow{InferenceProvider: provider, ProviderSlug: "model"}
	}
	return rows
}

func TestRunPromotesWorkingSliceToProduction(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking(seedRows("OpenRouter", 20))

	report, manifest, err := Run(t.Context(), st, "OpenRouter", testCfg())
	require.NoError(t, err)
	assert.False(t, report.RolledBack)
	assert.Equal(t, 20, manifest.RowsPromoted)

	n, _ := st.ProductionSliceCount(t.Context(), "OpenRouter")
	assert.Equal(t, 20, n)
}

func TestRunWithinToleranceDoesNotRollBack(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking(seedRows("OpenRouter", 100))

	report, _, err := Run(t.Context(), st, "OpenRouter", testCfg())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Tolerance)
	assert.False(t, report.RolledBack)
}

func TestToleranceFloorsAtMinRowsForSmallSlices(t *testing.T) {
	assert.Equal(t, 1, tolerance(3, config.PromoteConfig{TolerancePercent: 5, ToleranceMinRows: 1}))
}

func TestRunRollsBackWhenDriftExceedsTolerance(t *testing.T) {
	st := store.NewFake()
	st.PromoteSlice(t.Context(), "OpenRouter", seedRows("OpenRouter", 5))
	st.SeedWorking(seedRows("OpenRouter", 20))
	st.DriftRowsOnNextPromote = 10 // 20 -> 30, tolerance is max(1, 20*0.05)=1

	report, _, err := Run(t.Context(), st, "OpenRouter", testCfg())
	require.Error(t, err)
	assert.True(t, report.RolledBack)

	n, _ := st.ProductionSliceCount(t.Context(), "OpenRouter")
	assert.Equal(t, 5, n, "rollback must restore the pre-promotion production slice")
}

func TestRunPreservesPreviousCountInManifest(t *testing.T) {
	st := store.NewFake()
	st.PromoteSlice(t.Context(), "Groq", seedRows("Groq", 10))
	st.SeedWorking(seedRows("Groq", 11))

	_, manifest, err := Run(t.Context(), st, "Groq", testCfg())
	require.NoError(t, err)
	assert.Equal(t, 10, manifest.PreviousCount)
	assert.Equal(t, 11, manifest.RowsPromoted)
}
