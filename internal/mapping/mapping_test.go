package mapping

import (
	"testing"
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCfg() config.SlugConfig {
	return config.SlugConfig{MappingSuffixes: []string{"-instruct", "-chat", "-it", "-turbo", "-preview", "-exp"}}
}

func TestRefreshExactMatchUpserts(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking([]catalog.DbRow{{InferenceProvider: "OpenRouter", ProviderSlug: "llama-3.1-8b"}})
	st.SeedAASlugs([]string{"llama-3-1-8b"})

	report, err := Refresh(t.Context(), st, "OpenRouter", testCfg(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Empty(t, report.Unmatched)

	row, ok := st.Mapping("OpenRouter", "llama-3-1-8b")
	require.True(t, ok)
	assert.Equal(t, "llama-3-1-8b", row.AASlug)
}

func TestRefreshSuffixMatchWins(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking([]catalog.DbRow{{InferenceProvider: "OpenRouter", ProviderSlug: "llama-3-1-8b-instant"}})
	st.SeedAASlugs([]string{"meta-llama-3-1-8b-instant"})

	report, err := Refresh(t.Context(), st, "OpenRouter", testCfg(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)

	row, ok := st.Mapping("OpenRouter", "llama-3-1-8b-instant")
	require.True(t, ok)
	assert.Equal(t, "meta-llama-3-1-8b-instant", row.AASlug)
}

func TestRefreshContainsMatchAsLastResort(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking([]catalog.DbRow{{InferenceProvider: "OpenRouter", ProviderSlug: "gpt-4o"}})
	st.SeedAASlugs([]string{"gpt-4o-2024-05-13"})

	report, err := Refresh(t.Context(), st, "OpenRouter", testCfg(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
}

func TestRefreshStripsSuffixBeforeMatching(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking([]catalog.DbRow{{InferenceProvider: "Google", ProviderSlug: "gemma-3-12b-it"}})
	st.SeedAASlugs([]string{"gemma-3-12b"})

	report, err := Refresh(t.Context(), st, "Google", testCfg(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
}

func TestRefreshReportsTopCandidatesForUnmatched(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking([]catalog.DbRow{{InferenceProvider: "OpenRouter", ProviderSlug: "totally-novel-model"}})
	st.SeedAASlugs([]string{"some-other-model", "yet-another-model", "totally-different"})

	report, err := Refresh(t.Context(), st, "OpenRouter", testCfg(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Matched)
	require.Len(t, report.Unmatched, 1)
	assert.LessOrEqual(t, len(report.Unmatched[0].Candidates), candidatesPerModel)
	assert.NotEmpty(t, report.Unmatched[0].Candidates)
}

func TestRefreshIsIdempotentAcrossRuns(t *testing.T) {
	st := store.NewFake()
	st.SeedWorking([]catalog.DbRow{{InferenceProvider: "OpenRouter", ProviderSlug: "llama-3.1-8b"}})
	st.SeedAASlugs([]string{"llama-3-1-8b"})

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := Refresh(t.Context(), st, "OpenRouter", testCfg(), first)
	require.NoError(t, err)
	_, err = Refresh(t.Context(), st, "OpenRouter", testCfg(), second)
	require.NoError(t, err)

	row, ok := st.Mapping("OpenRouter", "llama-3-1-8b")
	require.True(t, ok)
	assert.Equal(t, first, row.CreatedAt)
	assert.Equal(t, second, row.UpdatedAt)
}

func TestWriteComparisonReportIsAlwaysEmitted(t *testing.T) {
	report := Report{Matched: 2, Unmatched: []Unmatched{
		{InferenceProvider: "OpenRouter", ProviderSlug: "x", NormalizedSlug: "x", Candidates: []Candidate{{AASlug: "y", Score: 0.5}}},
	}}
	text := WriteComparisonReport(report)
	assert.Contains(t, text, "matched: 2")
	assert.Contains(t, text, "unmatched: 1")
	assert.Contains(t, text, "OpenRouter/x")
}
