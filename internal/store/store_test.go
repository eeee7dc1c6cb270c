package store

import (
	"testing"
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeInsertAndCountWorkingSlice(t *testing.T) {
	f := NewFake()
	ctx := t.Context()

	err := f.InsertWorkingRows(ctx, []catalog.DbRow{
		{InferenceProvider: "OpenRouter", ProviderSlug: "a"},
		{InferenceProvider: "OpenRouter", ProviderSlug: "b"},
		{InferenceProvider: "Google", ProviderSlug: "c"},
	}, 100)
	require.NoError(t, err)

	n, err := f.WorkingSliceCount(ctx, "OpenRouter")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFakeBackupDeleteInsertRoundTrip(t *testing.T) {
	f := NewFake()
	ctx := t.Context()
	f.SeedWorking([]catalog.DbRow{{InferenceProvider: "Groq", ProviderSlug: "old"}})

	backup, err := f.BackupWorkingSlice(ctx, "Groq")
	require.NoError(t, err)
	require.Len(t, backup, 1)

	require.NoError(t, f.DeleteWorkingSlice(ctx, "Groq"))
	n, _ := f.WorkingSliceCount(ctx, "Groq")
	assert.Equal(t, 0, n)

	require.NoError(t, f.InsertWorkingRows(ctx, backup, 100))
	n, _ = f.WorkingSliceCount(ctx, "Groq")
	assert.Equal(t, 1, n)
}

func TestFakeBackupFailureSurfacesError(t *testing.T) {
	f := NewFake()
	f.FailBackup = true
	_, err := f.BackupWorkingSlice(t.Context(), "Groq")
	assert.Error(t, err)
}

func TestFakeDeleteOnlyAffectsNamedProvider(t *testing.T) {
	f := NewFake()
	ctx := t.Context()
	f.SeedWorking([]catalog.DbRow{
		{InferenceProvider: "Groq", ProviderSlug: "a"},
		{InferenceProvider: "Google", ProviderSlug: "b"},
	})

	require.NoError(t, f.DeleteWorkingSlice(ctx, "Groq"))

	groqCount, _ := f.WorkingSliceCount(ctx, "Groq")
	googleCount, _ := f.WorkingSliceCount(ctx, "Google")
	assert.Equal(t, 0, groqCount)
	assert.Equal(t, 1, googleCount)
}

func TestFakePromoteSliceReplacesProviderRows(t *testing.T) {
	f := NewFake()
	ctx := t.Context()

	require.NoError(t, f.PromoteSlice(ctx, "OpenRouter", []catalog.DbRow{{InferenceProvider: "OpenRouter", ProviderSlug: "v1"}}))
	n, _ := f.ProductionSliceCount(ctx, "OpenRouter")
	assert.Equal(t, 1, n)

	require.NoError(t, f.PromoteSlice(ctx, "OpenRouter", []catalog.DbRow{
		{InferenceProvider: "OpenRouter", ProviderSlug: "v2a"},
		{InferenceProvider: "OpenRouter", ProviderSlug: "v2b"},
	}))
	n, _ = f.ProductionSliceCount(ctx, "OpenRouter")
	assert.Equal(t, 2, n)
}

func TestFakeUpsertRateLimitsOverwritesByName(t *testing.T) {
	f := NewFake()
	ctx := t.Context()
	rpm := 10
	require.NoError(t, f.UpsertRateLimits(ctx, []catalog.RateLimitRow{
		{HumanReadableName: "Llama 3.1 8B", InferenceProvider: "OpenRouter", RPM: &rpm, Parseable: true},
	}))
	row, ok := f.RateLimit("Llama 3.1 8B")
	require.True(t, ok)
	assert.Equal(t, 10, *row.RPM)

	rpm2 := 20
	require.NoError(t, f.UpsertRateLimits(ctx, []catalog.RateLimitRow{
		{HumanReadableName: "Llama 3.1 8B", InferenceProvider: "OpenRouter", RPM: &rpm2, Parseable: true},
	}))
	row, _ = f.RateLimit("Llama 3.1 8B")
	assert.Equal(t, 20, *row.RPM)
}

func TestFakeUpsertMappingPreservesCreatedAt(t *testing.T) {
	f := NewFake()
	ctx := t.Context()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.UpsertMapping(ctx, catalog.MappingRow{
		InferenceProvider: "OpenRouter", ProviderSlugNormalized: "llama-3-1-8b", AASlug: "llama-31-8b",
		CreatedAt: first, UpdatedAt: first,
	}))
	require.NoError(t, f.UpsertMapping(ctx, catalog.MappingRow{
		InferenceProvider: "OpenRouter", ProviderSlugNormalized: "llama-3-1-8b", AASlug: "llama-31-8b-instruct",
		CreatedAt: second, UpdatedAt: second,
	}))

	row, ok := f.Mapping("OpenRouter", "llama-3-1-8b")
	require.True(t, ok)
	assert.Equal(t, first, row.CreatedAt)
	assert.Equal(t, second, row.UpdatedAt)
	assert.Equal(t, "llama-31-8b-instruct", row.AASlug)
}

func TestFakeReadProviderSlugsFiltersByProvider(t *testing.T) {
	f := NewFake()
	f.SeedWorking([]catalog.DbRow{
		{InferenceProvider: "OpenRouter", ProviderSlug: "llama-3.1-8b-instruct"},
		{InferenceProvider: "Google", ProviderSlug: "gemini-2.5-pro"},
	})

	rows, err := f.ReadProviderSlugs(t.Context(), "OpenRouter")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "llama-3.1-8b-instruct", rows[0].ProviderSlug)
}

func TestFakeReadAASlugsReturnsSeededCopy(t *testing.T) {
	f := NewFake()
	f.SeedAASlugs([]string{"llama-31-8b", "gemini-25-pro"})

	slugs, err := f.ReadAASlugs(t.Context())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"llama-31-8b", "gemini-25-pro"}, slugs)
}
