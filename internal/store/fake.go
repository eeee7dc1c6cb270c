package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/aicatalog/cpe/internal/catalog"
)

// Fake is an in-memory Store used by the sync, mapping, comparator, and
// promoter test suites in place of a live Postgres instance.
type Fake struct {
	mu sync.Mutex

	working    []catalog.DbRow
	production []catalog.DbRow
	rateLimits map[string]catalog.RateLimitRow
	mappings   map[string]catalog.MappingRow
	aaSlugs    []string

	nextID int

	FailBackup             bool
	FailInsert             bool
	FailRateLimits         bool
	DropRowsOnNextInsert   int // silently drop N rows from the next InsertWorkingRows call, to simulate a verify-count mismatch
	DriftRowsOnNextPromote int // add N extra production rows right after the next PromoteSlice, to simulate a concurrent writer
}

// NewFake returns an empty Fake store.
func NewFake() *Fake {
	return &Fake{
		rateLimits: make(map[string]catalog.RateLimitRow),
		mappings:   make(map[string]catalog.MappingRow),
	}
}

// SeedWorking loads rows directly into the working slice, bypassing
// InsertWorkingRows, for test setup.
func (f *Fake) SeedWorking(rows []catalog.DbRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.working = append(f.working, rows...)
}

// SeedAASlugs loads the external mapping table's aa_slug column.
func (f *Fake) SeedAASlugs(slugs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aaSlugs = append(f.aaSlugs, slugs...)
}

func (f *Fake) WorkingSliceCount(ctx context.Context, provider string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return countByProvider(f.working, provider), nil
}

func (f *Fake) ProductionSliceCount(ctx context.Context, provider string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return countByProvider(f.production, provider), nil
}

func (f *Fake) BackupProductionSlice(ctx context.Context, provider string) ([]catalog.DbRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filterByProvider(f.production, provider), nil
}

func countByProvider(rows []catalog.DbRow, provider string) int {
	n := 0
	for _, r := range rows {
		if r.InferenceProvider == provider {
			n++
		}
	}
	return n
}

func (f *Fake) BackupWorkingSlice(ctx context.Context, provider string) ([]catalog.DbRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBackup {
		return nil, fmt.Errorf("fake: backup failed")
	}
	return filterByProvider(f.working, provider), nil
}

func (f *Fake) ReadWorkingSlice(ctx context.Context, provider string) ([]catalog.DbRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filterByProvider(f.working, provider), nil
}

func filterByProvider(rows []catalog.DbRow, provider string) []catalog.DbRow {
	var out []catalog.DbRow
	for _, r := range rows {
		if r.InferenceProvider == provider {
			out = append(out, r)
		}
	}
	return out
}

func (f *Fake) DeleteWorkingSlice(ctx context.Context, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var remaining []catalog.DbRow
	for _, r := range f.working {
		if r.InferenceProvider != provider {
			remaining = append(remaining, r)
		}
	}
	f.working = remaining
	return nil
}

// InsertWorkingRows ignores batchSize: the fake has no transaction
// boundary to exercise, it only needs to hold the rows.
func (f *Fake) InsertWorkingRows(ctx context.Context, rows []catalog.DbRow, batchSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailInsert {
		return fmt.Errorf("fake: insert failed")
	}
	drop := f.DropRowsOnNextInsert
	f.DropRowsOnNextInsert = 0
	if drop > len(rows) {
		drop = len(rows)
	}
	for _, r := range rows[drop:] {
		f.nextID++
		r.ID = fmt.Sprintf("%d", f.nextID)
		f.working = append(f.working, r)
	}
	return nil
}

func (f *Fake) PromoteSlice(ctx context.Context, provider string, rows []catalog.DbRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var remaining []catalog.DbRow
	for _, r := range f.production {
		if r.InferenceProvider != provider {
			remaining = append(remaining, r)
		}
	}
	for _, r := range rows {
		f.nextID++
		r.ID = fmt.Sprintf("%d", f.nextID)
		remaining = append(remaining, r)
	}
	// DriftRowsOnNextPromote simulates a concurrent writer racing this
	// promotion: extra rows appear in production immediately after the
	// replace, before the verification count is read.
	for i := 0; i < f.DriftRowsOnNextPromote; i++ {
		f.nextID++
		remaining = append(remaining, catalog.DbRow{InferenceProvider: provider, ID: fmt.Sprintf("%d", f.nextID)})
	}
	f.DriftRowsOnNextPromote = 0
	f.production = remaining
	return nil
}

func (f *Fake) UpsertRateLimits(ctx context.Context, rows []catalog.RateLimitRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRateLimits {
		return fmt.Errorf("fake: rate limits upsert failed")
	}
	for _, r := range rows {
		f.rateLimits[r.HumanReadableName] = r
	}
	return nil
}

func (f *Fake) ReadProviderSlugs(ctx context.Context, provider string) ([]SlugRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SlugRow
	for _, r := range f.working {
		if r.InferenceProvider == provider {
			out = append(out, SlugRow{InferenceProvider: r.InferenceProvider, ProviderSlug: r.ProviderSlug})
		}
	}
	return out, nil
}

func (f *Fake) ReadAASlugs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.aaSlugs))
	copy(out, f.aaSlugs)
	return out, nil
}

// UpsertMapping preserves the original created_at across repeated upserts
// of the same (inference_provider, provider_slug) pair, matching the
// ON CONFLICT ... DO UPDATE SET aa_slug, updated_at behavior of the
// Postgres implementation, which leaves created_at untouched.
func (f *Fake) UpsertMapping(ctx context.Context, row catalog.MappingRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := row.InferenceProvider + "/" + row.ProviderSlugNormalized
	if prior, ok := f.mappings[key]; ok {
		row.CreatedAt = prior.CreatedAt
	}
	f.mappings[key] = row
	return nil
}

func (f *Fake) Ping(ctx context.Context) error { return nil }
func (f *Fake) Close() error                   { return nil }

// Mapping returns the stored mapping row for assertions in tests, and
// whether one exists.
func (f *Fake) Mapping(inferenceProvider, providerSlugNormalized string) (catalog.MappingRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.mappings[inferenceProvider+"/"+providerSlugNormalized]
	return row, ok
}

// RateLimit returns the stored rate-limit row for assertions in tests.
func (f *Fake) RateLimit(humanReadableName string) (catalog.RateLimitRow, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rateLimits[humanReadableName]
	return row, ok
}

var _ Store = (*Fake)(nil)
