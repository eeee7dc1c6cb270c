// Package mapping implements the slug mapping refresher (C10): matching
// each working-table (inference_provider, provider_slug) pair against an
// external aa_slug table, upserting confident matches, and reporting the
// top candidates for anything left unmatched.
package mapping

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/slug"
	"github.com/aicatalog/cpe/internal/store"
)

// candidatesPerModel bounds how many near-misses are reported per
// unmatched model.
const candidatesPerModel = 5

// Candidate is one scored near-miss for an unmatched model.
type Candidate struct {
	AASlug string
	Score  float64
}

// Unmatched records one working-table slug that matched no aa_slug,
// along with its top scored candidates.
type Unmatched struct {
	InferenceProvider string
	ProviderSlug      string
	NormalizedSlug    string
	Candidates        []Candidate
}

// Report is the outcome of one mapping refresh run.
type Report struct {
	Matched   int
	Unmatched []Unmatched
}

// Refresh reads provider's (inference_provider, provider_slug) rows and
// the external aa_slug table from st, matches each in order (exact,
// suffix, contains) against the normalized slug, upserts every match,
// and scores the rest by similarity ratio for the report.
func Refresh(ctx context.Context, st store.Store, provider string, cfg config.SlugConfig, now time.Time) (Report, error) {
	rows, err := st.ReadProviderSlugs(ctx, provider)
	if err != nil {
		return Report{}, fmt.Errorf("mapping: read provider slugs for %s: %w", provider, err)
	}
	aaSlugs, err := st.ReadAASlugs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("mapping: read aa slugs: %w", err)
	}

	report := Report{}
	for _, row := range rows {
		normalized := slug.NormalizeForMapping(row.ProviderSlug, cfg)

		if match := matchSlug(normalized, aaSlugs); match != "" {
			mappingRow := catalog.MappingRow{
				InferenceProvider:      row.InferenceProvider,
				ProviderSlugNormalized: normalized,
				AASlug:                 match,
				CreatedAt:              now,
				UpdatedAt:              now,
			}
			if err := st.UpsertMapping(ctx, mappingRow); err != nil {
				return report, fmt.Errorf("mapping: upsert %s/%s: %w", row.InferenceProvider, normalized, err)
			}
			report.Matched++
			continue
		}

		report.Unmatched = append(report.Unmatched, Unmatched{
			InferenceProvider: row.InferenceProvider,
			ProviderSlug:      row.ProviderSlug,
			NormalizedSlug:    normalized,
			Candidates:        nearestCandidates(normalized, aaSlugs),
		})
	}
	return report, nil
}

func matchSlug(normalized string, aaSlugs []string) string {
	for _, aa := range aaSlugs {
		if strings.EqualFold(aa, normalized) {
			return aa
		}
	}
	for _, aa := range aaSlugs {
		if strings.HasSuffix(strings.ToLower(aa), normalized) {
			return aa
		}
	}
	for _, aa := range aaSlugs {
		if strings.Contains(strings.ToLower(aa), normalized) {
			return aa
		}
	}
	return ""
}

func nearestCandidates(normalized string, aaSlugs []string) []Candidate {
	candidates := make([]Candidate, 0, len(aaSlugs))
	for _, aa := range aaSlugs {
		candidates = append(candidates, Candidate{AASlug: aa, Score: similarityRatio(normalized, strings.ToLower(aa))})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].AASlug < candidates[j].AASlug
	})
	if len(candidates) > candidatesPerModel {
		candidates = candidates[:candidatesPerModel]
	}
	return candidates
}

// similarityRatio is a SequenceMatcher-style ratio in [0, 1]:
// 2 * (length of the longest common subsequence) / (len(a) + len(b)).
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	lcs := longestCommonSubsequence(a, b)
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

func longestCommonSubsequence(a, b string) int {
	rows, cols := len(a)+1, len(b)+1
	table := make([][]int, rows)
	for i := range table {
		table[i] = make([]int, cols)
	}
	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			if a[i-1] == b[j-1] {
				table[i][j] = table[i-1][j-1] + 1
			} else if table[i-1][j] >= table[i][j-1] {
				table[i][j] = table[i-1][j]
			} else {
				table[i][j] = table[i][j-1]
			}
		}
	}
	return table[rows-1][cols-1]
}

// WriteComparisonReport renders the always-emitted slugs_comparison.txt
// body: the matched and unmatched counts, then for each unmatched model a
// header line followed by one line per top candidate.
func WriteComparisonReport(report Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "matched: %d\n", report.Matched)
	fmt.Fprintf(&b, "unmatched: %d\n", len(report.Unmatched))
	for _, u := range report.Unmatched {
		fmt.Fprintf(&b, "\n%s/%s (normalized: %s)\n", u.InferenceProvider, u.ProviderSlug, u.NormalizedSlug)
		for _, c := range u.Candidates {
			fmt.Fprintf(&b, "  %.3f  %s\n", c.Score, c.AASlug)
		}
	}
	return b.String()
}
