// Package fuse implements the record fuser (C8): merging one provider's
// raw models, resolved license facts, modality facts, and static
// provider facts, keyed by canonical slug, into the DbRow stream written
// to the working table.
package fuse

import (
	"context"
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/extract"
	"github.com/aicatalog/cpe/internal/license"
	"github.com/aicatalog/cpe/internal/modality"
	"github.com/aicatalog/cpe/internal/providerfact"
	"github.com/aicatalog/cpe/internal/slug"
)

// Removed records one row excluded by operator policy, for the per-run
// report; it is never emitted to the DbRow stream.
type Removed struct {
	CanonicalSlug string
	Reason        string
}

// Output is one provider's fusion result: the DbRows to sync, plus every
// row excluded by operator policy.
type Output struct {
	Rows    []catalog.DbRow
	Removed []Removed
}

// Fuse builds one DbRow per surviving canonical slug in result, resolving
// its license via resolver and its static vendor metadata via
// providerCfg, deriving its human-readable name and provider_slug via
// slugCfg. A slug listed in operatorRemove is skipped before any
// resolution and recorded in Output.Removed. now is the fusion instant
// used for created_at when a RawModel carries no source timestamp, and
// always for updated_at.
func Fuse(ctx context.Context, provider catalog.Provider, result *extract.Result, resolver *license.Resolver, providerCfg config.ProviderEnrichmentConfig, slugCfg config.SlugConfig, operatorRemove []string, now time.Time) Output {
	removeSet := make(map[string]bool, len(operatorRemove))
	for _, s := range operatorRemove {
		removeSet[s] = true
	}

	out := Output{}
	for canonicalSlug, raw := range result.RawModels {
		if removeSet[canonicalSlug] {
			out.Removed = append(out.Removed, Removed{CanonicalSlug: canonicalSlug, Reason: "operator removal list"})
			continue
		}

		licenseFact := resolver.Resolve(ctx, canonicalSlug, raw.HuggingFaceID)
		providerFact := providerfact.Resolve(provider, canonicalSlug, providerCfg)
		modalityFact := result.Modalities[canonicalSlug]

		createdAt := now
		if raw.CreatedAtSource != nil {
			createdAt = *raw.CreatedAtSource
		}

		out.Rows = append(out.Rows, catalog.DbRow{
			InferenceProvider:    string(provider),
			ModelProvider:        providerFact.ModelProvider,
			HumanReadableName:    slug.CleanDisplayName(raw.DisplayName, canonicalSlug, slugCfg),
			ProviderSlug:         slug.ProviderSlug(canonicalSlug),
			ModelProviderCountry: providerFact.ModelProviderCountry,
			OfficialURL:          providerFact.OfficialURL,
			InputModalities:      modality.Join(modalityFact.Inputs),
			OutputModalities:     modality.Join(modalityFact.Outputs),
			LicenseInfoText:      licenseFact.LicenseInfoText,
			LicenseInfoURL:       licenseFact.LicenseInfoURL,
			LicenseName:          licenseFact.LicenseName,
			LicenseURL:           licenseFact.LicenseURL,
			RateLimits:           result.RateLimits[canonicalSlug],
			ProviderAPIAccess:    providerFact.ProviderAPIAccess,
			CreatedAt:            createdAt,
			UpdatedAt:            now,
		})
	}
	return out
}
