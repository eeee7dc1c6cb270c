// Package openrouter implements the OpenRouter provider extractor (C4): a
// bearer-token REST call followed by four sequential, reportable filters
// (free pricing, billing-description keyword, name-exclusion keyword,
// post-dedup free-suffix preference).
package openrouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/extract"
	"github.com/aicatalog/cpe/internal/httpfetch"
	"github.com/aicatalog/cpe/internal/modality"
	"github.com/goccy/go-json"
)

type apiPricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
	Request    string `json:"request"`
}

type apiArchitecture struct {
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
}

type apiModel struct {
	ID            string          `json:"id"`
	CanonicalSlug string          `json:"canonical_slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Pricing       apiPricing      `json:"pricing"`
	Architecture  apiArchitecture `json:"architecture"`
	HuggingFaceID string          `json:"hugging_face_id"`
}

type modelsResponse struct {
	Data []apiModel `json:"data"`
}

// Extract fetches the OpenRouter model catalog and runs it through the
// four sequential filters, returning raw model, modality, and diagnostic
// data for every survivor keyed by the model's canonical_slug (carrying
// its upstream vendor prefix, e.g. "meta-llama/llama-3.1-8b-instruct",
// unchanged so the license engine's provider-prefix rules still apply).
func Extract(ctx context.Context, cfg config.OpenRouterConfig, apiKey string, fetcher *httpfetch.Fetcher) (*extract.Result, error) {
	models, err := fetchModels(ctx, cfg, apiKey, fetcher)
	if err != nil {
		return nil, fmt.Errorf("openrouter: fetch models: %w", err)
	}

	survivors, diagnostics := applyFilters(cfg, models)

	result := extract.NewResult()
	result.Diagnostics = diagnostics
	for _, m := range survivors {
		slug := m.CanonicalSlug
		if slug == "" {
			slug = m.ID
		}
		result.RawModels[slug] = catalog.RawModel{
			ProviderID:    m.ID,
			ProviderSlug:  slug,
			DisplayName:   m.Name,
			HuggingFaceID: m.HuggingFaceID,
			SourceSection: catalog.SourceAPI,
		}
		result.Modalities[slug] = catalog.ModalityFact{
			Inputs:  modality.Standardize(m.Architecture.InputModalities),
			Outputs: modality.Standardize(m.Architecture.OutputModalities),
		}
	}

	for _, slug := range cfg.OperatorRemove {
		delete(result.RawModels, slug)
		delete(result.Modalities, slug)
	}

	return result, nil
}

func fetchModels(ctx context.Context, cfg config.OpenRouterConfig, apiKey string, fetcher *httpfetch.Fetcher) ([]apiModel, error) {
	opts := extract.FetchOptions(cfg.Fetch)
	opts.Headers = map[string]string{"Authorization": "Bearer " + apiKey}
	res, err := fetcher.Fetch(ctx, cfg.ModelsEndpoint, opts)
	if err != nil {
		return nil, err
	}
	var parsed modelsResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	return parsed.Data, nil
}

// applyFilters runs the four sequential steps in order, each operating
// only on the survivors of the previous step, and returns the final
// survivor list plus one diagnostic line per excluded model.
func applyFilters(cfg config.OpenRouterConfig, models []apiModel) ([]apiModel, []string) {
	var diagnostics []string

	step1 := filterFreePricing(cfg, models, &diagnostics)
	step2 := filterBillingKeywords(cfg, step1, &diagnostics)
	step3 := filterExclusionKeywords(cfg, step2, &diagnostics)
	step4 := dedupeFreeSuffix(cfg, step3, &diagnostics)

	return step4, diagnostics
}

func isFreeMarker(cfg config.OpenRouterConfig, price string) bool {
	for _, marker := range cfg.FreePriceMarkers {
		if price == marker {
			return true
		}
	}
	return false
}

func filterFreePricing(cfg config.OpenRouterConfig, models []apiModel, diagnostics *[]string) []apiModel {
	var passed []apiModel
	for _, m := range models {
		if isFreeMarker(cfg, m.Pricing.Prompt) && isFreeMarker(cfg, m.Pricing.Completion) && isFreeMarker(cfg, m.Pricing.Request) {
			passed = append(passed, m)
			continue
		}
		*diagnostics = append(*diagnostics, fmt.Sprintf("excluded %s: non-free pricing", m.Name))
	}
	return passed
}

func filterBillingKeywords(cfg config.OpenRouterConfig, models []apiModel, diagnostics *[]string) []apiModel {
	var passed []apiModel
	for _, m := range models {
		description := strings.ToLower(m.Description)
		excluded := false
		for _, keyword := range cfg.BillingKeywords {
			if strings.Contains(description, strings.ToLower(keyword)) {
				*diagnostics = append(*diagnostics, fmt.Sprintf("excluded %s: billing keyword %q in description", m.Name, keyword))
				excluded = true
				break
			}
		}
		if !excluded {
			passed = append(passed, m)
		}
	}
	return passed
}

func filterExclusionKeywords(cfg config.OpenRouterConfig, models []apiModel, diagnostics *[]string) []apiModel {
	var passed []apiModel
	for _, m := range models {
		name := strings.ToLower(m.Name)
		excluded := false
		for _, keyword := range cfg.ExclusionKeywords {
			if strings.Contains(name, strings.ToLower(keyword)) {
				*diagnostics = append(*diagnostics, fmt.Sprintf("excluded %s: name contains excluded keyword %q", m.Name, keyword))
				excluded = true
				break
			}
		}
		if !excluded {
			passed = append(passed, m)
		}
	}
	return passed
}

// dedupeFreeSuffix groups survivors by name with cfg.FreeSuffix stripped
// and, within each group of more than one, keeps the suffixed variant
// when cfg.PreferSuffixed is set (falling back to the first seen
// otherwise), reporting every other group member as excluded.
func dedupeFreeSuffix(cfg config.OpenRouterConfig, models []apiModel, diagnostics *[]string) []apiModel {
	groups := make(map[string][]apiModel)
	var order []string
	for _, m := range models {
		normalized := strings.TrimSpace(strings.ReplaceAll(m.Name, cfg.FreeSuffix, ""))
		if _, ok := groups[normalized]; !ok {
			order = append(order, normalized)
		}
		groups[normalized] = append(groups[normalized], m)
	}

	var passed []apiModel
	for _, normalized := range order {
		group := groups[normalized]
		if len(group) == 1 {
			passed = append(passed, group[0])
			continue
		}
		keep := group[0]
		if cfg.PreferSuffixed {
			for _, m := range group {
				if strings.Contains(m.Name, cfg.FreeSuffix) {
					keep = m
					break
				}
			}
		}
		passed = append(passed, keep)
		for _, m := range group {
			if m.ID != keep.ID {
				*diagnostics = append(*diagnostics, fmt.Sprintf("excluded %s: duplicate of %s after free-suffix normalization", m.Name, keep.Name))
			}
		}
	}
	return passed
}
