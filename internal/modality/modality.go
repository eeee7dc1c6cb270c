// Package modality implements the modality normalizer (C6): merging raw,
// scraped, and config-sourced modality lists by precedence, standardizing
// tokens to the closed canonical set, and rendering them in priority order.
package modality

import (
	"sort"
	"strings"

	"github.com/aicatalog/cpe/internal/catalog"
)

var tokenMap = map[string]string{
	"text":            catalog.ModalityText,
	"image":           catalog.ModalityImage,
	"images":          catalog.ModalityImage,
	"audio":           catalog.ModalityAudio,
	"video":           catalog.ModalityVideo,
	"pdf":             catalog.ModalityPDF,
	"text-embeddings": catalog.ModalityTextEmbeddings,
	"text_embeddings": catalog.ModalityTextEmbeddings,
}

// mapToken lowercases and maps a raw token to its canonical form. A token
// containing both "embedding" and "text" maps to Text Embeddings even when
// it isn't an exact table entry (e.g. "text embedding model").
func mapToken(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return ""
	}
	if canonical, ok := tokenMap[lower]; ok {
		return canonical
	}
	if strings.Contains(lower, "embedding") && strings.Contains(lower, "text") {
		return catalog.ModalityTextEmbeddings
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// Standardize lowercases, maps, deduplicates (preserving first occurrence),
// and reorders tokens by the canonical priority table.
func Standardize(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	mapped := make([]string, 0, len(tokens))
	for _, t := range tokens {
		canonical := mapToken(t)
		if canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		mapped = append(mapped, canonical)
	}
	sort.SliceStable(mapped, func(i, j int) bool {
		return catalog.ModalityPriority(mapped[i]) < catalog.ModalityPriority(mapped[j])
	})
	return mapped
}

// Resolve picks the highest-precedence non-empty candidate list — override
// config, then scraper result, then raw API — and standardizes it.
func Resolve(override, scraper, raw []string) []string {
	switch {
	case len(override) > 0:
		return Standardize(override)
	case len(scraper) > 0:
		return Standardize(scraper)
	default:
		return Standardize(raw)
	}
}

// Join renders standardized tokens using the documented ", " separator.
func Join(tokens []string) string {
	return strings.Join(tokens, ", ")
}

// Fact resolves both directions of a ModalityFact from per-source candidate
// lists.
func Fact(overrideIn, scraperIn, rawIn, overrideOut, scraperOut, rawOut []string) catalog.ModalityFact {
	return catalog.ModalityFact{
		Inputs:  Resolve(overrideIn, scraperIn, rawIn),
		Outputs: Resolve(overrideOut, scraperOut, rawOut),
	}
}
