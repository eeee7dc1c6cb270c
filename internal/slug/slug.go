// Package slug implements the model name/slug normalizer (C7): display
// name cleanup, provider_slug derivation from a canonical slug, and the
// separate normalization used to compare slugs against an external
// mapping table.
package slug

import (
	"regexp"
	"strings"

	"github.com/aicatalog/cpe/internal/config"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const freeSuffix = " (free)"

var providerPrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ]*:\s+`)

var titleCaser = cases.Title(language.English)

var gemmaUppercaseTokens = map[string]bool{
	"e2b": true,
	"e4b": true,
	"3n":  true,
	"27b": true,
	"it":  true,
}

// ProviderSlug returns the segment after the first '/' in canonicalSlug,
// or the whole slug when there is no '/'.
func ProviderSlug(canonicalSlug string) string {
	if idx := strings.Index(canonicalSlug, "/"); idx >= 0 {
		return canonicalSlug[idx+1:]
	}
	return canonicalSlug
}

// CleanDisplayName derives the human-readable name for a model. Google
// Gemma slugs get a deterministic token-cased name derived from the
// slug itself; a slug present in cfg.NameSubstitutions gets its override
// verbatim; everything else has a leading "X: " provider prefix and a
// trailing " (free)" marker stripped from the raw published name.
func CleanDisplayName(rawName, canonicalSlug string, cfg config.SlugConfig) string {
	providerSlug := ProviderSlug(canonicalSlug)

	if strings.HasPrefix(strings.ToLower(canonicalSlug), "google/") && strings.Contains(strings.ToLower(providerSlug), "gemma") {
		return gemmaDisplayName(providerSlug)
	}
	if override, ok := cfg.NameSubstitutions[providerSlug]; ok {
		return override
	}

	name := strings.TrimSuffix(rawName, freeSuffix)
	name = providerPrefix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// gemmaDisplayName splits a provider_slug on "-", uppercasing the known
// size/variant tokens and title-casing everything else.
func gemmaDisplayName(providerSlug string) string {
	parts := strings.Split(providerSlug, "-")
	out := make([]string, len(parts))
	for i, p := range parts {
		lower := strings.ToLower(p)
		if gemmaUppercaseTokens[lower] {
			out[i] = strings.ToUpper(p)
			continue
		}
		out[i] = titleCaser.String(lower)
	}
	return strings.Join(out, " ")
}

var (
	mappingSeparators = regexp.MustCompile(`[._ ]+`)
	mappingDashRuns   = regexp.MustCompile(`-+`)
)

// NormalizeForMapping canonicalizes a slug for cross-referencing against
// an external mapping table: separator characters become "-", runs of
// "-" collapse, the result is trimmed and lowercased, and at most one
// trailing variant suffix (the longest configured match) is stripped.
func NormalizeForMapping(raw string, cfg config.SlugConfig) string {
	s := mappingSeparators.ReplaceAllString(raw, "-")
	s = mappingDashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = strings.ToLower(s)

	best := ""
	for _, suffix := range cfg.MappingSuffixes {
		if strings.HasSuffix(s, suffix) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best != "" {
		s = strings.TrimSuffix(s, best)
		s = strings.Trim(s, "-")
	}
	return s
}
