// Package providerfact resolves per-model static vendor metadata — upstream
// model vendor, vendor country, official docs URL, and API access string —
// from an ordered pattern-rule table matched by prefix or substring
// against the whole canonical slug. It implements the provider enrichment stage (C4 support).
package providerfact

import (
	"strings"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
)

// Resolve applies cfg's rules in order; the first rule whose MatchPrefix or
// MatchContains matches canonicalSlug (case-insensitive) wins. No match
// yields catalog.Unknown for the vendor fields and the official URL.
func Resolve(inferenceProvider catalog.Provider, canonicalSlug string, cfg config.ProviderEnrichmentConfig) catalog.ProviderFact {
	lower := strings.ToLower(canonicalSlug)

	fact := catalog.ProviderFact{
		InferenceProvider:    inferenceProvider,
		ModelProvider:        catalog.Unknown,
		ModelProviderCountry: catalog.Unknown,
		OfficialURL:          catalog.Unknown,
		ProviderAPIAccess:    cfg.ProviderAPIAccess[string(inferenceProvider)],
	}

	for _, rule := range cfg.Rules {
		if matches(lower, rule) {
			fact.ModelProvider = rule.ModelProvider
			fact.ModelProviderCountry = rule.Country
			fact.OfficialURL = rule.OfficialURL
			return fact
		}
	}
	return fact
}

func matches(lowerSlug string, rule config.ProviderFactRule) bool {
	if rule.MatchPrefix != "" && strings.HasPrefix(lowerSlug, strings.ToLower(rule.MatchPrefix)) {
		return true
	}
	if rule.MatchContains != "" && strings.Contains(lowerSlug, strings.ToLower(rule.MatchContains)) {
		return true
	}
	return false
}
