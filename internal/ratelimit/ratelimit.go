// Package ratelimit implements the rate-limit string parser referenced by
// §9's parse_rate_limits: turning a provider's free-form rate-limit text
// into the structured RPM/RPD/TPM/TPD fields upserted into the rate-limits
// table.
package ratelimit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aicatalog/cpe/internal/catalog"
)

// unitTokens is the closed set of rate-limit units this parser recognizes.
var unitTokens = []string{"RPM", "RPD", "TPM", "TPD"}

// numberPattern matches an integer with optional thousands separators.
const numberPattern = `(\d(?:[\d,]*\d)?)`

// patternsFor builds the two accepted shapes for a unit token: "<num> UNIT"
// (Groq's scraped table cell layout) and "UNIT: <num>" (colon-labeled
// summary layout), both case-insensitive.
func patternsFor(unit string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + numberPattern + `\s*` + unit + `\b`),
		regexp.MustCompile(`(?i)\b` + unit + `\s*:?\s*` + numberPattern),
	}
}

var unitPatterns = func() map[string][]*regexp.Regexp {
	m := make(map[string][]*regexp.Regexp, len(unitTokens))
	for _, u := range unitTokens {
		m[u] = patternsFor(u)
	}
	return m
}()

func extractUnit(raw, unit string) (int, bool) {
	for _, pattern := range unitPatterns[unit] {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// Parse turns a raw rate-limit string into a RateLimitRow for the named
// model and provider. When no recognized unit token is found the row is
// marked unparseable but the raw string is preserved verbatim, per §9.
func Parse(humanReadableName, inferenceProvider, raw string) catalog.RateLimitRow {
	row := catalog.RateLimitRow{
		HumanReadableName: humanReadableName,
		InferenceProvider: inferenceProvider,
		RawString:         raw,
	}

	if rpm, ok := extractUnit(raw, "RPM"); ok {
		row.RPM = &rpm
		row.Parseable = true
	}
	if rpd, ok := extractUnit(raw, "RPD"); ok {
		row.RPD = &rpd
		row.Parseable = true
	}
	if tpm, ok := extractUnit(raw, "TPM"); ok {
		row.TPM = &tpm
		row.Parseable = true
	}
	if tpd, ok := extractUnit(raw, "TPD"); ok {
		row.TPD = &tpd
		row.Parseable = true
	}
	return row
}
