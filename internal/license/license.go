// Package license implements the license resolution engine (C5): a
// priority-ordered classifier that resolves proprietary, opensource,
// custom, and unknown licenses for a canonical slug, extracting and
// standardizing a HuggingFace-sourced license name and attaching an
// authoritative URL with a three-tier fallback for the custom category.
package license

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/httpfetch"
)

// errorLikeNames normalizes any of these raw extraction results to Unknown
// before standardization is attempted.
var errorLikeNames = []string{"HTTP 404", "HTTP 429", "Not Found", "No HF ID"}

func isErrorLike(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "Error:") || strings.HasPrefix(trimmed, "Parse Error:") {
		return true
	}
	for _, bad := range errorLikeNames {
		if strings.EqualFold(trimmed, bad) || strings.HasPrefix(trimmed, bad) {
			return true
		}
	}
	return false
}

// htmlLicensePatterns are tried in order against a HuggingFace repo/LICENSE
// page when the Hub API reports the literal "other" sentinel. The first
// match wins.
var htmlLicensePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)License:\s*<span>([^<]+)</span>`),
	regexp.MustCompile(`(?i)"license"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)<dt[^>]*>License</dt>\s*<dd[^>]*>([^<]+)</dd>`),
}

// HFClient resolves a HuggingFace repo's card license and, when needed,
// scrapes its page for an explicit license mention. It is satisfied by
// HFHTTPClient in production and a fake in tests.
type HFClient interface {
	CardLicense(ctx context.Context, hfID string) (string, error)
	FetchPage(ctx context.Context, url string) (string, bool)
	Probe(ctx context.Context, url string) bool
}

// HFHTTPClient is the production HFClient backed by the resilient fetcher.
type HFHTTPClient struct {
	Fetcher *httpfetch.Fetcher
	APIKey  string
}

// CardLicense queries the HuggingFace Hub API for a repo's cardData.license.
// If the API reports the literal "other" sentinel, it falls through to
// scraping the repo page for an explicit license mention.
func (c *HFHTTPClient) CardLicense(ctx context.Context, hfID string) (string, error) {
	opts := httpfetch.DefaultOptions()
	if c.APIKey != "" {
		opts.Headers = map[string]string{"Authorization": "Bearer " + c.APIKey}
	}
	res, err := c.Fetcher.Fetch(ctx, "https://huggingface.co/api/models/"+hfID, opts)
	if err != nil {
		return "", err
	}
	value := extractJSONLicenseField(string(res.Body))
	if value == "" {
		return "Unknown", nil
	}
	if strings.EqualFold(value, "other") {
		page, ok := c.FetchPage(ctx, "https://huggingface.co/"+hfID)
		if !ok {
			return value, nil
		}
		if scraped, found := scrapeLicenseName(page); found {
			return scraped, nil
		}
		return value, nil
	}
	return value, nil
}

var apiLicenseField = regexp.MustCompile(`"license"\s*:\s*"([^"]+)"`)

func extractJSONLicenseField(body string) string {
	m := apiLicenseField.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

// FetchPage returns a page's body and whether the fetch succeeded (2xx).
func (c *HFHTTPClient) FetchPage(ctx context.Context, url string) (string, bool) {
	res, err := c.Fetcher.Fetch(ctx, url, httpfetch.DefaultOptions())
	if err != nil {
		return "", false
	}
	return string(res.Body), true
}

// Probe issues a HEAD request and reports whether it returned 200.
func (c *HFHTTPClient) Probe(ctx context.Context, url string) bool {
	opts := httpfetch.DefaultOptions()
	opts.Method = httpfetch.MethodHEAD
	opts.MaxRetries = 1
	res, err := c.Fetcher.Fetch(ctx, url, opts)
	return err == nil && res.StatusCode == http.StatusOK
}

func scrapeLicenseName(page string) (string, bool) {
	for _, pattern := range htmlLicensePatterns {
		if m := pattern.FindStringSubmatch(page); m != nil {
			name := strings.TrimSpace(m[1])
			if name != "" {
				return name, true
			}
		}
	}
	return "", false
}

// Resolver runs the priority-ordered classification chain described in
// the license resolution rules.
type Resolver struct {
	cfg config.LicenseConfig
	hf  HFClient
}

// NewResolver builds a Resolver against the curated tables in cfg and the
// given HuggingFace client (nil is valid for slugs that never need HF
// lookups in tests).
func NewResolver(cfg config.LicenseConfig, hf HFClient) *Resolver {
	return &Resolver{cfg: cfg, hf: hf}
}

// Resolve classifies canonicalSlug and, when its strategy requires a
// HuggingFace lookup, resolves hfID's license via r.hf.
func (r *Resolver) Resolve(ctx context.Context, canonicalSlug, hfID string) catalog.LicenseFact {
	lower := strings.ToLower(canonicalSlug)

	if name, ok := r.cfg.ProprietaryMapping[canonicalSlug]; ok {
		return catalog.LicenseFact{Category: catalog.LicenseProprietary, LicenseName: name}
	}

	if strings.HasPrefix(lower, "google/") && (strings.Contains(lower, "gemini") || strings.Contains(lower, "gemma")) {
		return catalog.LicenseFact{Category: catalog.LicenseProprietary, LicenseName: r.cfg.GoogleFamilyLicense}
	}

	if strings.HasPrefix(lower, "meta-llama/") || strings.Contains(lower, "llama") {
		return catalog.LicenseFact{Category: catalog.LicenseProprietary, LicenseName: r.cfg.MetaFamilyLicense}
	}

	if hfID == "" || r.hf == nil {
		return catalog.LicenseFact{Category: catalog.LicenseUnknown, LicenseName: catalog.Unknown}
	}

	raw, err := r.hf.CardLicense(ctx, hfID)
	if err != nil || isErrorLike(raw) {
		return catalog.LicenseFact{Category: catalog.LicenseUnknown, LicenseName: catalog.Unknown}
	}

	standardized := r.standardize(raw)
	if standardized == catalog.Unknown {
		return catalog.LicenseFact{Category: catalog.LicenseUnknown, LicenseName: catalog.Unknown}
	}

	if url, ok := findCaseInsensitive(r.cfg.OpensourceURLTable, standardized); ok {
		infoURL, infoText := r.resolveInfoURL(ctx, hfID)
		return catalog.LicenseFact{
			Category:        catalog.LicenseOpensource,
			LicenseName:     standardized,
			LicenseURL:      url,
			LicenseInfoText: infoText,
			LicenseInfoURL:  infoURL,
		}
	}

	customURL := r.resolveCustomURL(ctx, standardized, hfID)
	return catalog.LicenseFact{
		Category:    catalog.LicenseCustom,
		LicenseName: standardized,
		LicenseURL:  customURL,
	}
}

// standardize maps a raw HF license string through the case-insensitive
// standardization table, normalizing error-like strings to Unknown.
func (r *Resolver) standardize(raw string) string {
	if isErrorLike(raw) {
		return catalog.Unknown
	}
	trimmed := strings.TrimSpace(raw)
	if standardized, ok := findCaseInsensitive(r.cfg.StandardizationTable, trimmed); ok {
		return standardized
	}
	return trimmed
}

func findCaseInsensitive(table map[string]string, key string) (string, bool) {
	if v, ok := table[key]; ok {
		return v, true
	}
	lower := strings.ToLower(key)
	for k, v := range table {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return "", false
}

// resolveInfoURL runs the same LICENSE/README/repo-root three-tier probe as
// resolveCustomURL to find a documentation URL for an opensource model, so
// license_info_text can be set to "info", per the output invariant that
// license_info_text="info" iff license_info_url is non-empty.
func (r *Resolver) resolveInfoURL(ctx context.Context, hfID string) (url, text string) {
	licenseURL := "https://huggingface.co/" + hfID + "/blob/main/LICENSE"
	if r.hf.Probe(ctx, licenseURL) {
		return licenseURL, "info"
	}
	readmeURL := "https://huggingface.co/" + hfID + "/blob/main/README.md"
	if r.hf.Probe(ctx, readmeURL) {
		return readmeURL, "info"
	}
	repoURL := "https://huggingface.co/" + hfID
	if r.hf.Probe(ctx, repoURL) {
		return repoURL, "info"
	}
	return "", ""
}

// resolveCustomURL implements the custom-category three-tier probe: a
// curated override, then LICENSE, then README, then the repo root, each
// only used for license_url — license_info_text/URL stay empty for custom.
func (r *Resolver) resolveCustomURL(ctx context.Context, standardizedName, hfID string) string {
	if url, ok := findCaseInsensitive(r.cfg.CustomURLOverrides, standardizedName); ok {
		return url
	}
	if r.hf == nil {
		return catalog.Unknown
	}
	licenseURL := "https://huggingface.co/" + hfID + "/blob/main/LICENSE"
	if r.hf.Probe(ctx, licenseURL) {
		return licenseURL
	}
	readmeURL := "https://huggingface.co/" + hfID + "/blob/main/README.md"
	if r.hf.Probe(ctx, readmeURL) {
		return readmeURL
	}
	repoURL := "https://huggingface.co/" + hfID
	if r.hf.Probe(ctx, repoURL) {
		return repoURL
	}
	return catalog.Unknown
}
