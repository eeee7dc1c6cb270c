// Package google implements the Google provider extractor (C4): a REST
// model list call plus an HTML modality scrape across the Gemini, Imagen,
// Veo, and Gemma documentation pages, gated by a quality check that falls
// back to the previous run's artifact when freshly scraped data looks too
// thin or matches a known-wrong pattern.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aicatalog/cpe/internal/artifacts"
	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/extract"
	"github.com/aicatalog/cpe/internal/htmlextract"
	"github.com/aicatalog/cpe/internal/httpfetch"
	"github.com/aicatalog/cpe/internal/modality"
	"github.com/goccy/go-json"
)

type apiModel struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	Description      string `json:"description"`
	InputTokenLimit  *int   `json:"inputTokenLimit"`
	OutputTokenLimit *int   `json:"outputTokenLimit"`
}

type modelsResponse struct {
	Models []apiModel `json:"models"`
}

// Extract fetches the Gemini model list and scrapes the documentation
// pages listed in cfg for per-model supported-data-types, applying the
// quality gate against the previously written artifact before returning.
func Extract(ctx context.Context, cfg config.GoogleConfig, apiKey string, fetcher *httpfetch.Fetcher, artifactsDir string, logger *slog.Logger) (*extract.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := extract.NewResult()

	if err := fetchModelList(ctx, cfg, apiKey, fetcher, result); err != nil {
		return nil, fmt.Errorf("google: fetch model list: %w", err)
	}

	scraped, diags := scrapeModalities(ctx, cfg, fetcher)
	result.Diagnostics = append(result.Diagnostics, diags...)

	gated, gateDiag := applyQualityGate(cfg, scraped, artifactsDir, logger)
	if gateDiag != "" {
		result.Diagnostics = append(result.Diagnostics, gateDiag)
	}

	matchModalitiesToModels(result, gated)

	for _, slug := range cfg.OperatorRemove {
		delete(result.RawModels, slug)
		delete(result.Modalities, slug)
	}

	return result, nil
}

func fetchModelList(ctx context.Context, cfg config.GoogleConfig, apiKey string, fetcher *httpfetch.Fetcher, result *extract.Result) error {
	url := cfg.APIBaseURL + cfg.ModelsEndpoint + "?key=" + apiKey
	res, err := fetcher.Fetch(ctx, url, extract.FetchOptions(cfg.Fetch))
	if err != nil {
		return err
	}
	var parsed modelsResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		return fmt.Errorf("decode model list: %w", err)
	}
	for _, m := range parsed.Models {
		stripped := strings.TrimPrefix(m.Name, "models/")
		canonicalSlug := "google/" + stripped
		result.RawModels[canonicalSlug] = catalog.RawModel{
			ProviderID:          canonicalSlug,
			ProviderSlug:        stripped,
			DisplayName:         m.DisplayName,
			ContextWindow:       m.InputTokenLimit,
			MaxCompletionTokens: m.OutputTokenLimit,
			SourceSection:       catalog.SourceAPI,
		}
	}
	return nil
}

// scrapedFact ties a normalized panel/section identifier to the modality
// tokens found under it, before it's matched back to a canonical slug.
type scrapedFact struct {
	ID      string   `json:"id"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

func scrapeModalities(ctx context.Context, cfg config.GoogleConfig, fetcher *httpfetch.Fetcher) ([]scrapedFact, []string) {
	var facts []scrapedFact
	var diagnostics []string

	if cfg.GeminiDocURL != "" {
		doc, err := fetchDoc(ctx, fetcher, cfg.GeminiDocURL, cfg.Fetch)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("gemini doc fetch failed: %v", err))
		} else {
			for _, panel := range htmlextract.FindPanels(doc.Selection, "gemini") {
				if in, out, ok := htmlextract.ParseSupportedDataTypes(panel.Node); ok {
					facts = append(facts, scrapedFact{ID: panel.ID, Inputs: in, Outputs: out})
				}
			}
		}
	}

	for _, url := range cfg.ImagenDocURLs {
		facts, diagnostics = scrapeHeadingAnchoredPage(ctx, fetcher, url, cfg.Fetch, "imagen", facts, diagnostics)
	}
	for _, url := range cfg.VeoDocURLs {
		facts, diagnostics = scrapeHeadingAnchoredPage(ctx, fetcher, url, cfg.Fetch, "veo", facts, diagnostics)
	}
	for _, url := range cfg.GemmaDocURLs {
		facts, diagnostics = scrapeHeadingAnchoredPage(ctx, fetcher, url, cfg.Fetch, "gemma", facts, diagnostics)
	}

	return facts, diagnostics
}

func scrapeHeadingAnchoredPage(ctx context.Context, fetcher *httpfetch.Fetcher, url string, fc config.FetchConfig, id string, facts []scrapedFact, diagnostics []string) ([]scrapedFact, []string) {
	doc, err := fetchDoc(ctx, fetcher, url, fc)
	if err != nil {
		return facts, append(diagnostics, fmt.Sprintf("%s doc fetch failed (%s): %v", id, url, err))
	}
	headingMatch := func(text string) bool {
		return strings.Contains(strings.ToLower(text), id)
	}
	section, ok := htmlextract.FindSection(doc.Selection, "", headingMatch)
	if !ok {
		section = doc.Selection
	}
	if in, out, ok := htmlextract.ParseSupportedDataTypes(section); ok {
		facts = append(facts, scrapedFact{ID: id, Inputs: in, Outputs: out})
	}
	return facts, diagnostics
}

func fetchDoc(ctx context.Context, fetcher *httpfetch.Fetcher, url string, fc config.FetchConfig) (*goquery.Document, error) {
	res, err := fetcher.Fetch(ctx, url, extract.FetchOptions(fc))
	if err != nil {
		return nil, err
	}
	return htmlextract.Parse(strings.NewReader(string(res.Body)))
}

// qualityGateArtifact is the on-disk shape of a previously written
// modality scrape, keyed by normalized panel/section id.
type qualityGateArtifact struct {
	Facts []scrapedFact `json:"facts"`
}

const artifactName = "google-modalities"

func applyQualityGate(cfg config.GoogleConfig, fresh []scrapedFact, artifactsDir string, logger *slog.Logger) ([]scrapedFact, string) {
	tripped, reason := gateTripped(cfg, fresh)
	if !tripped {
		saveArtifact(artifactsDir, fresh, logger)
		return fresh, ""
	}

	previous, ok := loadArtifact(artifactsDir, logger)
	if !ok {
		return fresh, fmt.Sprintf("quality gate tripped (%s) but no previous artifact exists; using fresh scrape", reason)
	}
	return previous, fmt.Sprintf("quality gate tripped (%s); preserving previous artifact instead of fresh scrape", reason)
}

func gateTripped(cfg config.GoogleConfig, fresh []scrapedFact) (bool, string) {
	if len(fresh) < cfg.QualityGate.MinModalityCount {
		return true, fmt.Sprintf("only %d modality facts scraped, minimum is %d", len(fresh), cfg.QualityGate.MinModalityCount)
	}
	for _, pattern := range cfg.QualityGate.KnownWrongPattern {
		badToken, idSubstr, ok := splitKnownWrongPattern(pattern)
		if !ok {
			continue
		}
		for _, f := range fresh {
			if strings.Contains(f.ID, idSubstr) && containsToken(f.Outputs, badToken) {
				return true, pattern
			}
		}
	}
	return false, ""
}

func splitKnownWrongPattern(pattern string) (badToken, idSubstr string, ok bool) {
	parts := strings.SplitN(pattern, " on ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.ToLower(strings.TrimSpace(parts[1])), true
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if strings.EqualFold(strings.TrimSpace(t), want) {
			return true
		}
	}
	return false
}

func saveArtifact(dir string, facts []scrapedFact, logger *slog.Logger) {
	if dir == "" {
		return
	}
	doc := artifacts.Document{
		Metadata: artifacts.Metadata{
			GeneratedAt:   artifacts.ISTTimestamp(time.Now()),
			TotalModels:   len(facts),
			PipelineStage: "google_extract_modalities",
		},
		Models: toAnySlice(facts),
	}
	if _, err := artifacts.Write(dir, artifactName, doc); err != nil {
		logger.Warn("google: failed to persist modality artifact", "error", err)
	}
}

func loadArtifact(dir string, logger *slog.Logger) ([]scrapedFact, bool) {
	if dir == "" {
		return nil, false
	}
	doc, err := artifacts.Read(dir + "/" + artifactName + ".json")
	if err != nil {
		return nil, false
	}
	var facts []scrapedFact
	raw, err := json.Marshal(doc.Models)
	if err != nil {
		logger.Warn("google: failed to re-encode previous artifact", "error", err)
		return nil, false
	}
	if err := json.Unmarshal(raw, &facts); err != nil {
		logger.Warn("google: failed to decode previous artifact", "error", err)
		return nil, false
	}
	return facts, true
}

func toAnySlice(facts []scrapedFact) []any {
	out := make([]any, len(facts))
	for i, f := range facts {
		out[i] = f
	}
	return out
}

// matchModalitiesToModels resolves each scraped fact against a RawModel's
// provider slug by normalized substring match, since panel ids (e.g.
// "gemini-1-5-pro") use dashes where slugs may use dots or different
// separators.
func matchModalitiesToModels(result *extract.Result, facts []scrapedFact) {
	for slug, model := range result.RawModels {
		normalizedSlug := normalizeForMatch(model.ProviderSlug)
		for _, f := range facts {
			if strings.Contains(normalizedSlug, normalizeForMatch(f.ID)) || strings.Contains(normalizeForMatch(f.ID), normalizedSlug) {
				result.Modalities[slug] = catalog.ModalityFact{
					Inputs:  modality.Standardize(f.Inputs),
					Outputs: modality.Standardize(f.Outputs),
				}
				break
			}
		}
	}
}

func normalizeForMatch(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
