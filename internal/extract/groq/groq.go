// Package groq implements the Groq provider extractor (C4): an HTML
// scrape of the production-models table, a retry-until-populated scrape
// of the dynamically rendered rate-limits table, and a per-model detail
// page INPUT/OUTPUT label scan with a name-heuristic fallback.
package groq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/extract"
	"github.com/aicatalog/cpe/internal/htmlextract"
	"github.com/aicatalog/cpe/internal/httpfetch"
	"github.com/aicatalog/cpe/internal/modality"
)

// Extract scrapes the Groq production-models page, the rate-limits page,
// and each model's detail page in turn, returning a Result keyed by
// "groq/<model-id>".
func Extract(ctx context.Context, cfg config.GroqConfig, fetcher *httpfetch.Fetcher, logger *slog.Logger) (*extract.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := extract.NewResult()

	rows, err := scrapeProductionModels(ctx, cfg, fetcher)
	if err != nil {
		return nil, fmt.Errorf("groq: scrape production models: %w", err)
	}
	for _, row := range rows {
		slug := "groq/" + row.modelID
		result.RawModels[slug] = catalog.RawModel{
			ProviderID:    slug,
			ProviderSlug:  row.modelID,
			DisplayName:   row.displayName,
			RawRateLimits: row.rawRateLimits,
			SourceSection: catalog.SourceHTMLTable,
		}
		if row.rawRateLimits != "" {
			result.RateLimits[slug] = row.rawRateLimits
		}
	}

	limits, diag := scrapeRateLimitsWithRetry(ctx, cfg, fetcher, logger)
	if diag != "" {
		result.Diagnostics = append(result.Diagnostics, diag)
	}
	for modelID, raw := range limits {
		slug := "groq/" + modelID
		if _, ok := result.RawModels[slug]; !ok {
			continue
		}
		result.RateLimits[slug] = raw
	}

	for slug, model := range result.RawModels {
		inputs, outputs, diagnostic := modalitiesForModel(ctx, cfg, fetcher, model.ProviderSlug)
		if diagnostic != "" {
			result.Diagnostics = append(result.Diagnostics, diagnostic)
		}
		result.Modalities[slug] = catalog.ModalityFact{
			Inputs:  modality.Standardize(inputs),
			Outputs: modality.Standardize(outputs),
		}
	}

	for _, slug := range cfg.OperatorRemove {
		delete(result.RawModels, slug)
		delete(result.Modalities, slug)
		delete(result.RateLimits, slug)
	}

	return result, nil
}

type modelRow struct {
	modelID       string
	displayName   string
	rawRateLimits string
}

var modelsHeaderMatch = htmlextract.HeaderContainsAll("model id", "context window")

func scrapeProductionModels(ctx context.Context, cfg config.GroqConfig, fetcher *httpfetch.Fetcher) ([]modelRow, error) {
	doc, err := fetchDoc(ctx, fetcher, cfg.ModelsPageURL, cfg.Fetch)
	if err != nil {
		return nil, err
	}

	tables := htmlextract.FindTables(doc.Selection, modelsHeaderMatch)
	if len(tables) == 0 {
		return nil, fmt.Errorf("no production-models table found at %s", cfg.ModelsPageURL)
	}
	table := tables[0]

	var rows []modelRow
	table.Rows().Each(func(_ int, tr *goquery.Selection) {
		firstCell := tr.Find("td").First()
		modelID := strings.TrimSpace(firstCell.Find("span").First().Text())
		if modelID == "" {
			modelID = strings.TrimSpace(firstCell.Text())
		}
		if modelID == "" || strings.EqualFold(modelID, "model") || strings.EqualFold(modelID, "model id") {
			return
		}
		displayName := modelID
		if link := firstCell.Find("a").First(); link.Length() > 0 {
			if text := strings.TrimSpace(link.Text()); text != "" {
				displayName = text
			}
		}
		rateLimits, _ := table.Column(tr, "rate limits")
		rows = append(rows, modelRow{modelID: modelID, displayName: displayName, rawRateLimits: rateLimits})
	})
	return rows, nil
}

var rateLimitsHeaderMatch = htmlextract.HeaderContainsAll("model id", "rpm")

// scrapeRateLimitsWithRetry polls the rate-limits page up to
// cfg.RateLimitRetry.MaxAttempts times, cfg.RateLimitRetry.Interval apart,
// until the first data row is non-empty, matching the page's
// client-rendered table filling in after initial load.
func scrapeRateLimitsWithRetry(ctx context.Context, cfg config.GroqConfig, fetcher *httpfetch.Fetcher, logger *slog.Logger) (map[string]string, string) {
	maxAttempts := cfg.RateLimitRetry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	interval := cfg.RateLimitRetry.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		doc, err := fetchDoc(ctx, fetcher, cfg.RateLimitsPageURL, cfg.Fetch)
		if err != nil {
			return nil, fmt.Sprintf("groq: rate limits fetch failed: %v", err)
		}
		tables := htmlextract.FindTables(doc.Selection, rateLimitsHeaderMatch)
		if len(tables) > 0 {
			table := tables[0]
			rows := table.Rows()
			if rows.Length() > 0 {
				first := rows.First()
				if cellsNonEmpty(table, first) {
					return parseRateLimitsTable(table), ""
				}
			}
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Sprintf("groq: rate limits polling cancelled: %v", ctx.Err())
		case <-time.After(interval):
		}
	}
	logger.Warn("groq: rate limits table never populated", "attempts", maxAttempts)
	return nil, fmt.Sprintf("rate limits table did not populate after %d attempts", maxAttempts)
}

func cellsNonEmpty(table *htmlextract.Table, row *goquery.Selection) bool {
	nonEmpty := false
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		if strings.TrimSpace(cell.Text()) != "" {
			nonEmpty = true
		}
	})
	return nonEmpty
}

func parseRateLimitsTable(table *htmlextract.Table) map[string]string {
	out := make(map[string]string)
	table.Rows().Each(func(_ int, tr *goquery.Selection) {
		modelID, ok := table.Column(tr, "model id")
		if !ok || modelID == "" {
			return
		}
		var parts []string
		for _, unit := range []string{"RPM", "RPD", "TPM", "TPD"} {
			if v, ok := table.Column(tr, unit); ok && v != "" && v != "-" {
				parts = append(parts, fmt.Sprintf("%s: %s", unit, v))
			}
		}
		out[modelID] = strings.Join(parts, ", ")
	})
	return out
}

var modalityLabels = []string{"audio", "text", "image", "video"}

var modalityTokenMap = map[string]string{
	"audio": catalog.ModalityAudio,
	"text":  catalog.ModalityText,
	"image": catalog.ModalityImage,
	"video": catalog.ModalityVideo,
}

// modalitiesForModel scans the model's detail page for INPUT/OUTPUT label
// elements and inspects each one's parent text for the four modality
// keywords, falling back to a name heuristic when no labels are found.
func modalitiesForModel(ctx context.Context, cfg config.GroqConfig, fetcher *httpfetch.Fetcher, modelID string) (inputs, outputs []string, diagnostic string) {
	url := fmt.Sprintf(cfg.ModelDetailURLTmpl, modelID)
	doc, err := fetchDoc(ctx, fetcher, url, cfg.Fetch)
	if err != nil {
		in, out := fallbackModalities(modelID)
		return in, out, fmt.Sprintf("groq: detail page fetch failed for %s, using fallback: %v", modelID, err)
	}

	inputs = scanLabeledModalities(doc.Selection, "INPUT")
	outputs = scanLabeledModalities(doc.Selection, "OUTPUT")
	if len(inputs) == 0 && len(outputs) == 0 {
		in, out := fallbackModalities(modelID)
		return in, out, fmt.Sprintf("groq: no INPUT/OUTPUT labels found for %s, using fallback", modelID)
	}
	return inputs, outputs, ""
}

func scanLabeledModalities(doc *goquery.Selection, label string) []string {
	var found []string
	seen := make(map[string]bool)
	doc.Find("div, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.ToUpper(strings.TrimSpace(s.Text())) != label {
			return true
		}
		parentText := strings.ToLower(s.Parent().Text())
		for _, token := range modalityLabels {
			if strings.Contains(parentText, token) && !seen[token] {
				seen[token] = true
				found = append(found, modalityTokenMap[token])
			}
		}
		return true
	})
	return found
}

// fallbackModalities mirrors the original scraper's model-name heuristic:
// whisper models transcribe audio to text, tts models synthesize text to
// audio, guard models moderate image+text input down to a text verdict,
// and everything else defaults to a plain text model.
func fallbackModalities(modelID string) (inputs, outputs []string) {
	lower := strings.ToLower(modelID)
	switch {
	case strings.Contains(lower, "whisper"):
		return []string{catalog.ModalityAudio}, []string{catalog.ModalityText}
	case strings.Contains(lower, "tts"):
		return []string{catalog.ModalityText}, []string{catalog.ModalityAudio}
	case strings.Contains(lower, "guard"):
		return []string{catalog.ModalityImage, catalog.ModalityText}, []string{catalog.ModalityText}
	default:
		return []string{catalog.ModalityText}, []string{catalog.ModalityText}
	}
}

func fetchDoc(ctx context.Context, fetcher *httpfetch.Fetcher, url string, fc config.FetchConfig) (*goquery.Document, error) {
	res, err := fetcher.Fetch(ctx, url, extract.FetchOptions(fc))
	if err != nil {
		return nil, err
	}
	return htmlextract.Parse(strings.NewReader(string(res.Body)))
}
