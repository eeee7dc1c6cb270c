// Package extract defines the shared provider-extractor contract (C4):
// each of internal/extract/{google,groq,openrouter} orchestrates C1/C2 to
// emit raw model records, resolved modality facts, and raw rate-limit
// text keyed by canonical slug, plus a diagnostics trail preserved
// verbatim into per-run reports.
package extract

import (
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/httpfetch"
)

// Result is one provider extractor's output for a single run.
type Result struct {
	RawModels   map[string]catalog.RawModel
	Modalities  map[string]catalog.ModalityFact
	RateLimits  map[string]string // raw free-form text, keyed by canonical slug
	Diagnostics []string
}

// NewResult returns a Result with all three maps initialized.
func NewResult() *Result {
	return &Result{
		RawModels:  make(map[string]catalog.RawModel),
		Modalities: make(map[string]catalog.ModalityFact),
		RateLimits: make(map[string]string),
	}
}

// FetchOptions translates a provider's FetchConfig section into the
// httpfetch.Options a single call site uses.
func FetchOptions(fc config.FetchConfig) httpfetch.Options {
	opts := httpfetch.DefaultOptions()
	if fc.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(fc.TimeoutSeconds) * time.Second
	}
	if fc.MaxRetries > 0 {
		opts.MaxRetries = fc.MaxRetries
	}
	opts.ForceIPv4 = fc.ForceIPv4
	return opts
}
