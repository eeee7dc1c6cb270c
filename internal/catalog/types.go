// Package catalog defines the canonical record types shared across the
// catalog pipeline engine: raw per-provider observations, resolved facts,
// and the fused row persisted to the working and production tables.
package catalog

import "time"

// Provider is the closed set of inference providers the pipeline supports.
type Provider string

const (
	Google     Provider = "Google"
	Groq       Provider = "Groq"
	OpenRouter Provider = "OpenRouter"
)

// SourceSection records where a RawModel's attributes were observed.
type SourceSection string

const (
	SourceAPI             SourceSection = "api"
	SourceHTMLTable       SourceSection = "html-table"
	SourceHTMLExpandable  SourceSection = "html-expandable"
	SourceConfig          SourceSection = "config"
)

// Unknown is the sentinel used for a required-but-unresolved string field.
// It is never conflated with an empty string, which means "not applicable".
const Unknown = "Unknown"

// RawModel is a provider-observed model before normalization. It lives only
// in memory for the duration of a single pipeline run.
type RawModel struct {
	ProviderID          string
	ProviderSlug        string
	DisplayName         string
	HuggingFaceID       string // empty when the provider exposes no HF cross-reference
	CreatedAtSource     *time.Time
	RawModalitiesIn     []string
	RawModalitiesOut    []string
	RawRateLimits       string
	ContextWindow       *int
	MaxCompletionTokens *int
	SourceSection       SourceSection
}

// LicenseCategory is the closed classification produced by the license
// resolution engine.
type LicenseCategory string

const (
	LicenseProprietary LicenseCategory = "proprietary"
	LicenseOpensource  LicenseCategory = "opensource"
	LicenseCustom      LicenseCategory = "custom"
	LicenseUnknown     LicenseCategory = "unknown"
)

// LicenseFact is the resolved license identity for a single model.
type LicenseFact struct {
	Category        LicenseCategory
	LicenseName     string // standardized short name, or "Unknown"
	LicenseURL      string // authoritative URL or a URL-type fallback
	LicenseInfoText string // "" or "info"
	LicenseInfoURL  string // documentation/README URL, empty unless LicenseInfoText == "info"
}

// Canonical modality tokens. Their ordering ranks live in modalityPriority
// (lower sorts first); Text Embeddings shares Text's rank.
const (
	ModalityText           = "Text"
	ModalityImage          = "Image"
	ModalityAudio          = "Audio"
	ModalityVideo          = "Video"
	ModalityPDF             = "PDF"
	ModalityTextEmbeddings = "Text Embeddings"
)

// modalityPriority gives the total order used when rendering a modality
// list; Text and Text Embeddings share the same priority bucket.
var modalityPriority = map[string]int{
	ModalityText:           1,
	ModalityTextEmbeddings: 1,
	ModalityImage:          2,
	ModalityAudio:          3,
	ModalityVideo:          4,
	ModalityPDF:            5,
}

// ModalityPriority returns the ordering rank of a canonical modality token,
// or a rank after all known tokens if the token is not recognized.
func ModalityPriority(token string) int {
	if p, ok := modalityPriority[token]; ok {
		return p
	}
	return len(modalityPriority) + 1
}

// ModalityFact holds the fully resolved, ordered modality lists for a model.
type ModalityFact struct {
	Inputs  []string
	Outputs []string
}

// ProviderFact is static per-vendor metadata resolved from configuration or
// pattern rules, independent of any single model.
type ProviderFact struct {
	InferenceProvider     Provider
	ModelProvider         string // upstream vendor display name, e.g. "Meta"
	ModelProviderCountry  string
	OfficialURL           string
	ProviderAPIAccess     string
}

// DbRow is the fused record written to working_version / ai_models_main.
type DbRow struct {
	ID                  string // left empty; the database assigns it
	InferenceProvider   string
	ModelProvider       string
	HumanReadableName   string
	ProviderSlug        string
	ModelProviderCountry string
	OfficialURL         string
	InputModalities     string
	OutputModalities    string
	LicenseInfoText     string
	LicenseInfoURL      string
	LicenseName         string
	LicenseURL          string
	RateLimits          string
	ProviderAPIAccess   string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RateLimitRow is the per-model row upserted into the rate-limits table.
type RateLimitRow struct {
	HumanReadableName string
	InferenceProvider string
	RPM               *int
	RPD               *int
	TPM               *int
	TPD               *int
	RawString         string
	Parseable         bool
}

// MappingRow is the per-model row upserted into the provider-slug-to-aa-slug
// cross-reference table.
type MappingRow struct {
	InferenceProvider      string
	ProviderSlugNormalized string
	AASlug                 string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
