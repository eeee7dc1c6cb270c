// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for
// zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// Config is the top-level pipeline configuration, loaded from a single JSON
// artifact (operators edit it between runs; once Manager.Watch is started,
// changes are picked up via fsnotify).
type Config struct {
	Database     DatabaseConfig           `json:"database"`
	Redis        RedisConfig              `json:"redis"`
	Providers    ProvidersConfig          `json:"providers"`
	License      LicenseConfig            `json:"license"`
	ProviderFact ProviderEnrichmentConfig `json:"provider_fact"`
	Slug         SlugConfig               `json:"slug"`
	Sync         SyncConfig               `json:"sync"`
	Promote      PromoteConfig            `json:"promote"`
	Orchestrator OrchestratorConfig       `json:"orchestrator"`
	Artifacts    ArtifactsConfig          `json:"artifacts"`
	Metrics      MetricsConfig            `json:"metrics"`
}

// RedisConfig points at the Redis instance backing the per-provider sync
// advisory lock.
type RedisConfig struct {
	Addr string `json:"addr"`
	DB   int    `json:"db"`
}

// DatabaseConfig points at the working/production Postgres instance. The DSN
// itself is never stored here — only the name of the secret/env entry that
// resolves to it, per Design Note "Global state".
type DatabaseConfig struct {
	DSNSecretRef    string        `json:"dsn_secret_ref"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// FetchConfig is the per-site set of httpfetch.Options overrides.
type FetchConfig struct {
	TimeoutSeconds int  `json:"timeout_seconds"`
	MaxRetries     int  `json:"max_retries"`
	ForceIPv4      bool `json:"force_ipv4"`
}

// QualityGate rejects a freshly scraped modality set in favor of the
// previous artifact when it looks suspiciously incomplete or wrong.
type QualityGate struct {
	MinModalityCount  int      `json:"min_modality_count"`
	KnownWrongPattern []string `json:"known_wrong_patterns"`
}

// GoogleConfig configures the Google REST + devsite-scraping extractor.
type GoogleConfig struct {
	Enabled          bool        `json:"enabled"`
	APIBaseURL       string      `json:"api_base_url"`
	ModelsEndpoint   string      `json:"models_endpoint"`
	APIKeySecretRef  string      `json:"api_key_secret_ref"`
	GeminiDocURL     string      `json:"gemini_doc_url"`
	ImagenDocURLs    []string    `json:"imagen_doc_urls"`
	VeoDocURLs       []string    `json:"veo_doc_urls"`
	GemmaDocURLs     []string    `json:"gemma_doc_urls"`
	QualityGate      QualityGate `json:"quality_gate"`
	Fetch            FetchConfig `json:"fetch"`
	OperatorRemove   []string    `json:"operator_remove_slugs"`
}

// RateLimitRetry bounds the retry loop waiting for Groq's dynamically
// populated rate-limits table to render a non-empty first row.
type RateLimitRetry struct {
	MaxAttempts int           `json:"max_attempts"`
	Interval    time.Duration `json:"interval"`
}

// GroqConfig configures the Groq HTML-scraping extractor.
type GroqConfig struct {
	Enabled            bool           `json:"enabled"`
	ModelsPageURL      string         `json:"models_page_url"`
	RateLimitsPageURL  string         `json:"rate_limits_page_url"`
	ModelDetailURLTmpl string         `json:"model_detail_url_template"`
	RateLimitRetry     RateLimitRetry `json:"rate_limit_retry"`
	Fetch              FetchConfig    `json:"fetch"`
	OperatorRemove     []string       `json:"operator_remove_slugs"`
}

// OpenRouterConfig configures the OpenRouter REST extractor and its
// sequential, reportable filter pipeline.
type OpenRouterConfig struct {
	Enabled           bool        `json:"enabled"`
	ModelsEndpoint    string      `json:"models_endpoint"`
	APIKeySecretRef   string      `json:"api_key_secret_ref"`
	FreePriceMarkers  []string    `json:"free_price_markers"`
	BillingKeywords   []string    `json:"billing_keywords"`
	ExclusionKeywords []string    `json:"exclusion_keywords"`
	FreeSuffix        string      `json:"free_suffix"`
	PreferSuffixed    bool        `json:"prefer_suffixed_on_dedup"`
	Fetch             FetchConfig `json:"fetch"`
	OperatorRemove    []string    `json:"operator_remove_slugs"`
}

// SlugConfig supplies the closed substitution table and mapping-suffix
// list the model name/slug normalizer applies.
type SlugConfig struct {
	NameSubstitutions map[string]string `json:"name_substitutions"`    // provider_slug -> display name override
	MappingSuffixes   []string          `json:"mapping_strip_suffixes"` // leading-dash suffixes, longest wins
}

// ProvidersConfig groups the three per-provider extractor configs.
type ProvidersConfig struct {
	Google     GoogleConfig     `json:"google"`
	Groq       GroqConfig       `json:"groq"`
	OpenRouter OpenRouterConfig `json:"openrouter"`
}

// LicenseConfig supplies the curated tables the license resolution engine
// needs: hardcoded vendor mappings, the opensource URL table, standardization
// aliases, and custom-category URL overrides.
type LicenseConfig struct {
	HuggingFaceAPIKeySecretRef string            `json:"huggingface_api_key_secret_ref"`
	ProprietaryMapping         map[string]string `json:"proprietary_mapping"`          // canonical slug -> license name
	GoogleFamilyLicense        string            `json:"google_family_license"`        // applied to gemini/gemma prefixed slugs
	MetaFamilyLicense          string            `json:"meta_family_license"`          // applied to meta-llama/contains-llama slugs
	OpensourceURLTable         map[string]string `json:"opensource_url_table"`         // standardized name -> URL
	StandardizationTable       map[string]string `json:"standardization_table"`        // raw (lowercased) -> standardized
	CustomURLOverrides         map[string]string `json:"custom_url_overrides"`         // standardized name -> URL
	ProbeTimeoutSeconds        int               `json:"probe_timeout_seconds"`
}

// ProviderFactRule is one ordered pattern rule in the provider-enrichment
// table: the first rule whose prefix or substring matches a canonical slug's
// provider segment wins.
type ProviderFactRule struct {
	MatchPrefix   string `json:"match_prefix"`
	MatchContains string `json:"match_contains"`
	ModelProvider string `json:"model_provider"`
	Country       string `json:"country"`
	OfficialURL   string `json:"official_url"`
}

// ProviderEnrichmentConfig supplies the ordered vendor/country/official-URL
// pattern table and per-inference-provider API access strings consumed by
// internal/providerfact.
type ProviderEnrichmentConfig struct {
	Rules             []ProviderFactRule `json:"rules"`
	ProviderAPIAccess map[string]string  `json:"provider_api_access"` // keyed by catalog.Provider
}

// SyncConfig tunes the backup/delete/insert/verify/rollback protocol shared
// by the working-table sync engine.
type SyncConfig struct {
	BatchSize            int           `json:"batch_size"`
	AdvisoryLockTTL      time.Duration `json:"advisory_lock_ttl"`
	VerifyToleranceExact bool          `json:"verify_tolerance_exact"`
}

// PromoteConfig tunes the working-to-production promotion tolerance.
type PromoteConfig struct {
	TolerancePercent float64 `json:"tolerance_percent"`
	ToleranceMinRows int     `json:"tolerance_min_rows"`
}

// StageConfig names one orchestrator stage and whether its failure aborts
// the run.
type StageConfig struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// OrchestratorConfig lists the ordered stage sequence and the per-stage
// watchdog ceiling.
type OrchestratorConfig struct {
	Stages               []StageConfig `json:"stages"`
	StageWatchdogMinutes int           `json:"stage_watchdog_minutes"`
	NonInteractiveEnvs   []string      `json:"non_interactive_envs"`
}

// S3MirrorConfig optionally mirrors written artifacts to S3 for archival.
type S3MirrorConfig struct {
	Enabled bool   `json:"enabled"`
	Bucket  string `json:"bucket"`
	Prefix  string `json:"prefix"`
	Region  string `json:"region"`
}

// ArtifactsConfig controls where per-stage JSON/report artifacts land.
type ArtifactsConfig struct {
	OutputDir string         `json:"output_dir"`
	S3Mirror  S3MirrorConfig `json:"s3_mirror"`
}

// MetricsConfig controls the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

// DefaultConfig returns the documented defaults: 3 fetch retries, a 15
// minimum modality-count quality gate, batch size 100, 5 rate-limit-table
// polling attempts 3s apart, and a 5%/1-row promotion tolerance.
func DefaultConfig() *Config {
	fetch := FetchConfig{TimeoutSeconds: 30, MaxRetries: 3}
	return &Config{
		Database: DatabaseConfig{
			DSNSecretRef:    "env://PIPELINE_SUPABASE_URL",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Providers: ProvidersConfig{
			Google: GoogleConfig{
				Enabled:         true,
				APIBaseURL:      "https://generativelanguage.googleapis.com",
				ModelsEndpoint:  "/v1beta/models",
				APIKeySecretRef: "env://GOOGLE_API_KEY",
				GeminiDocURL:    "https://ai.google.dev/gemini-api/docs/models",
				ImagenDocURLs: []string{
					"https://ai.google.dev/gemini-api/docs/imagen",
				},
				VeoDocURLs: []string{
					"https://ai.google.dev/gemini-api/docs/video",
				},
				GemmaDocURLs: []string{
					"https://ai.google.dev/gemma/docs/core",
					"https://ai.google.dev/gemma/docs/gemma-3",
					"https://ai.google.dev/gemma/docs/gemma-3n",
				},
				QualityGate: QualityGate{
					MinModalityCount: 15,
					KnownWrongPattern: []string{
						"PDF on gemini-2.0",
					},
				},
				Fetch: fetch,
			},
			Groq: GroqConfig{
				Enabled:            true,
				ModelsPageURL:      "https://console.groq.com/docs/models",
				RateLimitsPageURL:  "https://console.groq.com/docs/rate-limits",
				ModelDetailURLTmpl: "https://console.groq.com/docs/model/%s",
				RateLimitRetry: RateLimitRetry{
					MaxAttempts: 5,
					Interval:    3 * time.Second,
				},
				Fetch: fetch,
			},
			OpenRouter: OpenRouterConfig{
				Enabled:           true,
				ModelsEndpoint:    "https://openrouter.ai/api/v1/models",
				APIKeySecretRef:   "env://OPENROUTER_API_KEY",
				FreePriceMarkers:  []string{"0", "0.0", "0.00"},
				BillingKeywords:   []string{"free to use", "no cost"},
				ExclusionKeywords: []string{"preview", "experimental", "beta"},
				FreeSuffix:        " (free)",
				PreferSuffixed:    true,
				Fetch:             fetch,
			},
		},
		License: LicenseConfig{
			HuggingFaceAPIKeySecretRef: "env://HUGGINGFACE_API_KEY",
			ProprietaryMapping:         map[string]string{},
			GoogleFamilyLicense:        "Google Gemini Terms",
			MetaFamilyLicense:          "Llama Community License",
			OpensourceURLTable: map[string]string{
				"Apache 2.0": "https://www.apache.org/licenses/LICENSE-2.0",
				"MIT":        "https://opensource.org/license/mit",
			},
			StandardizationTable: map[string]string{
				"apache-2.0": "Apache 2.0",
				"mit":        "MIT",
			},
			CustomURLOverrides:  map[string]string{},
			ProbeTimeoutSeconds: 8,
		},
		Slug: SlugConfig{
			NameSubstitutions: map[string]string{
				"gpt-oss-120b": "OpenAI: gpt-oss-120b",
			},
			MappingSuffixes: []string{"-instruct", "-chat", "-it", "-turbo", "-preview", "-exp"},
		},
		ProviderFact: ProviderEnrichmentConfig{
			Rules: []ProviderFactRule{
				{MatchPrefix: "meta-llama/", ModelProvider: "Meta", Country: "United States", OfficialURL: "https://llama.meta.com"},
				{MatchContains: "llama", ModelProvider: "Meta", Country: "United States", OfficialURL: "https://llama.meta.com"},
				{MatchPrefix: "google/", ModelProvider: "Google", Country: "United States", OfficialURL: "https://ai.google.dev"},
				{MatchPrefix: "mistralai/", ModelProvider: "Mistral AI", Country: "France", OfficialURL: "https://mistral.ai"},
				{MatchPrefix: "deepseek/", ModelProvider: "DeepSeek", Country: "China", OfficialURL: "https://www.deepseek.com"},
				{MatchPrefix: "qwen/", ModelProvider: "Alibaba", Country: "China", OfficialURL: "https://qwenlm.github.io"},
				{MatchPrefix: "x-ai/", ModelProvider: "xAI", Country: "United States", OfficialURL: "https://x.ai"},
				{MatchPrefix: "anthropic/", ModelProvider: "Anthropic", Country: "United States", OfficialURL: "https://www.anthropic.com"},
				{MatchPrefix: "openai/", ModelProvider: "OpenAI", Country: "United States", OfficialURL: "https://openai.com"},
			},
			ProviderAPIAccess: map[string]string{
				"Google":     "https://generativelanguage.googleapis.com",
				"Groq":       "https://console.groq.com/docs",
				"OpenRouter": "https://openrouter.ai/api/v1",
			},
		},
		Sync: SyncConfig{
			BatchSize:            100,
			AdvisoryLockTTL:      10 * time.Minute,
			VerifyToleranceExact: true,
		},
		Promote: PromoteConfig{
			TolerancePercent: 5,
			ToleranceMinRows: 1,
		},
		Orchestrator: OrchestratorConfig{
			Stages: []StageConfig{
				{Name: "extract", Required: true},
				{Name: "license", Required: false},
				{Name: "modality", Required: false},
				{Name: "fuse", Required: true},
				{Name: "sync", Required: true},
				{Name: "mapping", Required: false},
				{Name: "compare", Required: false},
			},
			StageWatchdogMinutes: 15,
			NonInteractiveEnvs:   []string{"GITHUB_ACTIONS", "CI", "AUTOMATED_EXECUTION"},
		},
		Artifacts: ArtifactsConfig{
			OutputDir: "./outputs",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
	}
}

// LoadFromFile reads and parses a JSON configuration file, applying
// defaults for zero-valued sections and validating the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the minimal set of invariants the pipeline depends on at
// startup; it does not attempt to reach any network endpoint.
func (c *Config) Validate() error {
	if c.Database.DSNSecretRef == "" {
		return fmt.Errorf("database.dsn_secret_ref must be set")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive")
	}
	if c.Promote.TolerancePercent < 0 {
		return fmt.Errorf("promote.tolerance_percent must be non-negative")
	}
	if len(c.Orchestrator.Stages) == 0 {
		return fmt.Errorf("orchestrator.stages must not be empty")
	}
	if c.Providers.Google.Enabled && c.Providers.Google.APIKeySecretRef == "" {
		return fmt.Errorf("providers.google.api_key_secret_ref must be set when enabled")
	}
	if c.Providers.OpenRouter.Enabled && c.Providers.OpenRouter.APIKeySecretRef == "" {
		return fmt.Errorf("providers.openrouter.api_key_secret_ref must be set when enabled")
	}
	return nil
}
