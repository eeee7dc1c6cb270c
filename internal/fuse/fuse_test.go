package fuse

import (
	"testing"
	"time"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/extract"
	"github.com/aicatalog/cpe/internal/license"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviderCfg() config.ProviderEnrichmentConfig {
	return config.ProviderEnrichmentConfig{
		Rules: []config.ProviderFactRule{
			{MatchPrefix: "meta-llama/", ModelProvider: "Meta", Country: "United States", OfficialURL: "https://llama.meta.com"},
		},
		ProviderAPIAccess: map[string]string{"OpenRouter": "https://openrouter.ai/api/v1"},
	}
}

func testSlugCfg() config.SlugConfig {
	return config.SlugConfig{
		MappingSuffixes: []string{"-instruct", "-it"},
	}
}

func TestFuseBuildsRowFromS1WorkedExample(t *testing.T) {
	result := extract.NewResult()
	slugKey := "meta-llama/llama-3.1-8b-instruct"
	result.RawModels[slugKey] = catalog.RawModel{
		DisplayName:   "Meta: Llama 3.1 8B Instruct (free)",
		HuggingFaceID: "meta-llama/Llama-3.1-8B-Instruct",
		SourceSection: catalog.SourceAPI,
	}
	result.Modalities[slugKey] = catalog.ModalityFact{
		Inputs:  []string{catalog.ModalityText},
		Outputs: []string{catalog.ModalityText},
	}

	licenseCfg := config.LicenseConfig{MetaFamilyLicense: "Llama Community License"}
	resolver := license.NewResolver(licenseCfg, nil)
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	out := Fuse(t.Context(), catalog.OpenRouter, result, resolver, testProviderCfg(), testSlugCfg(), nil, now)

	require.Len(t, out.Rows, 1)
	row := out.Rows[0]
	assert.Equal(t, "OpenRouter", row.InferenceProvider)
	assert.Equal(t, "Meta", row.ModelProvider)
	assert.Equal(t, "Llama 3.1 8B Instruct", row.HumanReadableName)
	assert.Equal(t, "llama-3.1-8b-instruct", row.ProviderSlug)
	assert.Equal(t, "Text", row.InputModalities)
	assert.Equal(t, "Text", row.OutputModalities)
	assert.Equal(t, "Llama Community License", row.LicenseName)
	assert.Equal(t, now, row.UpdatedAt)
	assert.Equal(t, now, row.CreatedAt)
}

func TestFuseUsesSourceTimestampWhenPresent(t *testing.T) {
	result := extract.NewResult()
	source := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	result.RawModels["vendor/model"] = catalog.RawModel{
		DisplayName:     "Model",
		CreatedAtSource: &source,
	}

	resolver := license.NewResolver(config.LicenseConfig{}, nil)
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	out := Fuse(t.Context(), catalog.Groq, result, resolver, config.ProviderEnrichmentConfig{}, testSlugCfg(), nil, now)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, source, out.Rows[0].CreatedAt)
	assert.Equal(t, now, out.Rows[0].UpdatedAt)
}

func TestFuseUnknownSentinelsWhenProviderFactUnmatched(t *testing.T) {
	result := extract.NewResult()
	result.RawModels["cohere/command-r-plus"] = catalog.RawModel{DisplayName: "Command R Plus"}

	resolver := license.NewResolver(config.LicenseConfig{}, nil)
	out := Fuse(t.Context(), catalog.OpenRouter, result, resolver, testProviderCfg(), testSlugCfg(), nil, time.Now())

	require.Len(t, out.Rows, 1)
	row := out.Rows[0]
	assert.Equal(t, catalog.Unknown, row.ModelProvider)
	assert.Equal(t, catalog.Unknown, row.ModelProviderCountry)
	assert.Equal(t, catalog.Unknown, row.OfficialURL)
	assert.Equal(t, catalog.Unknown, row.LicenseName)
}

func TestFuseAppliesOperatorRemoveList(t *testing.T) {
	result := extract.NewResult()
	result.RawModels["meta-llama/llama-3.1-8b-instruct"] = catalog.RawModel{DisplayName: "Llama 3.1 8B"}
	result.RawModels["google/gemini-pro"] = catalog.RawModel{DisplayName: "Gemini Pro"}

	resolver := license.NewResolver(config.LicenseConfig{}, nil)
	out := Fuse(t.Context(), catalog.Google, result, resolver, config.ProviderEnrichmentConfig{}, testSlugCfg(), []string{"google/gemini-pro"}, time.Now())

	require.Len(t, out.Rows, 1)
	assert.Equal(t, "llama-3.1-8b-instruct", out.Rows[0].ProviderSlug)
	require.Len(t, out.Removed, 1)
	assert.Equal(t, "google/gemini-pro", out.Removed[0].CanonicalSlug)
}
