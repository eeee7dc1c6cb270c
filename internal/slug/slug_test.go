package slug

import (
	"testing"

	"github.com/aicatalog/cpe/internal/config"
	"github.com/stretchr/testify/assert"
)

func testCfg() config.SlugConfig {
	return config.SlugConfig{
		NameSubstitutions: map[string]string{
			"gpt-oss-120b": "OpenAI: gpt-oss-120b",
		},
		MappingSuffixes: []string{"-instruct", "-preview", "-turbo", "-chat", "-exp", "-it"},
	}
}

func TestCleanDisplayNameStripsPrefixAndFreeSuffix(t *testing.T) {
	got := CleanDisplayName("Meta: Llama 3.1 8B Instruct (free)", "meta-llama/llama-3.1-8b-instruct", testCfg())
	assert.Equal(t, "Llama 3.1 8B Instruct", got)
}

func TestCleanDisplayNameAppliesSpecialSubstitution(t *testing.T) {
	got := CleanDisplayName("gpt-oss-120b", "vendor/gpt-oss-120b", testCfg())
	assert.Equal(t, "OpenAI: gpt-oss-120b", got)
}

func TestCleanDisplayNameLeavesPlainNameAlone(t *testing.T) {
	got := CleanDisplayName("Llama Guard 3 8B", "meta-llama/llama-guard-3-8b", testCfg())
	assert.Equal(t, "Llama Guard 3 8B", got)
}

func TestCleanDisplayNameDerivesGemmaNameFromSlug(t *testing.T) {
	got := CleanDisplayName("anything, ignored", "google/gemma-3n-e4b-it", testCfg())
	assert.Equal(t, "Gemma 3N E4B IT", got)
}

func TestProviderSlugSplitsOnFirstSlash(t *testing.T) {
	assert.Equal(t, "llama-3.1-8b-instruct", ProviderSlug("meta-llama/llama-3.1-8b-instruct"))
	assert.Equal(t, "whisper-large-v3", ProviderSlug("whisper-large-v3"))
}

func TestNormalizeForMapping(t *testing.T) {
	cfg := testCfg()
	cases := map[string]string{
		"gpt-4.0":        "gpt-4-0",
		"llama 3.1":      "llama-3-1",
		"model_name_v2":  "model-name-v2",
		"gemma-3-12b-it": "gemma-3-12b",
		"claude-3-turbo": "claude-3",
		"foo--bar":       "foo-bar",
		"-leading-dash-": "leading-dash",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeForMapping(in, cfg), in)
	}
}

func TestNormalizeForMappingStripsLongestSuffixOnly(t *testing.T) {
	cfg := testCfg()
	assert.Equal(t, "gpt-4", NormalizeForMapping("gpt-4-instruct", cfg))
}
