package modality

import (
	"testing"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestStandardizeMapsLowercasesAndReorders(t *testing.T) {
	got := Standardize([]string{"Audio", "text", "Image"})
	assert.Equal(t, []string{catalog.ModalityText, catalog.ModalityImage, catalog.ModalityAudio}, got)
}

func TestStandardizeDedupesPreservingFirstOccurrence(t *testing.T) {
	got := Standardize([]string{"text", "Text", "TEXT", "image"})
	assert.Equal(t, []string{catalog.ModalityText, catalog.ModalityImage}, got)
}

func TestStandardizeMapsTextEmbeddingVariants(t *testing.T) {
	assert.Equal(t, []string{catalog.ModalityTextEmbeddings}, Standardize([]string{"text-embeddings"}))
	assert.Equal(t, []string{catalog.ModalityTextEmbeddings}, Standardize([]string{"text embedding"}))
}

func TestStandardizeSharesPriorityBetweenTextAndEmbeddings(t *testing.T) {
	got := Standardize([]string{"image", "text-embeddings"})
	assert.Equal(t, []string{catalog.ModalityTextEmbeddings, catalog.ModalityImage}, got)
}

func TestStandardizeDropsBlankTokens(t *testing.T) {
	assert.Equal(t, []string{catalog.ModalityText}, Standardize([]string{"", "  ", "text"}))
}

func TestResolvePrefersOverrideThenScraperThenRaw(t *testing.T) {
	assert.Equal(t, []string{catalog.ModalityImage}, Resolve([]string{"image"}, []string{"audio"}, []string{"text"}))
	assert.Equal(t, []string{catalog.ModalityAudio}, Resolve(nil, []string{"audio"}, []string{"text"}))
	assert.Equal(t, []string{catalog.ModalityText}, Resolve(nil, nil, []string{"text"}))
}

func TestJoinUsesCommaSpaceSeparator(t *testing.T) {
	assert.Equal(t, "Text, Image, Audio", Join([]string{catalog.ModalityText, catalog.ModalityImage, catalog.ModalityAudio}))
}

func TestFactResolvesBothDirectionsIndependently(t *testing.T) {
	fact := Fact(nil, []string{"text"}, nil, []string{"image"}, nil, []string{"audio"})
	assert.Equal(t, catalog.ModalityFact{
		Inputs:  []string{catalog.ModalityText},
		Outputs: []string{catalog.ModalityImage},
	}, fact)
}
