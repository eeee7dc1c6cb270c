package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberBeforeUnitLayout(t *testing.T) {
	row := Parse("Llama 3.1 8B", "Groq", "30 RPM\n14,400 RPD\n6,000 TPM")
	assert.True(t, row.Parseable)
	require.NotNil(t, row.RPM)
	assert.Equal(t, 30, *row.RPM)
	require.NotNil(t, row.RPD)
	assert.Equal(t, 14400, *row.RPD)
	require.NotNil(t, row.TPM)
	assert.Equal(t, 6000, *row.TPM)
	assert.Nil(t, row.TPD)
}

func TestParseUnitColonNumberLayout(t *testing.T) {
	row := Parse("Llama 3.1 8B", "Groq", "RPM: 30, TPM: 6000, RPD: 14400")
	assert.True(t, row.Parseable)
	require.NotNil(t, row.RPM)
	assert.Equal(t, 30, *row.RPM)
	require.NotNil(t, row.TPM)
	assert.Equal(t, 6000, *row.TPM)
	require.NotNil(t, row.RPD)
	assert.Equal(t, 14400, *row.RPD)
}

func TestParseUnparseableWhenNoUnitTokenFound(t *testing.T) {
	row := Parse("Llama 3.1 8B", "Groq", "-")
	assert.False(t, row.Parseable)
	assert.Equal(t, "-", row.RawString)
	assert.Nil(t, row.RPM)
}

func TestParsePreservesRawStringRegardless(t *testing.T) {
	row := Parse("Llama 3.1 8B", "Groq", "30 RPM")
	assert.Equal(t, "30 RPM", row.RawString)
}

func TestParseHandlesAllFourUnits(t *testing.T) {
	row := Parse("m", "Groq", "10 RPM 100 RPD 1000 TPM 100000 TPD")
	require.NotNil(t, row.RPM)
	require.NotNil(t, row.RPD)
	require.NotNil(t, row.TPM)
	require.NotNil(t, row.TPD)
	assert.Equal(t, 10, *row.RPM)
	assert.Equal(t, 100, *row.RPD)
	assert.Equal(t, 1000, *row.TPM)
	assert.Equal(t, 100000, *row.TPD)
}
