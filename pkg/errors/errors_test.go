package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{"connection failure", 0, true},
		{"rate limited", 429, true},
		{"internal error", 500, true},
		{"bad gateway", 502, true},
		{"bad request", 400, false},
		{"not found", 404, false},
		{"ok", 200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableStatus(tt.statusCode))
		})
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	fe := NewFetchError("GET", "https://example.com", 503, inner)
	require.True(t, fe.Retryable)
	require.ErrorIs(t, fe, inner)
}

func TestDBErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	de := &DBError{Op: "insert", Provider: "Groq", Retryable: false, Err: inner}
	require.ErrorIs(t, de, inner)
	require.Contains(t, de.Error(), "insert")
}

func TestSentinelErrorsDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrQualityGate, ErrNoHFID))
	assert.False(t, errors.Is(ErrVerifyMismatch, ErrBackupFailed))
}
