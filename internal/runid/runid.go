// Package runid generates and propagates per-run correlation identifiers.
// Every pipeline run, and every stage within it, carries one so log lines
// and report entries can be joined back to a single invocation.
package runid

import (
	"context"

	"github.com/google/uuid"
)

type runIDKey struct{}

// New generates a fresh run identifier.
func New() string {
	return uuid.NewString()
}

// WithContext attaches a run identifier to ctx.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// FromContext extracts the run identifier carried by ctx, or "" if absent.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Ensure returns ctx unchanged if it already carries a run id, otherwise
// returns a context with a freshly generated one and the id itself.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithContext(ctx, id), id
}
