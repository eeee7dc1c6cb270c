package runid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGeneratesUniqueIDs(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "run-123")
	assert.Equal(t, "run-123", FromContext(ctx))
}

func TestFromContextEmptyWhenAbsent(t *testing.T) {
	assert.Equal(t, "", FromContext(context.Background()))
}

func TestEnsurePreservesExisting(t *testing.T) {
	ctx := WithContext(context.Background(), "existing")
	newCtx, id := Ensure(ctx)
	assert.Equal(t, "existing", id)
	assert.Equal(t, "existing", FromContext(newCtx))
}

func TestEnsureGeneratesWhenAbsent(t *testing.T) {
	newCtx, id := Ensure(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(newCtx))
}
