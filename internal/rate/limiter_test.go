package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(2, time.Minute)

	r, err := l.Allow(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.EqualValues(t, 1, r.Remaining)

	r, _ = l.Allow(ctx, "uid-1")
	assert.True(t, r.Allowed)

	r, _ = l.Allow(ctx, "uid-1")
	assert.False(t, r.Allowed)
	assert.EqualValues(t, 0, r.Remaining)
	assert.Greater(t, r.RetryAfter, time.Duration(0))

	// Keys independientes.
	r, _ = l.Allow(ctx, "uid-2")
	assert.True(t, r.Allowed)
}

func TestDecide_RetryAfterFallback(t *testing.T) {
	r := decide(5, 1, -1, 30*time.Second)
	assert.False(t, r.Allowed)
	assert.Equal(t, 30*time.Second, r.RetryAfter)
}
