package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(2, time.Minute)
	l.Now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "acct-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.EqualValues(t, 0, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter)

	other, err := l.Allow(ctx, "acct-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(time.Minute)
	res, err = l.Allow(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "ventana nueva")
	assert.EqualValues(t, 1, res.CurrentHits)
}

func TestResult_RetryAfterFallback(t *testing.T) {
	res := result(5, 3, -1, 1500*time.Millisecond)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2*time.Second, res.RetryAfter)
}
