package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit", func(t *testing.T) {
		limiter := NewInMemoryLimiter()
		for i := range 3 {
			res, err := limiter.Allow(ctx, "owner-a", 3, time.Hour)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 2-i, res.Remaining)
		}

		res, err := limiter.Allow(ctx, "owner-a", 3, time.Hour)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Zero(t, res.Remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		limiter := NewInMemoryLimiter()
		_, err := limiter.Allow(ctx, "owner-a", 1, time.Hour)
		require.NoError(t, err)

		res, err := limiter.Allow(ctx, "owner-b", 1, time.Hour)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewInMemoryLimiter()
		_, err := limiter.Allow(ctx, "owner-a", 1, 10*time.Millisecond)
		require.NoError(t, err)

		res, err := limiter.Allow(ctx, "owner-a", 1, 10*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, res.Allowed)

		time.Sleep(15 * time.Millisecond)

		res, err = limiter.Allow(ctx, "owner-a", 1, 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})
}
