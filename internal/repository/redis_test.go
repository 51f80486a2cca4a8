package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAttemptLimiter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	limiter := NewRedisAttemptLimiter(client)
	ctx := context.Background()

	t.Run("AllowsUnderLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := limiter.Allow(ctx, "booking_attempts:owner-1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("BlocksOverLimit", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "booking_attempts:owner-1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("WindowExpiry", func(t *testing.T) {
		s.FastForward(time.Minute + time.Millisecond)

		allowed, err := limiter.Allow(ctx, "booking_attempts:owner-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "booking_attempts:owner-2", 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Allow(ctx, "booking_attempts:owner-2", 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		limiter := NewRedisAttemptLimiter(nil)
		_, err := limiter.Allow(ctx, "key", 1, time.Minute)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		err := Ping(ctx, client)
		assert.NoError(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		err := Close(client)
		assert.NoError(t, err)
	})
}
