package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverAttemptLimiter(t *testing.T) {
	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	logger := zerolog.New(io.Discard)
	limiter := NewFailoverAttemptLimiter(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "k1", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "k1", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackTakesOver", func(t *testing.T) {
		primary.On("Allow", ctx, "k2", 5, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("Allow", ctx, "k2", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "k2", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("WhileDownPrimaryIsNotCalled", func(t *testing.T) {
		limiter.isDown.Store(true)
		limiter.lastCheck.Store(time.Now().UnixNano())
		fallback.On("Allow", ctx, "k3", 5, time.Minute).Return(false, nil).Once()

		allowed, err := limiter.Allow(ctx, "k3", 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		limiter.isDown.Store(true)
		limiter.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("Allow", ctx, "k4", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "k4", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		limiter.isDown.Store(true)
		limiter.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("Allow", ctx, "k5", 5, time.Minute).Return(false, errors.New("still fail")).Once()
		fallback.On("Allow", ctx, "k5", 5, time.Minute).Return(true, nil).Once()

		allowed, err := limiter.Allow(ctx, "k5", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, limiter.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}

func TestMemoryAttemptLimiter(t *testing.T) {
	limiter := NewMemoryAttemptLimiter()
	ctx := context.Background()

	t.Run("AllowsUnderLimit", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			allowed, err := limiter.Allow(ctx, "owner-1", 2, time.Minute)
			assert.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("BlocksOverLimit", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "owner-1", 2, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("WindowExpiry", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, "short", 1, 10*time.Millisecond)
		assert.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = limiter.Allow(ctx, "short", 1, 10*time.Millisecond)
		assert.NoError(t, err)
		assert.False(t, allowed)

		time.Sleep(20 * time.Millisecond)

		allowed, err = limiter.Allow(ctx, "short", 1, 10*time.Millisecond)
		assert.NoError(t, err)
		assert.True(t, allowed)
	})
}
