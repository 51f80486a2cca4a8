package repository

import (
	"context"
	"sync/atomic"
	"time"

	"coldbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverAttemptLimiter tries the primary limiter and switches to the
// fallback while the primary is down, probing for recovery once a minute.
type FailoverAttemptLimiter struct {
	primary   domain.AttemptLimiter
	fallback  domain.AttemptLimiter
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64 // unix nano of the last failed probe
}

func NewFailoverAttemptLimiter(primary, fallback domain.AttemptLimiter, logger *zerolog.Logger) *FailoverAttemptLimiter {
	return &FailoverAttemptLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverAttemptLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary attempt limiter failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	// Probe the primary again after a minute of downtime.
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Allow(ctx, key, limit, window)
}
