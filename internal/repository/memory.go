package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryAttemptLimiter is the in-process fallback counter. Windows are
// tracked per key and reset lazily on the next attempt after expiry.
type MemoryAttemptLimiter struct {
	attempts sync.Map
}

func NewMemoryAttemptLimiter() *MemoryAttemptLimiter {
	return &MemoryAttemptLimiter{}
}

type attemptEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemoryAttemptLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	val, _ := r.attempts.LoadOrStore(key, &attemptEntry{})
	entry := val.(*attemptEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := time.Now()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++

	return entry.count <= limit, nil
}
