// Package ratelimit bounds how fast one owner can issue referral codes.
// A sliding window (rather than fixed buckets) prevents a burst straddling
// a bucket boundary from doubling the effective limit.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result reports the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter answers whether one more issuance is allowed for a key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// InMemoryLimiter implements Limiter with an in-memory sliding window.
// Single-process only; distributed deployments use RedisLimiter.
type InMemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewInMemoryLimiter() *InMemoryLimiter {
	return &InMemoryLimiter{windows: make(map[string][]time.Time)}
}

// Allow checks the window and records the attempt when allowed.
func (l *InMemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		l.windows[key] = kept
		return &Result{Allowed: false, Remaining: 0, ResetAt: kept[0].Add(window)}, nil
	}

	kept = append(kept, now)
	l.windows[key] = kept
	return &Result{
		Allowed:   true,
		Remaining: limit - len(kept),
		ResetAt:   kept[0].Add(window),
	}, nil
}
