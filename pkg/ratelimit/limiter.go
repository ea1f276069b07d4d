// Package ratelimit enforces per-agent request budgets over a fixed
// window. The limit itself comes from the caller's trust policy, so one
// limiter serves every tier. State is scoped to the running process
// unless the Redis limiter is wired in.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of one admission attempt. The attempt is
// counted whether or not it is allowed.
type Result struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window
// rolls over.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

type Limiter interface {
	Allow(key string, limit int) Result
}

// InMemoryLimiter is a single-process windowed counter. Expired
// windows are swept lazily on each call.
type InMemoryLimiter struct {
	mu     sync.Mutex
	window time.Duration
	counts map[string]bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewInMemory(window time.Duration) *InMemoryLimiter {
	if window <= 0 {
		window = time.Hour
	}
	return &InMemoryLimiter{
		window: window,
		counts: make(map[string]bucket),
	}
}

func (l *InMemoryLimiter) Allow(key string, limit int) Result {
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)
	b, ok := l.counts[key]
	if !ok || now.After(b.resetAt) {
		b = bucket{resetAt: now.Add(l.window)}
	}
	b.count++
	l.counts[key] = b
	remaining := limit - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   b.count <= limit,
		Count:     b.count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   b.resetAt,
	}
}

func (l *InMemoryLimiter) sweep(now time.Time) {
	for k, b := range l.counts {
		if now.After(b.resetAt) {
			delete(l.counts, k)
		}
	}
}
