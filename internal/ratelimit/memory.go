package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps fixed-window counters in process memory. Counters are lost on restart
// and are not shared between instances; use RedisLimiter when running more than one.
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*window
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

func NewMemoryLimiter(limit int, per time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*window),
		limit:   limit,
		window:  per,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &window{resetAt: now.Add(l.window)}
		l.entries[key] = entry
	}
	entry.count++
	return result(entry.count, l.limit, entry.resetAt.Sub(now)), nil
}

// sweep drops expired windows at most once per window length. Caller holds mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, entry := range l.entries {
		if !now.Before(entry.resetAt) {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
