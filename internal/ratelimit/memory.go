package ratelimit

import (
	"context"
	"sync"
	"time"
)

const memoryPruneThreshold = 4096

type memoryEntry struct {
	window int64
	count  int
}

// MemoryLimiter implements a fixed-window in-memory rate limiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	counters map[string]*memoryEntry
}

// NewMemoryLimiter constructs a MemoryLimiter counting over window.
func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	if window < time.Second {
		window = DefaultWindow
	}
	return &MemoryLimiter{
		window:   window,
		counters: make(map[string]*memoryEntry),
	}
}

// Allow checks whether the request should be allowed in the current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	size := int64(l.window / time.Second)
	idx := windowIndex(now.Unix(), size)
	reset := time.Unix((idx+1)*size, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.counters) > memoryPruneThreshold {
		for k, e := range l.counters {
			if e.window != idx {
				delete(l.counters, k)
			}
		}
	}
	entry := l.counters[key]
	if entry == nil {
		entry = &memoryEntry{window: idx}
		l.counters[key] = entry
	}
	if entry.window != idx {
		entry.window = idx
		entry.count = 0
	}
	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, Reset: reset}, nil
}
