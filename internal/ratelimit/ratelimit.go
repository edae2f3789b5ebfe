// Package ratelimit counts requests per key inside a time window. The gateway
// and the auth IP limiter depend only on the Counter interface.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Hansade2005/pixel-pilot-sub013/internal/logger"
)

var customLog = logger.NewLogger()

// Result describes a key's position in its current window after a call to Allow.
type Result struct {
	Allowed   bool
	Limit     int
	Usage     int
	Remaining int
	ResetIn   time.Duration
}

// Counter atomically increments and checks the usage of a key.
type Counter interface {
	// Allow counts one request for key when the window still has room.
	// A rejected request is not counted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// MemoryCounter is an in-process sliding-window Counter.
type MemoryCounter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	now      func() time.Time
}

// NewMemoryCounter returns an empty in-process counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (mc *MemoryCounter) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := mc.now()
	windowStart := now.Add(-window)

	// Drop timestamps that fell out of the window
	requests := mc.requests[key]
	filtered := requests[:0]
	for _, t := range requests {
		if t.After(windowStart) {
			filtered = append(filtered, t)
		}
	}

	res := Result{Limit: limit, Usage: len(filtered)}
	if len(filtered) > 0 {
		res.ResetIn = filtered[0].Add(window).Sub(now)
	} else {
		res.ResetIn = window
	}

	if len(filtered) >= limit {
		mc.requests[key] = filtered
		return res, nil
	}

	mc.requests[key] = append(filtered, now)
	res.Allowed = true
	res.Usage++
	res.Remaining = limit - res.Usage
	return res, nil
}

// Sweep forgets keys with no requests newer than maxAge. It keeps memory
// bounded when many distinct keys (client IPs) are seen.
func (mc *MemoryCounter) Sweep(maxAge time.Duration) int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	cutoff := mc.now().Add(-maxAge)
	removed := 0
	for key, ts := range mc.requests {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(mc.requests, key)
			removed++
		}
	}
	return removed
}
