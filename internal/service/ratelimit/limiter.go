// Package ratelimit implements a keyed token bucket with a fixed rate,
// used to cap per-endpoint RPC call rates.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter hands out tokens per key at a fixed refill rate.
type Limiter struct {
	capacity   float64
	refillRate float64 // tokens per second

	mu sync.Mutex
	m  map[string]*bucket
}

// New creates a limiter where each key holds up to capacity tokens,
// refilled at refillPerSec.
func New(capacity, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillPerSec <= 0 {
		refillPerSec = capacity
	}
	return &Limiter{
		capacity:   capacity,
		refillRate: refillPerSec,
		m:          make(map[string]*bucket),
	}
}

// Allow consumes one token for key, reporting whether one was available.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}
