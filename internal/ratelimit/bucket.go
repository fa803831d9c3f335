// Package ratelimit implements LeakyBucket: a token bucket used to cap
// packet intake, L7-log emission, and NPB egress bandwidth. A bucket may be
// configured with an unbounded (None) cap, in which case Allow always
// succeeds and no accounting work happens.
package ratelimit

import (
	"sync"
	"time"
)

// Unlimited, when passed as capacity to New, disables limiting entirely.
const Unlimited = 0

// Bucket is a leaky/token bucket rate limiter. The zero value is not usable;
// use New.
type Bucket struct {
	mu         sync.Mutex
	capacity   int64
	tokens     float64
	refillRate float64 // tokens per second
	last       time.Time
	unlimited  bool

	rejected int64
	admitted int64
}

// New creates a Bucket that admits up to capacity tokens per second. A
// capacity of Unlimited (0) disables limiting.
func New(capacity int64) *Bucket {
	if capacity <= Unlimited {
		return &Bucket{unlimited: true}
	}
	return &Bucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: float64(capacity),
		last:       time.Now(),
	}
}

// Allow reports whether n units may proceed right now, consuming n tokens if
// so. cost is typically 1 (a log line) or a byte count (NPB bandwidth).
func (b *Bucket) Allow(cost int64) bool {
	if b.unlimited {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.refillRate
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}

	if b.tokens >= float64(cost) {
		b.tokens -= float64(cost)
		b.admitted++
		return true
	}
	b.rejected++
	return false
}

// Snapshot implements stats.Countable.
func (b *Bucket) Snapshot() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]int64{
		"tokens":   int64(b.tokens),
		"admitted": b.admitted,
		"rejected": b.rejected,
	}
}
