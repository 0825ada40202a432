package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces calls against the upstream API.
type Limiter interface {
	// Allow reports whether a call may proceed right now
	Allow() bool
	// Wait blocks until the limiter admits another call or the context is
	// cancelled
	Wait(ctx context.Context) error
	// Reset restores the limiter to its idle state
	Reset()
}

// TokenBucket admits a fixed number of upstream calls per refill period.
// Page fetches, detail lookups and asset downloads all draw from the same
// bucket, so the configured requests-per-minute bound covers the whole
// pipeline.
type TokenBucket struct {
	capacity     int           // Calls admitted per period
	tokens       int           // Remaining calls this period
	refillPeriod time.Duration // Period after which the bucket refills
	lastRefill   time.Time     // Last time the bucket was refilled
	mu           sync.Mutex
}

// NewTokenBucket creates a token bucket admitting capacity calls per period.
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a call can proceed.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available or the context is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		untilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if untilRefill <= 0 {
			// Small pause to prevent busy waiting
			untilRefill = 100 * time.Millisecond
		}

		timer := time.NewTimer(untilRefill)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Reset restores the bucket to full capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill adds tokens based on elapsed time.
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	if elapsed >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}
