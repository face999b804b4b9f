package utils

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a simple rate limiter: capacity tokens, refilled at
// refillPerSec. Both broker order placement and historical data fetching sit
// behind one of these.
type TokenBucket struct {
	mutex        sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	lastRefill   time.Time
}

func NewTokenBucket(capacity int, refillPerSec float64) *TokenBucket {
	return &TokenBucket{
		capacity:     float64(capacity),
		tokens:       float64(capacity),
		refillPerSec: refillPerSec,
		lastRefill:   time.Now(),
	}
}

func (b *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Allow consumes a token if one is available.
func (b *TokenBucket) Allow() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.refill(time.Now())

	if b.tokens >= 1 {
		b.tokens--
		return true
	}

	return false
}

// Take blocks until a token is available or the context ends.
func (b *TokenBucket) Take(ctx context.Context) error {
	for {
		if b.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
