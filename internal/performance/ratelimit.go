// Package performance paces outgoing backend requests.
package performance

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	rate  float64 // tokens per second
	burst int     // max tokens
	now   func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
	allowed    int64
	delayed    int64
}

// NewRateLimiter creates a limiter that starts with a full bucket.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		now:        time.Now,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// refill adds the tokens accrued since the last update. Callers hold r.mu.
func (r *RateLimiter) refill() time.Time {
	now := r.now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed > 0 {
		r.tokens += elapsed * r.rate
		if r.tokens > float64(r.burst) {
			r.tokens = float64(r.burst)
		}
	}
	r.lastUpdate = now
	return now
}

// Allow takes a token if one is available.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		r.allowed++
		return true
	}
	return false
}

// reserve takes a token, returning how long until it is valid.
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	r.tokens--
	r.allowed++
	if r.tokens >= 0 {
		return 0
	}
	r.delayed++
	if r.rate <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(-r.tokens / r.rate * float64(time.Second))
}

// cancel returns a token taken by reserve.
func (r *RateLimiter) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens++
	r.allowed--
}

// Wait blocks until a request is allowed or ctx is done. A cancelled wait
// gives its token back.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := r.reserve()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LimiterStats holds limiter counters.
type LimiterStats struct {
	Allowed int64
	Delayed int64
	Tokens  float64
}

// Stats returns limiter counters.
func (r *RateLimiter) Stats() LimiterStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return LimiterStats{Allowed: r.allowed, Delayed: r.delayed, Tokens: r.tokens}
}
