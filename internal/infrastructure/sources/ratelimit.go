// Package sources implements the external content sources the scanner
// searches: Google Custom Search and X recent search.
package sources

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket plus a hard backoff window set when the
// remote side answers 429.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	now     func() time.Time
}

// NewRateLimiter allows rps sustained requests with the given burst.
// rps <= 0 disables the token bucket.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst), now: time.Now}
}

// BackingOff reports whether a 429 window is still open, and until when.
func (r *RateLimiter) BackingOff() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt, r.now().Before(r.retryAt)
}

// Wait blocks for a token.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// RecordRateLimit opens a backoff window. A zero until selects one minute.
func (r *RateLimiter) RecordRateLimit(until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if until.IsZero() || !until.After(r.now()) {
		until = r.now().Add(time.Minute)
	}
	r.retryAt = until
}

// resetTime parses an epoch-seconds header such as x-rate-limit-reset.
func resetTime(v string) time.Time {
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
