package chain

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-endpoint rate limiting using token bucket algorithm.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a new rate limiter with the specified rate and burst.
// rate is requests per second, burst is the maximum burst size.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		rateLimit:  rate.Limit(ratePerSecond),
		burstLimit: burst,
	}
}

// DefaultRateLimiter returns a rate limiter with default settings.
// Default: 5 requests/second, burst of 10.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(5, 10)
}

// RateLimiterFor builds the limiter for an endpoint. A non-positive rate
// falls back to DefaultRateLimiter; burst follows the rate, at least 1.
func RateLimiterFor(ep Endpoint) *RateLimiter {
	if ep.RatePerSecond <= 0 {
		return DefaultRateLimiter()
	}
	burst := int(ep.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	return NewRateLimiter(ep.RatePerSecond, burst)
}

// Allow checks if a request to the endpoint is allowed.
func (r *RateLimiter) Allow(endpoint string) bool {
	return r.getLimiter(endpoint).Allow()
}

// Wait blocks until a request to the endpoint is allowed or the context is canceled.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	return r.getLimiter(endpoint).Wait(ctx)
}

// WaitN blocks until n requests to the endpoint are allowed. n is clamped
// to the burst size so that a large fan-out never fails outright.
func (r *RateLimiter) WaitN(ctx context.Context, endpoint string, n int) error {
	if n > r.burstLimit {
		n = r.burstLimit
	}
	if n < 1 {
		n = 1
	}
	return r.getLimiter(endpoint).WaitN(ctx, n)
}

// getLimiter returns the limiter for the given endpoint, creating one if needed.
func (r *RateLimiter) getLimiter(endpoint string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[endpoint]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists = r.limiters[endpoint]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.rateLimit, r.burstLimit)
	r.limiters[endpoint] = limiter
	return limiter
}
