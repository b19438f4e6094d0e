package router

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a thin wrapper over golang.org/x/time/rate.Limiter: a
// single token bucket with capacity = rate and refill = rate/second.
// Every route, status, and cancel call acquires one token via blocking
// Wait.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter with the given rate per second and
// burst capacity equal to the rate (one second's worth of tokens).
func NewRateLimiter(perSecond float64) *RateLimiter {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
