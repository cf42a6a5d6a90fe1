package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Waiter blocks until a request to endpoint may be sent.
type Waiter interface {
	Wait(ctx context.Context, endpoint string) error
}

// EndpointLimiter keeps one token bucket per upstream endpoint so token
// refreshes cannot starve offer searches (and vice versa).
type EndpointLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	defaults Config
}

type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultConfig stays under the provider's self-service quota of 10 TPS.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 8,
		BurstSize:         8,
	}
}

func NewEndpointLimiter(config Config) *EndpointLimiter {
	if config.RequestsPerSecond <= 0 {
		config = DefaultConfig()
	}
	if config.BurstSize < 1 {
		config.BurstSize = 1
	}
	return &EndpointLimiter{
		limiters: make(map[string]*rate.Limiter),
		defaults: config,
	}
}

func (l *EndpointLimiter) limiter(endpoint string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[endpoint]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists = l.limiters[endpoint]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Limit(l.defaults.RequestsPerSecond), l.defaults.BurstSize)
	l.limiters[endpoint] = limiter
	return limiter
}

func (l *EndpointLimiter) SetEndpointLimit(endpoint string, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.limiters[endpoint] = rate.NewLimiter(rate.Limit(rps), burst)
}

func (l *EndpointLimiter) Wait(ctx context.Context, endpoint string) error {
	return l.limiter(endpoint).Wait(ctx)
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
