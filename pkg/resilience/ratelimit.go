package resilience

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterSettings configures the per-adapter token buckets
type RateLimiterSettings struct {
	// RequestsPerSecond is the steady-state refill rate
	RequestsPerSecond float64
	// Burst is the bucket capacity
	Burst int
}

// DefaultRateLimiterSettings returns limits suitable for public venue APIs
func DefaultRateLimiterSettings() RateLimiterSettings {
	return RateLimiterSettings{
		RequestsPerSecond: 5,
		Burst:             10,
	}
}

// RateLimiters holds one token bucket per key. Callers that find the
// bucket empty are rejected immediately rather than queued; waiting for
// a token would hold user requests behind venue throttling.
type RateLimiters struct {
	mu       sync.Mutex
	settings RateLimiterSettings
	limiters map[string]*rate.Limiter
}

// NewRateLimiters creates an empty limiter registry
func NewRateLimiters(settings RateLimiterSettings) *RateLimiters {
	return &RateLimiters{
		settings: settings,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether a call under the given key may proceed now
func (r *RateLimiters) Allow(key string) bool {
	r.mu.Lock()
	limiter, ok := r.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(r.settings.RequestsPerSecond), r.settings.Burst)
		r.limiters[key] = limiter
	}
	r.mu.Unlock()

	return limiter.Allow()
}
