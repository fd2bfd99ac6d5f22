package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wayfinder-hq/wayfinder-router/pkg/adapters"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
	"github.com/wayfinder-hq/wayfinder-router/pkg/metrics"
	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// Normalized errors surfaced to the router. Every failure coming out of
// the wrapper unwraps to exactly one of these, so failover logic never
// has to understand venue-specific failures.
var (
	// ErrRateLimited means the local token bucket rejected the call
	ErrRateLimited = errors.New("rate limited")
	// ErrCircuitOpen means the adapter's breaker is open
	ErrCircuitOpen = errors.New("circuit open")
	// ErrUnavailable means the venue failed in a retryable way
	ErrUnavailable = errors.New("adapter unavailable")
	// ErrRejected means the venue refused the request for business reasons
	ErrRejected = errors.New("adapter rejected")
)

// Retryable reports whether a wrapper error warrants failing over to the
// next candidate adapter
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrRateLimited)
}

// Settings configures the resilience wrapper
type Settings struct {
	Breaker       BreakerSettings
	RateLimiter   RateLimiterSettings
	QuoteCacheTTL time.Duration
}

// DefaultSettings returns settings suitable for public venue APIs
func DefaultSettings() Settings {
	return Settings{
		Breaker:       DefaultBreakerSettings(),
		RateLimiter:   DefaultRateLimiterSettings(),
		QuoteCacheTTL: 15 * time.Second,
	}
}

// Wrapper gates every adapter call behind a rate limiter, a circuit
// breaker and, for quotes, a TTL cache, in that order. Limiters and
// breakers are keyed per adapter and endpoint, so a venue whose quote
// endpoint is failing can still accept submissions. The wrapper is the
// sole owner of circuit state; the router must never call adapters
// directly.
type Wrapper struct {
	settings Settings

	limiters *RateLimiters
	cache    *QuoteCache

	mu       sync.Mutex
	breakers map[string]*Breaker

	logger logger.Logger
}

// NewWrapper creates a resilience wrapper
func NewWrapper(settings Settings, log logger.Logger) *Wrapper {
	return &Wrapper{
		settings: settings,
		limiters: NewRateLimiters(settings.RateLimiter),
		cache:    NewQuoteCache(settings.QuoteCacheTTL),
		breakers: make(map[string]*Breaker),
		logger:   log,
	}
}

// breaker returns the circuit breaker for the key, creating it on first use
func (w *Wrapper) breaker(key string) *Breaker {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.breakers[key]
	if !ok {
		b = NewBreaker(w.settings.Breaker)
		w.breakers[key] = b
	}
	return b
}

// Quote fetches a quote through the adapter, serving from cache when a
// fresh identical request was answered recently. Only quotes are cached;
// builds and submissions always reach the venue.
func (w *Wrapper) Quote(ctx context.Context, adapter adapters.Adapter, cmd *models.Command) (*models.Quote, error) {
	name := adapter.Name()
	cacheKey := cmd.CacheKey(name)

	if quote := w.cache.Get(cacheKey); quote != nil {
		metrics.QuoteCacheHits.WithLabelValues(name).Inc()
		w.logger.Debug("quote cache hit for %s", name)
		return quote, nil
	}

	start := time.Now()
	result, err := w.call(ctx, name, "quote", func() (interface{}, error) {
		return adapter.Quote(ctx, cmd)
	})
	if err != nil {
		return nil, err
	}
	metrics.QuoteLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	quote := result.(*models.Quote)
	w.cache.Set(cacheKey, quote)
	return quote, nil
}

// Build constructs the unsigned payload through the adapter
func (w *Wrapper) Build(ctx context.Context, adapter adapters.Adapter, cmd *models.Command, quote *models.Quote) (*models.UnsignedPayload, error) {
	result, err := w.call(ctx, adapter.Name(), "build", func() (interface{}, error) {
		return adapter.Build(ctx, cmd, quote)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.UnsignedPayload), nil
}

// Submit hands the signed payload to the adapter for settlement
func (w *Wrapper) Submit(ctx context.Context, adapter adapters.Adapter, payload *models.UnsignedPayload, signature []byte) (*models.SettlementReference, error) {
	result, err := w.call(ctx, adapter.Name(), "submit", func() (interface{}, error) {
		return adapter.Submit(ctx, payload, signature)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.SettlementReference), nil
}

// call applies the gate chain around a single adapter invocation.
// The limiter and breaker key carries the endpoint, so quote, build
// and submit trip independently.
func (w *Wrapper) call(ctx context.Context, name, method string, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	key := name + "|" + method

	if !w.limiters.Allow(key) {
		metrics.RateLimited.WithLabelValues(key).Inc()
		metrics.AdapterCalls.WithLabelValues(name, method, "rate_limited").Inc()
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, key)
	}

	b := w.breaker(key)
	if !b.Allow() {
		metrics.AdapterCalls.WithLabelValues(name, method, "circuit_open").Inc()
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, key)
	}

	result, err := fn()
	w.publishState(key, b)
	if err != nil {
		return nil, w.recordFailure(name, method, b, err)
	}

	b.RecordSuccess()
	w.publishState(key, b)
	metrics.AdapterCalls.WithLabelValues(name, method, "success").Inc()
	return result, nil
}

// recordFailure normalizes a venue error and updates the breaker.
// Business rejections do not count against the breaker; a venue saying
// "no" is not a venue being down.
func (w *Wrapper) recordFailure(name, method string, b *Breaker, err error) error {
	key := name + "|" + method

	if errors.Is(err, adapters.ErrRejected) {
		b.RecordSuccess()
		w.publishState(key, b)
		metrics.AdapterCalls.WithLabelValues(name, method, "rejected").Inc()
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	if errors.Is(err, adapters.ErrInvalidResponse) {
		w.logger.Error("%s returned an invalid response on %s: %v", name, method, err)
	}

	if tripped := b.RecordFailure(); tripped {
		metrics.CircuitTrips.WithLabelValues(key).Inc()
		w.logger.Notice("circuit opened for %s after repeated failures", key)
	}
	w.publishState(key, b)
	metrics.AdapterCalls.WithLabelValues(name, method, "unavailable").Inc()
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// publishState exports the breaker state gauge
func (w *Wrapper) publishState(key string, b *Breaker) {
	var value float64
	switch b.State() {
	case StateClosed:
		value = 0
	case StateHalfOpen:
		value = 1
	case StateOpen:
		value = 2
	}
	metrics.CircuitState.WithLabelValues(key).Set(value)
}

// CircuitStates returns the current breaker state per "adapter|endpoint"
// key. Only endpoints that have been called appear.
func (w *Wrapper) CircuitStates() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()

	states := make(map[string]string, len(w.breakers))
	for key, b := range w.breakers {
		states[key] = b.State().String()
	}
	return states
}

// ResetCircuit forces breakers closed. A full "adapter|endpoint" key
// resets that one breaker; a bare adapter name resets every endpoint
// breaker for the adapter. Returns false if nothing matched.
func (w *Wrapper) ResetCircuit(name string) bool {
	w.mu.Lock()
	matched := make(map[string]*Breaker)
	for key, b := range w.breakers {
		if key == name || strings.HasPrefix(key, name+"|") {
			matched[key] = b
		}
	}
	w.mu.Unlock()

	if len(matched) == 0 {
		return false
	}
	for key, b := range matched {
		b.Reset()
		w.publishState(key, b)
	}
	w.logger.Notice("circuit for %s reset manually", name)
	return true
}

// ClearQuoteCache drops all cached quotes
func (w *Wrapper) ClearQuoteCache() {
	w.cache.Clear()
}
