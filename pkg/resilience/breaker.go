package resilience

import (
	"sync"
	"time"
)

// BreakerState is the current state of a circuit breaker
type BreakerState int

const (
	// StateClosed allows all calls through
	StateClosed BreakerState = iota
	// StateHalfOpen allows a single probe call through
	StateHalfOpen
	// StateOpen rejects all calls until the cooldown elapses
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures a circuit breaker
type BreakerSettings struct {
	// FailureThreshold is the number of failures within the window
	// that trips the breaker
	FailureThreshold int
	// Window is the rolling interval over which failures are counted
	Window time.Duration
	// Cooldown is the base open duration before the first probe
	Cooldown time.Duration
	// MaxCooldown caps the exponential cooldown growth
	MaxCooldown time.Duration
}

// DefaultBreakerSettings returns settings suitable for venue APIs
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		Window:           time.Minute,
		Cooldown:         10 * time.Second,
		MaxCooldown:      2 * time.Minute,
	}
}

// Breaker is a three-state circuit breaker. Closed counts failures in a
// rolling window; Open rejects calls until the cooldown elapses; HalfOpen
// lets exactly one probe through and closes again only if it succeeds.
// Repeated trips back off the cooldown exponentially up to MaxCooldown.
type Breaker struct {
	mu sync.Mutex

	settings BreakerSettings

	state       BreakerState
	failures    int
	windowStart time.Time
	nextProbeAt time.Time
	trips       int
	probing     bool
}

// NewBreaker creates a circuit breaker in the closed state
func NewBreaker(settings BreakerSettings) *Breaker {
	return &Breaker{
		settings: settings,
		state:    StateClosed,
	}
}

// Allow reports whether a call may proceed right now. In the half-open
// state only the first caller gets through; concurrent callers are
// rejected until the probe resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Before(b.nextProbeAt) {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// RecordSuccess marks a successful call, closing the breaker if it was
// probing and resetting the trip backoff
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.trips = 0
	b.probing = false
}

// RecordFailure marks a failed call. In the closed state it counts
// toward the rolling window threshold; in the half-open state it reopens
// the breaker immediately with a longer cooldown.
//
// Returns true if this failure tripped the breaker open.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch b.state {
	case StateHalfOpen:
		b.probing = false
		b.trip(now)
		return true
	case StateClosed:
		if now.Sub(b.windowStart) > b.settings.Window {
			b.windowStart = now
			b.failures = 0
		}
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.trip(now)
			return true
		}
	}
	return false
}

// trip opens the breaker with an exponentially backed-off cooldown.
// Caller must hold the lock.
func (b *Breaker) trip(now time.Time) {
	cooldown := b.settings.Cooldown * (1 << uint(b.trips))
	if cooldown > b.settings.MaxCooldown || cooldown <= 0 {
		cooldown = b.settings.MaxCooldown
	}
	b.trips++
	b.state = StateOpen
	b.failures = 0
	b.nextProbeAt = now.Add(cooldown)
}

// State returns the breaker's current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears all counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.trips = 0
	b.probing = false
	b.nextProbeAt = time.Time{}
}
