package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 3,
		Window:           time.Minute,
		Cooldown:         50 * time.Millisecond,
		MaxCooldown:      time.Second,
	}
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := NewBreaker(testBreakerSettings())

	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.RecordFailure(), "third failure should trip")

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "open breaker rejects immediately")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(testBreakerSettings())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	time.Sleep(60 * time.Millisecond)

	assert.True(t, b.Allow(), "first caller after cooldown gets the probe")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "concurrent callers are rejected while probing")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewBreaker(testBreakerSettings())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	time.Sleep(60 * time.Millisecond)
	assert.True(t, b.Allow())

	assert.True(t, b.RecordFailure(), "failed probe reopens")
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "second cooldown is longer than the first")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(testBreakerSettings())
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.False(t, b.RecordFailure(), "count restarts after a success")
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(testBreakerSettings())
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
