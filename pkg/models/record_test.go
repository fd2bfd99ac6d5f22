package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		assert.True(t, CanTransition(StatusPrepared, StatusAwaitingAuthorization))
		assert.True(t, CanTransition(StatusAwaitingAuthorization, StatusSubmitted))
		assert.True(t, CanTransition(StatusSubmitted, StatusSettled))
	})

	t.Run("no skipping states", func(t *testing.T) {
		assert.False(t, CanTransition(StatusPrepared, StatusSubmitted))
		assert.False(t, CanTransition(StatusPrepared, StatusSettled))
		assert.False(t, CanTransition(StatusAwaitingAuthorization, StatusSettled))
	})

	t.Run("no going backwards", func(t *testing.T) {
		assert.False(t, CanTransition(StatusSubmitted, StatusAwaitingAuthorization))
		assert.False(t, CanTransition(StatusAwaitingAuthorization, StatusPrepared))
	})

	t.Run("failure reachable from any non-terminal state", func(t *testing.T) {
		for _, from := range []Status{StatusPrepared, StatusAwaitingAuthorization, StatusSubmitted} {
			assert.True(t, CanTransition(from, StatusFailed), "from %s", from)
			assert.True(t, CanTransition(from, StatusExpired), "from %s", from)
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		for _, from := range []Status{StatusSettled, StatusFailed, StatusExpired} {
			for _, to := range []Status{StatusPrepared, StatusAwaitingAuthorization, StatusSubmitted, StatusSettled, StatusFailed, StatusExpired} {
				assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
			}
		}
	})
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusSettled.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
	assert.False(t, StatusPrepared.IsTerminal())
	assert.False(t, StatusAwaitingAuthorization.IsTerminal())
	assert.False(t, StatusSubmitted.IsTerminal())
}
