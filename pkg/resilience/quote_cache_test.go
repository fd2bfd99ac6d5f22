package resilience

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

func TestQuoteCacheHitAndMiss(t *testing.T) {
	cache := NewQuoteCache(time.Minute)

	quote := &models.Quote{
		Adapter:        "stub",
		ExpectedOutput: big.NewInt(42),
		ExpiresAt:      time.Now().Add(time.Minute),
	}
	cache.Set("key", quote)

	got := cache.Get("key")
	require.NotNil(t, got)
	assert.Equal(t, big.NewInt(42), got.ExpectedOutput)

	assert.Nil(t, cache.Get("other"))
}

func TestQuoteCacheNeverOutlivesQuote(t *testing.T) {
	cache := NewQuoteCache(time.Hour)

	quote := &models.Quote{
		Adapter:   "stub",
		ExpiresAt: time.Now().Add(20 * time.Millisecond),
	}
	cache.Set("key", quote)
	require.NotNil(t, cache.Get("key"))

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, cache.Get("key"), "entry must expire with the quote, not the cache TTL")
}

func TestQuoteCacheClear(t *testing.T) {
	cache := NewQuoteCache(time.Minute)
	cache.Set("key", &models.Quote{ExpiresAt: time.Now().Add(time.Minute)})
	assert.Equal(t, 1, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}
