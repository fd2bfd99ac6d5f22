package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
)

func priceServer(t *testing.T, prices map[string]float64, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		id := r.URL.Query().Get("ids")
		price, ok := prices[id]
		if !ok {
			json.NewEncoder(w).Encode(map[string]map[string]float64{})
			return
		}
		json.NewEncoder(w).Encode(map[string]map[string]float64{
			id: {"usd": price},
		})
	}))
}

func TestHTTPFeedPrice(t *testing.T) {
	calls := 0
	server := priceServer(t, map[string]float64{"usd-coin": 0.9998}, &calls)
	defer server.Close()

	feed := NewHTTPFeed(server.URL, time.Minute, &logger.EmptyLogger{})

	price, err := feed.Price(context.Background(), "USDC")
	require.NoError(t, err)
	assert.InDelta(t, 0.9998, price, 0.0001)

	// Second lookup is served from cache
	_, err = feed.Price(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestHTTPFeedUnknownSymbol(t *testing.T) {
	feed := NewHTTPFeed("http://localhost", time.Minute, &logger.EmptyLogger{})

	_, err := feed.Price(context.Background(), "NOTATOKEN")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPFeedMissingPrice(t *testing.T) {
	calls := 0
	server := priceServer(t, nil, &calls)
	defer server.Close()

	feed := NewHTTPFeed(server.URL, time.Minute, &logger.EmptyLogger{})
	_, err := feed.Price(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPFeedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	feed := NewHTTPFeed(server.URL, time.Minute, &logger.EmptyLogger{})
	_, err := feed.Price(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPriceCacheExpiry(t *testing.T) {
	cache := NewPriceCache(20 * time.Millisecond)
	cache.Set("usd-coin", 1.0)

	price, ok := cache.Get("usd-coin")
	require.True(t, ok)
	assert.Equal(t, 1.0, price)

	time.Sleep(30 * time.Millisecond)
	_, ok = cache.Get("usd-coin")
	assert.False(t, ok)

	count, ttl := cache.Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, 20*time.Millisecond, ttl)

	cache.Clear()
	count, _ = cache.Stats()
	assert.Zero(t, count)
}
