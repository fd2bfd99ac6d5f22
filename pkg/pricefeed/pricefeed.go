// Package pricefeed provides USD price lookups for supported tokens.
// The parser uses it to resolve fiat-denominated amounts into token
// quantities; nothing else in the pipeline depends on it.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wayfinder-hq/wayfinder-router/pkg/chains"
	"github.com/wayfinder-hq/wayfinder-router/pkg/logger"
)

// ErrUnavailable is returned when no live price can be obtained
var ErrUnavailable = errors.New("price unavailable")

// Feed looks up the current USD price of a token symbol
type Feed interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// HTTPFeed fetches prices from a CoinGecko-style simple price endpoint
// and caches them for a short TTL
type HTTPFeed struct {
	endpoint   string
	httpClient *http.Client
	cache      *PriceCache
	logger     logger.Logger
}

var _ Feed = (*HTTPFeed)(nil)

// NewHTTPFeed creates a price feed against the given endpoint
func NewHTTPFeed(endpoint string, cacheTTL time.Duration, log logger.Logger) *HTTPFeed {
	return &HTTPFeed{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		cache:      NewPriceCache(cacheTTL),
		logger:     log,
	}
}

// Price returns the USD price for a token symbol
func (f *HTTPFeed) Price(ctx context.Context, symbol string) (float64, error) {
	priceID, ok := chains.PriceID(symbol)
	if !ok {
		return 0, fmt.Errorf("%w: no price id for symbol %s", ErrUnavailable, symbol)
	}

	// Check cache first to avoid duplicate API calls
	if price, found := f.cache.Get(priceID); found {
		return price, nil
	}

	reqURL := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd",
		f.endpoint, url.QueryEscape(priceID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status code %d", ErrUnavailable, resp.StatusCode)
	}

	var result map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: failed to decode price response: %v", ErrUnavailable, err)
	}

	price, ok := result[priceID]["usd"]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w: no usd price for %s", ErrUnavailable, symbol)
	}

	f.cache.Set(priceID, price)
	f.logger.Debug("Fetched price for %s: %.6f USD", symbol, price)

	return price, nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
