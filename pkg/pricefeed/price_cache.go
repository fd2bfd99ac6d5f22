package pricefeed

import (
	"sync"
	"time"
)

// PriceCache manages cached token prices to avoid duplicate API calls.
// It is constructed per feed instance and passed by handle; there is no
// process-wide shared cache.
type PriceCache struct {
	mu       sync.RWMutex
	cache    map[string]*cachedPrice
	cacheTTL time.Duration
}

// cachedPrice represents a cached token price with timestamp
type cachedPrice struct {
	price     float64
	timestamp time.Time
}

// NewPriceCache creates a new token price cache
func NewPriceCache(cacheTTL time.Duration) *PriceCache {
	return &PriceCache{
		cache:    make(map[string]*cachedPrice),
		cacheTTL: cacheTTL,
	}
}

// Get retrieves a cached price if it's still valid, otherwise returns false
func (c *PriceCache) Get(priceID string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, exists := c.cache[priceID]
	if !exists {
		return 0, false
	}

	// Check if cache is still valid
	if time.Since(cached.timestamp) > c.cacheTTL {
		return 0, false
	}

	return cached.price, true
}

// Set stores a price in the cache with current timestamp
func (c *PriceCache) Set(priceID string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[priceID] = &cachedPrice{
		price:     price,
		timestamp: time.Now(),
	}
}

// Clear removes all cached entries
func (c *PriceCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedPrice)
}

// Stats returns the entry count and configured TTL
func (c *PriceCache) Stats() (int, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.cache), c.cacheTTL
}
