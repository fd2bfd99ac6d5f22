package resilience

import (
	"sync"
	"time"

	"github.com/wayfinder-hq/wayfinder-router/pkg/models"
)

// cachedQuote pairs a quote with its cache eviction deadline
type cachedQuote struct {
	quote     *models.Quote
	expiresAt time.Time
}

// QuoteCache is a TTL cache for adapter quotes keyed by normalized
// command. An entry never outlives the quote's own ExpiresAt, so a
// cached quote is always still executable when returned.
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[string]cachedQuote
	ttl    time.Duration
}

// NewQuoteCache creates a quote cache with the given TTL
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		quotes: make(map[string]cachedQuote),
		ttl:    ttl,
	}
}

// Get returns the cached quote for the key, or nil if missing or expired
func (c *QuoteCache) Get(key string) *models.Quote {
	c.mu.RLock()
	entry, ok := c.quotes[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}

	clone := *entry.quote
	return &clone
}

// Set stores a quote under the key. The eviction deadline is the cache
// TTL clamped to the quote's own expiry.
func (c *QuoteCache) Set(key string, quote *models.Quote) {
	expiresAt := time.Now().Add(c.ttl)
	if quote.ExpiresAt.Before(expiresAt) {
		expiresAt = quote.ExpiresAt
	}

	clone := *quote

	c.mu.Lock()
	c.quotes[key] = cachedQuote{quote: &clone, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Clear empties the cache
func (c *QuoteCache) Clear() {
	c.mu.Lock()
	c.quotes = make(map[string]cachedQuote)
	c.mu.Unlock()
}

// Len returns the number of entries currently held, expired or not
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
