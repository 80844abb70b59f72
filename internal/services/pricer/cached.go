package pricer

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

// DefaultCacheTTL how long a fetched quote is served without asking upstream.
const DefaultCacheTTL = 30 * time.Second

const quoteKey = "quote"

// CachedSource serves a recent quote from memory and refreshes it from next on expiry.
type CachedSource struct {
	next  Source
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedSource(next Source, ttl time.Duration) (*CachedSource, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e3,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create quote cache")
	}
	return &CachedSource{next: next, cache: cache, ttl: ttl}, nil
}

func (c *CachedSource) Fetch(ctx context.Context) (domain.PriceQuote, error) {
	if v, ok := c.cache.Get(quoteKey); ok {
		if quote, ok := v.(domain.PriceQuote); ok {
			return quote, nil
		}
	}

	quote, err := c.next.Fetch(ctx)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	c.cache.SetWithTTL(quoteKey, quote, 1, c.ttl)
	c.cache.Wait()

	return quote, nil
}

// Invalidate drops the cached quote.
func (c *CachedSource) Invalidate() {
	c.cache.Del(quoteKey)
}

func (c *CachedSource) Close() {
	c.cache.Close()
}
