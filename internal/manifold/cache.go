package manifold

import (
	"context"
	"sync"
	"time"
)

// CachedSource wraps a MarketSource with a TTL cache. A single decision tree
// can reference the same market from several branches; caching keeps that to
// one API call per scan pass.
type CachedSource struct {
	src MarketSource
	ttl time.Duration

	mu      sync.RWMutex
	markets map[string]cacheEntry
}

type cacheEntry struct {
	data      *MarketData
	fetchedAt time.Time
}

func NewCachedSource(src MarketSource, ttl time.Duration) *CachedSource {
	return &CachedSource{
		src:     src,
		ttl:     ttl,
		markets: make(map[string]cacheEntry),
	}
}

func (c *CachedSource) MarketByID(ctx context.Context, id string) (*MarketData, error) {
	c.mu.RLock()
	entry, ok := c.markets[id]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) <= c.ttl {
		return entry.data, nil
	}

	m, err := c.src.MarketByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.markets[id] = cacheEntry{data: m, fetchedAt: time.Now()}
	c.mu.Unlock()
	return m, nil
}

// SlugSource is the optional lookup-by-slug surface. The concrete Client
// implements it; rules fall back to it when a reference carries no id.
type SlugSource interface {
	MarketBySlug(ctx context.Context, slug string) (*MarketData, error)
}

// MarketBySlug delegates to the wrapped source when it supports slug
// lookups, caching the result under the market's id.
func (c *CachedSource) MarketBySlug(ctx context.Context, slug string) (*MarketData, error) {
	src, ok := c.src.(SlugSource)
	if !ok {
		return nil, &APIError{Op: "get market", Detail: "source does not support slug lookups"}
	}
	m, err := src.MarketBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.markets[m.ID] = cacheEntry{data: m, fetchedAt: time.Now()}
	c.mu.Unlock()
	return m, nil
}

// Invalidate drops all cached entries. Called between scan passes so each
// pass decides on fresh data.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets = make(map[string]cacheEntry)
}
