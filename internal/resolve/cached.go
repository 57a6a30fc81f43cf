package resolve

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	specifier string
	importer  string
}

// Cached memoizes successful resolutions of another Resolver.
// Failures are not cached.
type Cached struct {
	next  Resolver
	cache *lru.Cache[cacheKey, string]
}

// NewCached wraps next with an LRU holding up to size entries.
func NewCached(next Resolver, size int) (*Cached, error) {
	if next == nil {
		return nil, fmt.Errorf("missing resolver")
	}
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

// Resolve implements Resolver.
func (c *Cached) Resolve(ctx context.Context, specifier, importer string) (string, error) {
	key := cacheKey{specifier: specifier, importer: importer}
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	p, err := c.next.Resolve(ctx, specifier, importer)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, p)
	return p, nil
}

// Purge drops every cached resolution.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached resolutions.
func (c *Cached) Len() int {
	return c.cache.Len()
}
