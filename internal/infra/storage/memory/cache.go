package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// ResponseCache is an in-process response cache with per-entry TTL.
type ResponseCache struct {
	c *gocache.Cache
}

// NewResponseCache returns a cache that sweeps expired entries every
// cleanupInterval.
func NewResponseCache(cleanupInterval time.Duration) *ResponseCache {
	return &ResponseCache{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns a copy of the cached response.
func (r *ResponseCache) Get(_ context.Context, key string) (*domain.SearchResponse, bool, error) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	resp, ok := v.(domain.SearchResponse)
	if !ok {
		return nil, false, nil
	}
	return clone(resp), true, nil
}

// Set stores a copy of resp for ttl.
func (r *ResponseCache) Set(_ context.Context, key string, resp *domain.SearchResponse, ttl time.Duration) error {
	r.c.Set(key, *clone(*resp), ttl)
	return nil
}

// Len returns the number of entries, expired ones included until swept.
func (r *ResponseCache) Len() int {
	return r.c.ItemCount()
}

func clone(resp domain.SearchResponse) *domain.SearchResponse {
	resp.Results = append([]domain.SearchResult(nil), resp.Results...)
	resp.RelatedQueries = append([]string(nil), resp.RelatedQueries...)
	return &resp
}
