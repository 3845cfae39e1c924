package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// ResponseCache stores normalized search responses as JSON.
type ResponseCache struct {
	c *Client
}

// NewResponseCache returns a cache backed by the client.
func NewResponseCache(c *Client) *ResponseCache {
	return &ResponseCache{c: c}
}

// Get returns the cached response for digest. A miss is not an error.
func (r *ResponseCache) Get(ctx context.Context, digest string) (*domain.SearchResponse, bool, error) {
	data, err := r.c.rdb.Get(ctx, searchKey(digest)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get failed: %w", err)
	}

	var resp domain.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		// Unreadable entries are dropped and treated as a miss.
		_ = r.c.rdb.Del(ctx, searchKey(digest)).Err()
		return nil, false, nil
	}
	return &resp, true, nil
}

// Set stores resp under digest for ttl.
func (r *ResponseCache) Set(ctx context.Context, digest string, resp *domain.SearchResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := r.c.rdb.Set(ctx, searchKey(digest), data, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}
