package ruz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/ruz-auth/pkg/redis"
)

// RedisClient is the subset of the Redis wrapper used by RedisCache.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RedisCache stores decode results as JSON values with a Redis TTL.
type RedisCache struct {
	client RedisClient
}

// NewRedisCache constructs a decode cache backed by the provided Redis client.
func NewRedisCache(client RedisClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	if c == nil || c.client == nil {
		return Entry{}, false, nil
	}

	data, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("get cached decode: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cached entry: %w", err)
	}

	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if c == nil || c.client == nil || ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode decode entry: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, ttl); err != nil {
		return fmt.Errorf("set cached decode: %w", err)
	}

	return nil
}
