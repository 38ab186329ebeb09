package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const productKeyPrefix = "catalog:product:"

// Cache stores product JSON in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func productKey(id string) string { return productKeyPrefix + id }

// GetMany loads cached products by id. Misses are simply absent from the result.
func (c *Cache) GetMany(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if c == nil || c.client == nil || len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return out, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out[ids[i]] = p
	}
	return out, nil
}

// SetMany caches products with the configured TTL.
func (c *Cache) SetMany(ctx context.Context, products []Product) error {
	if c == nil || c.client == nil || c.ttl <= 0 || len(products) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, productKey(p.ID), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate removes a product from the cache.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if c == nil || c.client == nil || id == "" {
		return nil
	}
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
