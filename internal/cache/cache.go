package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/destinasi/internal/destination"
)

const (
	defaultTTL = time.Hour
	catalogKey = "catalog:all"
)

// Cache wraps a Redis client and stores catalog snapshots and single
// destinations as JSON.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A non-positive ttl falls back to one hour.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// key returns the Redis key for the given destination id.
func key(id string) string {
	return "destination:" + strings.TrimSpace(id)
}

// getJSON loads key into dst. It reports false on a cache miss.
func (c *Cache) getJSON(ctx context.Context, k string, dst any) (bool, error) {
	val, err := c.client.Get(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", k, err)
	}

	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("unmarshaling cached %s: %w", k, err)
	}
	return true, nil
}

func (c *Cache) setJSON(ctx context.Context, k string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", k, err)
	}

	if err := c.client.Set(ctx, k, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", k, err)
	}
	return nil
}

// GetCatalog returns the cached catalog snapshot.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) GetCatalog(ctx context.Context) ([]destination.Destination, error) {
	var list []destination.Destination
	ok, err := c.getJSON(ctx, catalogKey, &list)
	if err != nil || !ok {
		return nil, err
	}
	if list == nil {
		list = []destination.Destination{}
	}
	return list, nil
}

// SetCatalog stores the catalog snapshot. A nil slice is a no-op.
func (c *Cache) SetCatalog(ctx context.Context, list []destination.Destination) error {
	if list == nil {
		return nil
	}
	return c.setJSON(ctx, catalogKey, list)
}

// Get retrieves one destination from cache.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, id string) (*destination.Destination, error) {
	var d destination.Destination
	ok, err := c.getJSON(ctx, key(id), &d)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

// Set stores one destination with the configured TTL.
func (c *Cache) Set(ctx context.Context, d *destination.Destination) error {
	if d == nil {
		return nil
	}
	return c.setJSON(ctx, key(d.ID), d)
}

// Invalidate drops the catalog snapshot and the given destinations.
func (c *Cache) Invalidate(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, catalogKey)
	for _, id := range ids {
		keys = append(keys, key(id))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// InvalidateAll drops the catalog snapshot and every cached destination.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	keys := []string{catalogKey}
	iter := c.client.Scan(ctx, 0, key("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning destination keys: %w", err)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate all: %w", err)
	}
	return nil
}
