// Package cache keeps last-known-good venue snapshots in Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yanboishere/MetaOdds/internal/collectors"
	"github.com/yanboishere/MetaOdds/internal/fixtures"
)

const (
	defaultTTL    = 72 * time.Hour
	defaultPrefix = "metaodds:lkg"
)

// SnapshotCache is both a fixtures.Loader and a fixtures.Saver.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var (
	_ fixtures.Loader = (*SnapshotCache)(nil)
	_ fixtures.Saver  = (*SnapshotCache)(nil)
)

func NewRedisSnapshotCache(addr, password string, db int, ttl time.Duration, prefix string) (*SnapshotCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return newSnapshotCache(client, ttl, prefix), nil
}

func newSnapshotCache(client *redis.Client, ttl time.Duration, prefix string) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &SnapshotCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *SnapshotCache) key(venue collectors.Venue) string {
	return fmt.Sprintf("%s:%s", c.prefix, venue)
}

func (c *SnapshotCache) Name() string { return "redis" }

func (c *SnapshotCache) Load(ctx context.Context, venue collectors.Venue) ([]collectors.Record, error) {
	if c == nil || c.client == nil {
		return nil, fixtures.ErrNoSnapshot
	}
	val, err := c.client.Get(ctx, c.key(venue)).Bytes()
	if err == redis.Nil {
		return nil, fixtures.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", c.key(venue), err)
	}
	return fixtures.Decode(venue, val)
}

func (c *SnapshotCache) Save(ctx context.Context, venue collectors.Venue, records []collectors.Record) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := fixtures.Encode(records)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(venue), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key(venue), err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SnapshotCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
