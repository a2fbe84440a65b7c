package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in Redis.
type RedisCache struct {
	rdb    redis.UniversalClient
	logger *slog.Logger
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func NewRedisCache(rdb redis.UniversalClient, logger *slog.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, logger: logger.With("component", "redis_cache")}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	c.logger.Debug("cache hit", "key", key, "bytes", len(b))
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	c.logger.Debug("cache set", "key", key, "ttl", ttl)
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", prefix, err)
	}

	var out []Entry
	for _, key := range uniqueSorted(keys) {
		val, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %q: %w", key, err)
		}
		ttl, err := c.rdb.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ttl %q: %w", key, err)
		}
		out = append(out, Entry{Key: key, Value: val, TTL: ttlSeconds(ttl)})
	}
	return out, nil
}

// uniqueSorted drops repeats; SCAN may return a key more than once.
func uniqueSorted(keys []string) []string {
	slices.Sort(keys)
	return slices.Compact(keys)
}

// go-redis reports -1 (no expiry) and -2 (missing) as raw negative durations.
func ttlSeconds(d time.Duration) int64 {
	if d < 0 {
		return NoExpiry
	}
	return int64(d.Round(time.Second) / time.Second)
}
