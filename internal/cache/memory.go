package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// MemoryConfig sizes the in-process cache.
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	EvictionPercentage int
	// MaxLifetime bounds every entry, including ones stored without a TTL.
	// Such entries still report NoExpiry from Scan but are gone once
	// MaxLifetime passes or capacity eviction picks them. Keep it at least
	// as long as the longest TTL callers use.
	MaxLifetime time.Duration
	// Now overrides the clock used for per-key expiry. Defaults to time.Now.
	Now func() time.Time
}

// DefaultMemoryConfig returns sizes suitable for a single API process.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          16,
		EvictionPercentage: 10,
		MaxLifetime:        24 * time.Hour,
	}
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no per-key expiry
}

// MemoryCache keeps entries in a sharded sturdyc client. sturdyc applies one
// TTL to the whole client, so per-key expiry is tracked on the entry and
// enforced lazily on read.
type MemoryCache struct {
	client *sturdyc.Client[memEntry]
	now    func() time.Time
}

func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		client: sturdyc.New[memEntry](cfg.Capacity, cfg.NumShards, cfg.MaxLifetime, cfg.EvictionPercentage),
		now:    now,
	}
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := c.live(key)
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.client.Set(key, e)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.client.Delete(key)
	return nil
}

func (c *MemoryCache) Scan(_ context.Context, prefix string) ([]Entry, error) {
	keys := c.client.ScanKeys()
	sort.Strings(keys)

	var out []Entry
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		e, ok := c.live(key)
		if !ok {
			continue
		}
		ttl := NoExpiry
		if !e.expiresAt.IsZero() {
			ttl = int64(e.expiresAt.Sub(c.now()).Round(time.Second) / time.Second)
		}
		out = append(out, Entry{Key: key, Value: e.value, TTL: ttl})
	}
	return out, nil
}

func (c *MemoryCache) live(key string) (memEntry, bool) {
	e, ok := c.client.Get(key)
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.client.Delete(key)
		return memEntry{}, false
	}
	return e, true
}
