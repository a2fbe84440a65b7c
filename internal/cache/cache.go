// Package cache provides the key-value read cache used for list pages and
// record snapshots.
//
// Two backends satisfy Cache: RedisCache for shared deployments and
// MemoryCache for single-process runs and tests. Neither backend knows
// anything about books; callers own their key spaces.
package cache

import (
	"context"
	"time"
)

// NoExpiry is reported as Entry.TTL for keys stored without a TTL.
const NoExpiry int64 = -1

// Entry is one key as seen by Scan.
type Entry struct {
	Key   string
	Value []byte
	// TTL is the remaining lifetime in whole seconds, or NoExpiry.
	TTL int64
}

// Cache is a byte-oriented key-value store with optional per-key expiry.
type Cache interface {
	// Get returns the stored value and whether it was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Scan lists live entries whose key starts with prefix.
	Scan(ctx context.Context, prefix string) ([]Entry, error)
	Ping(ctx context.Context) error
}
