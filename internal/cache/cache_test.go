package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/platform/logger"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestMemoryCache() (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg := DefaultMemoryConfig()
	cfg.Now = clock.Now
	return NewMemoryCache(cfg), clock
}

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, logger.Discard()), mr
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestMemoryCache()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache()

	require.NoError(t, c.Set(ctx, "page", []byte("p1"), 30*time.Second))

	clock.Advance(29 * time.Second)
	_, ok, _ := c.Get(ctx, "page")
	assert.True(t, ok, "entry should still be live before the TTL")

	clock.Advance(time.Second)
	_, ok, _ = c.Get(ctx, "page")
	assert.False(t, ok, "entry should expire once the TTL elapses")
}

func TestMemoryCache_Scan(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestMemoryCache()

	require.NoError(t, c.Set(ctx, "books:page=1&limit=10", []byte("a"), 30*time.Second))
	require.NoError(t, c.Set(ctx, "book:1", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "other", []byte("c"), 0))
	clock.Advance(10 * time.Second)

	pages, err := c.Scan(ctx, "books:")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, int64(20), pages[0].TTL)

	records, err := c.Scan(ctx, "book:")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "book:1", records[0].Key)
	assert.Equal(t, NoExpiry, records[0].TTL)
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCache(t)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte(`{"x":1}`), 0))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(got))

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "page", []byte("p"), 30*time.Second))
	mr.FastForward(31 * time.Second)

	_, ok, err := c.Get(ctx, "page")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Scan(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCache(t)

	require.NoError(t, c.Set(ctx, "books:page=1&limit=10", []byte("a"), 30*time.Second))
	require.NoError(t, c.Set(ctx, "book:7", []byte("b"), 0))

	pages, err := c.Scan(ctx, "books:")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, int64(30), pages[0].TTL)

	records, err := c.Scan(ctx, "book:")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, NoExpiry, records[0].TTL)
	assert.Equal(t, []byte("b"), records[0].Value)
}

func TestRedisCache_ScanAcrossCursorPages(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCache(t)

	for i := range 250 {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("book:%03d", i), []byte("x"), 0))
	}

	records, err := c.Scan(ctx, "book:")
	require.NoError(t, err)
	require.Len(t, records, 250)
	assert.Equal(t, "book:000", records[0].Key)
	assert.Equal(t, "book:249", records[249].Key)
}

func TestUniqueSorted(t *testing.T) {
	got := uniqueSorted([]string{"book:2", "book:1", "book:2", "books:page=1&limit=10", "book:1"})
	assert.Equal(t, []string{"book:1", "book:2", "books:page=1&limit=10"}, got)
	assert.Empty(t, uniqueSorted(nil))
}

func TestRedisCache_ErrorsWhenServerDown(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	mr.Close()

	_, _, err := c.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, c.Ping(ctx))
}
