package book

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/cache"
	"bookshelf/internal/platform/logger"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, payload)
	return p.err
}

func newMemoryService(t *testing.T, ttl time.Duration) (*Service, *cache.MemoryCache, *testClock, *capturePublisher) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := cache.DefaultMemoryConfig()
	cfg.Now = clock.Now
	c := cache.NewMemoryCache(cfg)
	pub := &capturePublisher{}
	svc := NewService(NewMemoryRepo(), c, pub, Config{PageTTL: ttl}, logger.Discard())
	return svc, c, clock, pub
}

func decodePage(t *testing.T, raw json.RawMessage) Page {
	t.Helper()
	var p Page
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func TestService_ListIsStaleUntilTTLExpires(t *testing.T) {
	svc, _, clock, _ := newMemoryService(t, 30*time.Second)
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{Title: "First", Author: "A", Year: 2000})
	require.NoError(t, err)

	first, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, decodePage(t, first).Books, 1)

	_, err = svc.Create(ctx, Input{Title: "Second", Author: "A", Year: 2001})
	require.NoError(t, err)

	clock.Advance(29 * time.Second)
	stale, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(stale))

	clock.Advance(2 * time.Second)
	fresh, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	page := decodePage(t, fresh)
	assert.Len(t, page.Books, 2)
	assert.Equal(t, 2, page.Total)
}

func TestService_ListEmptyPageIsNotCached(t *testing.T) {
	svc, c, _, _ := newMemoryService(t, 30*time.Second)
	ctx := context.Background()

	raw, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"No books found."}`, string(raw))

	_, ok, err := c.Get(ctx, PageKey(1, 10))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Create(ctx, Input{Title: "First", Author: "A", Year: 2000})
	require.NoError(t, err)
	raw, err = svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, decodePage(t, raw).Books, 1)
}

func TestService_ListRejectsBadPagination(t *testing.T) {
	svc, _, _, _ := newMemoryService(t, time.Second)
	_, err := svc.List(context.Background(), 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPagination)
	_, err = svc.List(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidPagination)
}

func TestService_ListHugePagesAreEmpty(t *testing.T) {
	svc, _, _, _ := newMemoryService(t, time.Second)
	ctx := context.Background()
	_, err := svc.Create(ctx, Input{Title: "Only", Author: "A", Year: 2000})
	require.NoError(t, err)

	raw, err := svc.List(ctx, 3, math.MaxInt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"No books found."}`, string(raw))

	raw, err = svc.List(ctx, math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"No books found."}`, string(raw))

	raw, err = svc.List(ctx, 1, math.MaxInt)
	require.NoError(t, err)
	page := decodePage(t, raw)
	assert.Len(t, page.Books, 1)
	assert.Equal(t, math.MaxInt, page.Limit)
}

func TestService_ListOverflowSkipsStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	c := NewMockCache(ctrl)
	svc := NewService(repo, c, NewMockPublisher(ctrl), Config{PageTTL: time.Second}, logger.Discard())

	raw, err := svc.List(context.Background(), 3, math.MaxInt)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"No books found."}`, string(raw))
}

func TestService_CreateWritesSnapshotAndEvent(t *testing.T) {
	svc, c, _, pub := newMemoryService(t, time.Second)
	ctx := context.Background()
	in := Input{Title: "Dune", Author: "Frank Herbert", Year: 1965}

	id, err := svc.Create(ctx, in)
	require.NoError(t, err)

	snapshot, ok, err := c.Get(ctx, RecordKey(id))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"Dune","author":"Frank Herbert","year":1965}`, string(snapshot))

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventsTopic, pub.topics[0])
	assert.Equal(t, Event{Action: "create", Book: in}, pub.events[0])

	entries, err := svc.CacheEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, cache.NoExpiry, entries[0].TTL)
}

func TestService_CreateDuplicate(t *testing.T) {
	svc, _, _, pub := newMemoryService(t, time.Second)
	ctx := context.Background()
	in := Input{Title: "Dune", Author: "Frank Herbert", Year: 1965}

	_, err := svc.Create(ctx, in)
	require.NoError(t, err)
	_, err = svc.Create(ctx, Input{Title: "Dune", Author: "Frank Herbert", Year: 1999})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, pub.events, 1)
}

func TestService_CreateSurvivesPublishFailure(t *testing.T) {
	svc, _, _, pub := newMemoryService(t, time.Second)
	pub.err = errors.New("broker down")

	id, err := svc.Create(context.Background(), Input{Title: "A", Author: "B", Year: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestService_CreateSurvivesCacheFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	c := NewMockCache(ctrl)
	svc := NewService(repo, c, nil, Config{}, logger.Discard())
	in := Input{Title: "A", Author: "B", Year: 1}

	repo.EXPECT().FindByTitleAuthor(gomock.Any(), "A", "B").Return(Book{}, ErrNotFound)
	repo.EXPECT().Insert(gomock.Any(), in).Return(int64(3), nil)
	c.EXPECT().Set(gomock.Any(), "book:3", gomock.Any(), time.Duration(0)).Return(errors.New("cache down"))

	id, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestService_ListFallsThroughOnCacheError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	c := NewMockCache(ctrl)
	svc := NewService(repo, c, nil, Config{PageTTL: time.Second}, logger.Discard())

	c.EXPECT().Get(gomock.Any(), "books:page=1&limit=2").Return(nil, false, errors.New("cache down"))
	repo.EXPECT().List(gomock.Any(), 2, 0).Return([]Book{{ID: 1, Title: "A", Author: "B", Year: 1}}, 1, nil)
	c.EXPECT().Set(gomock.Any(), "books:page=1&limit=2", gomock.Any(), time.Second).Return(errors.New("cache down"))

	raw, err := svc.List(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, decodePage(t, raw).Total)
}

func TestService_UpdateDeleteNotFound(t *testing.T) {
	svc, _, _, _ := newMemoryService(t, time.Second)
	ctx := context.Background()

	_, err := svc.Update(ctx, 99, Input{Title: "x", Author: "y", Year: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 99), ErrNotFound)
}

func TestService_UpdateReturnsStoredBook(t *testing.T) {
	svc, _, _, _ := newMemoryService(t, time.Second)
	ctx := context.Background()

	id, err := svc.Create(ctx, Input{Title: "Draft", Author: "B", Year: 1})
	require.NoError(t, err)

	b, err := svc.Update(ctx, id, Input{Title: "Final", Author: "B", Year: 2})
	require.NoError(t, err)
	assert.Equal(t, Book{ID: id, Title: "Final", Author: "B", Year: 2}, b)
}

func TestService_DeleteDropsSnapshot(t *testing.T) {
	svc, c, _, _ := newMemoryService(t, time.Second)
	ctx := context.Background()

	id, err := svc.Create(ctx, Input{Title: "A", Author: "B", Year: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, id))

	_, ok, err := c.Get(ctx, RecordKey(id))
	require.NoError(t, err)
	assert.False(t, ok)
}
