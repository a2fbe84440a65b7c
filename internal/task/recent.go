package task

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	// RecentCap is how many task ids the recent list keeps.
	RecentCap = 50

	recentKey = "tasks:recent"
)

// RecentList records submitted task ids most-recent-first, truncated to a cap
// after every push.
type RecentList interface {
	Push(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

type RedisRecentList struct {
	rdb redis.UniversalClient
	key string
	cap int64
}

func NewRedisRecentList(rdb redis.UniversalClient) *RedisRecentList {
	return &RedisRecentList{rdb: rdb, key: recentKey, cap: RecentCap}
}

func (l *RedisRecentList) Push(ctx context.Context, id string) error {
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, l.key, id)
		pipe.LTrim(ctx, l.key, 0, l.cap-1)
		return nil
	})
	return err
}

func (l *RedisRecentList) List(ctx context.Context) ([]string, error) {
	return l.rdb.LRange(ctx, l.key, 0, l.cap-1).Result()
}

type MemoryRecentList struct {
	mu  sync.Mutex
	ids []string
	cap int
}

func NewMemoryRecentList() *MemoryRecentList {
	return &MemoryRecentList{cap: RecentCap}
}

func (l *MemoryRecentList) Push(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append([]string{id}, l.ids...)
	if len(l.ids) > l.cap {
		l.ids = l.ids[:l.cap]
	}
	return nil
}

func (l *MemoryRecentList) List(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ids...), nil
}
