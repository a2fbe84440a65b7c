package book

import (
	"context"
	"time"

	"bookshelf/internal/cache"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

// Repository defines the contract for book data storage.
type Repository interface {
	// List returns one page of books ordered by id and the total row count.
	List(ctx context.Context, limit, offset int) ([]Book, int, error)
	GetByID(ctx context.Context, id int64) (Book, error)
	FindByTitleAuthor(ctx context.Context, title, author string) (Book, error)
	Insert(ctx context.Context, in Input) (int64, error)
	Update(ctx context.Context, id int64, in Input) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Cache is the subset of cache.Cache the book service needs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context, prefix string) ([]cache.Entry, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}
