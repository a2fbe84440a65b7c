package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bookshelf/internal/cache"
)

const (
	// EventsTopic is the default topic for book domain events.
	EventsTopic = "books-events"

	emptyPageMessage = "No books found."
)

// Event is published after a book is created.
type Event struct {
	Action string `json:"action"`
	Book   Input  `json:"book"`
}

// Config tunes the service.
type Config struct {
	// PageTTL is how long a cached list page is served. Writes never
	// invalidate pages, so a page may be stale for up to this long.
	PageTTL time.Duration
	Topic   string
}

// Service provides book-related business logic.
type Service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
}

// NewService creates a new book service.
func NewService(repo Repository, c Cache, publisher Publisher, cfg Config, logger *slog.Logger) *Service {
	if cfg.Topic == "" {
		cfg.Topic = EventsTopic
	}
	return &Service{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "book_service"),
	}
}

// List returns the JSON payload for one page, served from the page cache when
// an unexpired entry exists.
func (s *Service) List(ctx context.Context, page, limit int) (json.RawMessage, error) {
	if page < 1 || limit < 1 {
		return nil, ErrInvalidPagination
	}

	offset, ok := Offset(page, limit)
	if !ok {
		return json.Marshal(EmptyPage{Message: emptyPageMessage})
	}

	key := PageKey(page, limit)
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("page cache read failed", "key", key, "error", err)
	}
	if ok {
		return cached, nil
	}

	books, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if len(books) == 0 {
		return json.Marshal(EmptyPage{Message: emptyPageMessage})
	}

	payload, err := json.Marshal(Page{Page: page, Limit: limit, Total: total, Books: books})
	if err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	if err := s.cache.Set(ctx, key, payload, s.cfg.PageTTL); err != nil {
		s.logger.Warn("page cache write failed", "key", key, "error", err)
	}
	return payload, nil
}

// Create stores a new book. The record snapshot and the creation event are
// best-effort: their failures are logged and never undo the insert.
func (s *Service) Create(ctx context.Context, in Input) (int64, error) {
	_, err := s.repo.FindByTitleAuthor(ctx, in.Title, in.Author)
	switch {
	case err == nil:
		return 0, ErrConflict
	case !errors.Is(err, ErrNotFound):
		return 0, fmt.Errorf("find book: %w", err)
	}

	id, err := s.repo.Insert(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}

	if snapshot, err := json.Marshal(in); err == nil {
		if err := s.cache.Set(ctx, RecordKey(id), snapshot, 0); err != nil {
			s.logger.Warn("record snapshot write failed", "book_id", id, "error", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, s.cfg.Topic, Event{Action: "create", Book: in}); err != nil {
			s.logger.Warn("publish book event failed", "book_id", id, "error", err)
		}
	}

	s.logger.Info("book created", "book_id", id)
	return id, nil
}

// Update replaces every field of an existing book and returns the stored row.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Book, error) {
	if err := s.repo.Update(ctx, id, in); err != nil {
		return Book{}, fmt.Errorf("update book %d: %w", id, err)
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Book{}, fmt.Errorf("reload book %d: %w", id, err)
	}
	return b, nil
}

// Delete removes a book and, best-effort, its record snapshot.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	if err := s.cache.Delete(ctx, RecordKey(id)); err != nil {
		s.logger.Warn("record snapshot delete failed", "book_id", id, "error", err)
	}
	return nil
}

// CacheEntries lists both cache key spaces for the debug endpoint.
func (s *Service) CacheEntries(ctx context.Context) ([]cache.Entry, error) {
	pages, err := s.cache.Scan(ctx, pageKeyPrefix)
	if err != nil {
		return nil, err
	}
	records, err := s.cache.Scan(ctx, recordKeyPrefix)
	if err != nil {
		return nil, err
	}
	return append(pages, records...), nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
