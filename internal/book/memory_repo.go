package book

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an owned, in-process Repository. Each instance is isolated,
// so tests and single-node runs get their own backing map.
type MemoryRepo struct {
	mu     sync.RWMutex
	books  map[int64]Book
	nextID int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{books: make(map[int64]Book), nextID: 1}
}

func (r *MemoryRepo) Ping(context.Context) error { return nil }

func (r *MemoryRepo) List(_ context.Context, limit, offset int) ([]Book, int, error) {
	if limit < 1 || offset < 0 {
		return nil, 0, ErrInvalidPagination
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.books))
	for id := range r.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	total := len(ids)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit < total-offset {
		end = offset + limit
	}
	out := make([]Book, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, r.books[id])
	}
	return out, total, nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id int64) (Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepo) FindByTitleAuthor(_ context.Context, title, author string) (Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.findLocked(title, author, 0); ok {
		return b, nil
	}
	return Book{}, ErrNotFound
}

func (r *MemoryRepo) Insert(_ context.Context, in Input) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.findLocked(in.Title, in.Author, 0); ok {
		return 0, ErrConflict
	}
	id := r.nextID
	r.nextID++
	r.books[id] = Book{ID: id, Title: in.Title, Author: in.Author, Year: in.Year}
	return id, nil
}

func (r *MemoryRepo) Update(_ context.Context, id int64, in Input) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return ErrNotFound
	}
	if _, ok := r.findLocked(in.Title, in.Author, id); ok {
		return ErrConflict
	}
	r.books[id] = Book{ID: id, Title: in.Title, Author: in.Author, Year: in.Year}
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return ErrNotFound
	}
	delete(r.books, id)
	return nil
}

// findLocked looks up a (title, author) pair, ignoring the row with id skip.
func (r *MemoryRepo) findLocked(title, author string, skip int64) (Book, bool) {
	for id, b := range r.books {
		if id != skip && b.Title == title && b.Author == author {
			return b, true
		}
	}
	return Book{}, false
}
