package book

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotFound is returned when a book id does not exist.
	ErrNotFound = errors.New("book not found")
	// ErrConflict is returned when a (title, author) pair is already stored.
	ErrConflict = errors.New("book already exists")
	// ErrInvalidPagination is returned for page < 1, limit < 1 or a negative offset.
	ErrInvalidPagination = errors.New("page and limit must be positive integers")
)

// Book represents a stored book record.
type Book struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
}

// Input carries the client-writable fields of a book. Updates replace all of them.
type Input struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   int    `json:"year"`
}

// Page is the list payload cached verbatim under its page key.
type Page struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Total int    `json:"total"`
	Books []Book `json:"books"`
}

// EmptyPage is returned instead of Page when no rows exist at the requested offset.
type EmptyPage struct {
	Message string `json:"message"`
}

const (
	pageKeyPrefix   = "books:"
	recordKeyPrefix = "book:"
)

// PageKey is the cache key of one (page, limit) coordinate.
func PageKey(page, limit int) string {
	return fmt.Sprintf("%spage=%d&limit=%d", pageKeyPrefix, page, limit)
}

// RecordKey is the cache key of a single record snapshot.
func RecordKey(id int64) string {
	return fmt.Sprintf("%s%d", recordKeyPrefix, id)
}

// Offset converts a 1-based page into a row offset. It reports false when the
// offset does not fit in an int; such a page lies past any stored row.
func Offset(page, limit int) (int, bool) {
	if page < 1 || limit < 1 || page-1 > math.MaxInt/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}
