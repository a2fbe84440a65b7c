package book

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"bookshelf/internal/httpx"
)

const (
	defaultPage  = 1
	defaultLimit = 10
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type bookRequest struct {
	Title  string `json:"title" validate:"required,max=255"`
	Author string `json:"author" validate:"required,max=255"`
	Year   *int   `json:"year" validate:"required"`
}

func (b bookRequest) input() Input {
	return Input{Title: b.Title, Author: b.Author, Year: *b.Year}
}

type cacheEntryResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	TTL   int64           `json:"ttl"`
}

// List handles GET /books?page&limit
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, okPage := queryInt(r, "page", defaultPage)
	limit, okLimit := queryInt(r, "limit", defaultLimit)
	if !okPage || !okLimit || page < 1 || limit < 1 {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "INVALID_PAGINATION", "Page or limit has an invalid value", nil)
		return
	}

	payload, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		if errors.Is(err, ErrInvalidPagination) {
			httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "INVALID_PAGINATION", "Page or limit has an invalid value", nil)
			return
		}
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSONRaw(w, http.StatusOK, payload)
}

// Create handles POST /books
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		if errors.Is(err, ErrConflict) {
			httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "BOOK_EXISTS", "Book already registered", nil)
			return
		}
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Book added successfully.",
		"id":      id,
	})
}

// Update handles PUT /books/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	b, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		h.writeWriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Book updated successfully.",
		"book":    b,
	})
}

// Delete handles DELETE /books/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeWriteError(w, r, err)
		return
	}
	httpx.Message(w, "Book deleted successfully.")
}

// DebugCache handles GET /debug/cache
func (h *HTTPHandler) DebugCache(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.CacheEntries(r.Context())
	if err != nil {
		httpx.JSONErrorWithRequest(r, w, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", "Cache is unavailable", nil)
		return
	}

	out := make([]cacheEntryResponse, 0, len(entries))
	for _, e := range entries {
		value := json.RawMessage(e.Value)
		if !json.Valid(value) {
			value, _ = json.Marshal(string(e.Value))
		}
		out = append(out, cacheEntryResponse{Key: e.Key, Value: value, TTL: e.TTL})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) writeWriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONErrorWithRequest(r, w, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrConflict):
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "BOOK_EXISTS", "Book already registered", nil)
	default:
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "INVALID_ID", "Book id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
