package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bookshelf/internal/book"
	"bookshelf/internal/httpx"
	"bookshelf/internal/metrics"
	"bookshelf/internal/task"
)

const maxBodyBytes = 1 << 20

type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	Logger      *slog.Logger
	Books       *book.HTTPHandler
	Tasks       *task.HTTPHandler
	Latency     *metrics.LatencyTracker
	RateLimiter *httpx.RateLimiter
	Credentials httpx.Credentials
	// Readiness lists the backends /readyz pings, by name.
	Readiness map[string]pinger
}

func newRouter(d routerDeps) http.Handler {
	mux := http.NewServeMux()
	auth := httpx.BasicAuthMiddleware(d.Credentials)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, "Hello, World! The Books API is running.")
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", readyHandler(d.Readiness, d.Logger))

	mux.Handle("GET /books", protected(d.Books.List))
	mux.Handle("POST /books", protected(d.Books.Create))
	mux.Handle("PUT /books/{id}", protected(d.Books.Update))
	mux.Handle("DELETE /books/{id}", protected(d.Books.Delete))

	mux.HandleFunc("POST /compute/sum", d.Tasks.Sum)
	mux.HandleFunc("POST /compute/factorial", d.Tasks.Factorial)
	mux.HandleFunc("GET /tasks/recent", d.Tasks.Recent)

	mux.Handle("GET /debug/cache", protected(d.Books.DebugCache))
	mux.Handle("GET /debug/latency", protected(d.Latency.Handler))

	// AccessLog hands r to the mux untouched so it can read the matched pattern.
	return httpx.Chain(mux,
		httpx.RequestIDMiddleware,
		httpx.RecoveryMiddleware(d.Logger),
		httpx.AccessLogMiddleware(d.Logger, d.Latency),
		httpx.SecurityHeadersMiddleware,
		d.RateLimiter.Middleware,
		httpx.RequestSizeLimitMiddleware(maxBodyBytes),
	)
}

func readyHandler(checks map[string]pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", "backend", name, "error", err)
				http.Error(w, name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
