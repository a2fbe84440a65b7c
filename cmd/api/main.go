package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookshelf/internal/book"
	"bookshelf/internal/cache"
	"bookshelf/internal/config"
	"bookshelf/internal/events"
	"bookshelf/internal/httpx"
	"bookshelf/internal/metrics"
	"bookshelf/internal/platform/logger"
	"bookshelf/internal/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel)
	log.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(log)

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      a.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.AppAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type app struct {
	handler http.Handler
	closers []func(context.Context) error
}

func (a *app) close(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn("shutdown step failed", "error", err)
		}
	}
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close(log)
		}
	}()
	readiness := make(map[string]pinger)

	var repo book.Repository
	if cfg.DBDSN != "" {
		pool, err := openDB(ctx, cfg.DBDSN, log)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		repo = book.NewPostgresRepo(pool, cfg.DBTimeout)
	} else {
		log.Warn("DB_DSN not set, using in-memory store")
		repo = book.NewMemoryRepo()
	}
	readiness["store"] = repo

	var (
		c      cache.Cache
		recent task.RecentList
	)
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
		c = cache.NewRedisCache(rdb, log)
		recent = task.NewRedisRecentList(rdb)
	} else {
		log.Warn("REDIS_URL not set, using in-process cache")
		c = cache.NewMemoryCache(memoryCacheConfig(cfg))
		recent = task.NewMemoryRecentList()
	}
	readiness["cache"] = c

	queue, err := buildQueue(cfg, c, a, log)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		publisher = events.NewKafkaPublisher(events.KafkaConfig{Brokers: brokers}, log)
	} else {
		publisher = events.NewLogPublisher(log)
	}
	a.onClose(func(context.Context) error { return publisher.Close() })

	svc := book.NewService(repo, c, publisher, book.Config{PageTTL: cfg.CachePageTTL, Topic: cfg.EventsTopic}, log)

	limiter := httpx.NewRateLimiter(httpx.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})
	go limiter.Run(ctx)

	a.handler = newRouter(routerDeps{
		Logger:      log,
		Books:       book.NewHTTPHandler(svc),
		Tasks:       task.NewHTTPHandler(queue, recent, log),
		Latency:     metrics.NewLatencyTracker(metrics.DefaultRelativeAccuracy),
		RateLimiter: limiter,
		Credentials: httpx.Credentials{Username: cfg.BasicAuthUser, Password: cfg.BasicAuthPassword, Realm: "bookshelf"},
		Readiness:   readiness,
	})
	return a, nil
}

func buildQueue(cfg *config.Config, store task.ResultStore, a *app, log *slog.Logger) (task.Queue, error) {
	registry := task.NewRegistry()
	if cfg.TaskBrokerURL != "" {
		opt, err := asynq.ParseRedisURI(cfg.TaskBrokerURL)
		if err != nil {
			return nil, fmt.Errorf("parse task broker url: %w", err)
		}
		client := asynq.NewClient(opt)
		inspector := asynq.NewInspector(opt)
		a.onClose(func(context.Context) error { return client.Close() })
		a.onClose(func(context.Context) error { return inspector.Close() })
		log.Info("using asynq task broker", "broker", config.RedactDSN(cfg.TaskBrokerURL))
		return task.NewAsynqQueue(client, inspector, registry, cfg.TaskResultTTL, log), nil
	}

	pool := task.NewPool(registry, store, task.PoolConfig{
		Workers:   cfg.TaskWorkers,
		QueueSize: cfg.TaskQueueSize,
		ResultTTL: cfg.TaskResultTTL,
	}, log)
	pool.Start()
	a.onClose(pool.Stop)
	return pool, nil
}

// memoryCacheConfig stretches MaxLifetime so it never cuts a page or task
// result short of its configured TTL.
func memoryCacheConfig(cfg *config.Config) cache.MemoryConfig {
	mc := cache.DefaultMemoryConfig()
	mc.MaxLifetime = max(mc.MaxLifetime, cfg.TaskResultTTL, cfg.CachePageTTL)
	return mc
}

func openDB(ctx context.Context, dsn string, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database (%s): %w", config.RedactDSN(dsn), err)
	}
	log.Info("database connection OK")
	return pool, nil
}
