package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const resultKeyPrefix = "task:"

// ResultStore keeps task state for a bounded time. cache.Cache satisfies it.
type ResultStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// PoolConfig holds configuration options for the in-process pool.
type PoolConfig struct {
	// Workers is the number of goroutines draining the queue. Zero or negative means 1.
	Workers int
	// QueueSize bounds pending jobs; Submit fails with ErrQueueFull beyond it.
	QueueSize int
	// ResultTTL is how long a task's state stays pollable.
	ResultTTL time.Duration
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 4, QueueSize: 100, ResultTTL: time.Hour}
}

type job struct {
	id   string
	name string
	args Args
}

// Pool is an in-process Queue: a buffered channel drained by a fixed set of
// worker goroutines, with task state kept in a ResultStore.
type Pool struct {
	registry *Registry
	store    ResultStore
	cfg      PoolConfig
	logger   *slog.Logger

	jobs   chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(registry *Registry, store ResultStore, cfg PoolConfig, logger *slog.Logger) *Pool {
	logger = logger.With("component", "task_pool")
	if cfg.Workers <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.Workers, "default_count", 1)
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		registry: registry,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		jobs:     make(chan job, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.Info("starting task pool", "workers", p.cfg.Workers, "queue_size", cap(p.jobs))
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop refuses new jobs, lets queued ones finish and waits for the workers.
// If ctx ends first the running jobs are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("task pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) Submit(ctx context.Context, name string, args Args) (string, error) {
	if !p.registry.Has(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	j := job{id: uuid.NewString(), name: name, args: args}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", ErrQueueClosed
	}
	select {
	case p.jobs <- j:
		p.logger.Debug("task enqueued",
			"task_id", j.id, "task_name", name,
			"queue_len", len(p.jobs), "queue_cap", cap(p.jobs))
		return j.id, nil
	default:
		return "", fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(p.jobs))
	}
}

// Info reports PENDING for ids it has no state for, including expired ones.
func (p *Pool) Info(ctx context.Context, id string) (Info, error) {
	raw, ok, err := p.store.Get(ctx, resultKeyPrefix+id)
	if err != nil {
		return Info{}, fmt.Errorf("read task %s: %w", id, err)
	}
	if !ok {
		return Info{ID: id, Status: StatusPending}, nil
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return Info{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return info, nil
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j, n)
	}
}

func (p *Pool) run(j job, worker int) {
	log := p.logger.With("task_id", j.id, "task_name", j.name, "worker", worker)
	p.save(Info{ID: j.id, Status: StatusStarted}, log)

	start := time.Now()
	res := p.registry.Run(p.ctx, j.name, j.args)
	info := Finished(j.id, res)
	p.save(info, log)

	if res.Failed() {
		log.Warn("task failed", "reason", res.Reason, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	log.Debug("task succeeded", "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pool) save(info Info, log *slog.Logger) {
	raw, err := json.Marshal(info)
	if err != nil {
		log.Error("encode task state", "error", err)
		return
	}
	if err := p.store.Set(p.ctx, resultKeyPrefix+info.ID, raw, p.cfg.ResultTTL); err != nil {
		log.Error("store task state", "status", info.Status, "error", err)
	}
}
