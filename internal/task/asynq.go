package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// DefaultQueueName is the asynq queue every job goes to.
const DefaultQueueName = "default"

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// AsynqQueue submits jobs to a Redis-backed asynq broker and polls their
// state through the inspector. Workers run in a separate process (cmd/worker).
type AsynqQueue struct {
	client    enqueuer
	inspector inspector
	registry  *Registry
	retention time.Duration
	queue     string
	logger    *slog.Logger
}

// NewAsynqQueue wires a queue to an asynq client and inspector sharing one broker.
func NewAsynqQueue(client *asynq.Client, insp *asynq.Inspector, registry *Registry, retention time.Duration, logger *slog.Logger) *AsynqQueue {
	return newAsynqQueue(client, insp, registry, retention, logger)
}

func newAsynqQueue(client enqueuer, insp inspector, registry *Registry, retention time.Duration, logger *slog.Logger) *AsynqQueue {
	return &AsynqQueue{
		client:    client,
		inspector: insp,
		registry:  registry,
		retention: retention,
		queue:     DefaultQueueName,
		logger:    logger.With("component", "asynq_queue"),
	}
}

func (q *AsynqQueue) Submit(ctx context.Context, name string, args Args) (string, error) {
	if !q.registry.Has(name) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode args: %w", err)
	}

	id := uuid.NewString()
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(name, payload),
		asynq.TaskID(id),
		asynq.Queue(q.queue),
		asynq.MaxRetry(0),
		asynq.Retention(q.retention),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}
	q.logger.Debug("task enqueued", "task_id", info.ID, "task_name", name)
	return info.ID, nil
}

func (q *AsynqQueue) Info(_ context.Context, id string) (Info, error) {
	ti, err := q.inspector.GetTaskInfo(q.queue, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return Info{ID: id, Status: StatusPending}, nil
		}
		return Info{}, fmt.Errorf("inspect task %s: %w", id, err)
	}
	return infoFromAsynq(ti), nil
}

func infoFromAsynq(ti *asynq.TaskInfo) Info {
	switch ti.State {
	case asynq.TaskStateActive:
		return Info{ID: ti.ID, Status: StatusStarted}
	case asynq.TaskStateCompleted:
		var res Result
		if err := json.Unmarshal(ti.Result, &res); err != nil {
			return Info{ID: ti.ID, Status: StatusFailure, Error: fmt.Sprintf("decode result: %v", err)}
		}
		return Finished(ti.ID, res)
	case asynq.TaskStateArchived:
		return Info{ID: ti.ID, Status: StatusFailure, Error: ti.LastErr}
	default:
		return Info{ID: ti.ID, Status: StatusPending}
	}
}

// NewAsynqMux routes every registered job name to a handler that runs the job
// and stores its Result through the task's ResultWriter.
func NewAsynqMux(registry *Registry, logger *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	h := &asynqHandler{registry: registry, logger: logger.With("component", "asynq_worker")}
	for name := range registry.jobs {
		mux.HandleFunc(name, h.ProcessTask)
	}
	return mux
}

type asynqHandler struct {
	registry *Registry
	logger   *slog.Logger
}

func (h *asynqHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	out, err := h.process(ctx, t.Type(), t.Payload())
	if err != nil {
		return err
	}
	if w := t.ResultWriter(); w != nil {
		if _, err := w.Write(out); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return nil
}

// process returns the encoded Result. Job failures are data, so only a
// malformed payload fails the asynq task itself.
func (h *asynqHandler) process(ctx context.Context, name string, payload []byte) ([]byte, error) {
	var args Args
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, fmt.Errorf("decode args: %v: %w", err, asynq.SkipRetry)
	}
	res := h.registry.Run(ctx, name, args)
	if res.Failed() {
		id, _ := asynq.GetTaskID(ctx)
		h.logger.Warn("task failed", "task_id", id, "task_name", name, "reason", res.Reason)
	}
	return json.Marshal(res)
}

// ServerConfig sizes the asynq worker server.
type ServerConfig struct {
	Concurrency int
	LogLevel    asynq.LogLevel
}

// NewAsynqServer builds the worker-side server consuming DefaultQueueName.
func NewAsynqServer(opt asynq.RedisConnOpt, cfg ServerConfig, logger asynq.Logger) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{DefaultQueueName: 1},
		Logger:      logger,
		LogLevel:    cfg.LogLevel,
	})
}
