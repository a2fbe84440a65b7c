package task

import (
	"context"
	"errors"
	"math/big"
)

// Status mirrors the states a client can observe while polling a task.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Registered job names.
const (
	NameSum       = "sum"
	NameFactorial = "factorial"
)

var (
	ErrInvalidArgument = errors.New("invalid task argument")
	ErrQueueFull       = errors.New("task queue is full")
	ErrQueueClosed     = errors.New("task queue is closed")
	ErrUnknownTask     = errors.New("unknown task")
)

// Args are the named integer arguments of a job, e.g. {"a": 5, "b": 3}.
type Args map[string]int64

// Result is either a value or a failure reason, never both.
type Result struct {
	Value  *big.Int `json:"value,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func Success(v *big.Int) Result { return Result{Value: v} }

func Failure(reason string) Result { return Result{Reason: reason} }

func (r Result) Failed() bool { return r.Reason != "" }

// Info is what a poller sees for one task id.
type Info struct {
	ID     string   `json:"task_id"`
	Status Status   `json:"status"`
	Result *big.Int `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Finished builds the terminal Info for a result.
func Finished(id string, r Result) Info {
	if r.Failed() {
		return Info{ID: id, Status: StatusFailure, Error: r.Reason}
	}
	return Info{ID: id, Status: StatusSuccess, Result: r.Value}
}

// Queue accepts jobs and reports on them. Submit never waits for the job to run.
type Queue interface {
	Submit(ctx context.Context, name string, args Args) (string, error)
	Info(ctx context.Context, id string) (Info, error)
}
