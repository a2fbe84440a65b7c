package task

import (
	"context"
	"fmt"
	"math/big"
)

// MaxFactorialN bounds factorial inputs so a single job cannot pin a worker.
const MaxFactorialN = 10000

// Job computes a value from its arguments. A returned error becomes the
// failure reason of the task.
type Job func(ctx context.Context, args Args) (*big.Int, error)

type Registry struct {
	jobs map[string]Job
}

// NewRegistry returns a registry holding sum and factorial.
func NewRegistry() *Registry {
	r := &Registry{jobs: make(map[string]Job)}
	r.Register(NameSum, Sum)
	r.Register(NameFactorial, Factorial)
	return r
}

func (r *Registry) Register(name string, job Job) {
	r.jobs[name] = job
}

func (r *Registry) Has(name string) bool {
	_, ok := r.jobs[name]
	return ok
}

// Run executes a job and folds any error or panic into a failed Result.
func (r *Registry) Run(ctx context.Context, name string, args Args) (res Result) {
	job, ok := r.jobs[name]
	if !ok {
		return Failure(fmt.Sprintf("%s: %s", ErrUnknownTask, name))
	}
	defer func() {
		if p := recover(); p != nil {
			res = Failure(fmt.Sprintf("panic: %v", p))
		}
	}()

	v, err := job(ctx, args)
	if err != nil {
		return Failure(err.Error())
	}
	return Success(v)
}

// Sum returns a + b.
func Sum(_ context.Context, args Args) (*big.Int, error) {
	a, err := arg(args, "a")
	if err != nil {
		return nil, err
	}
	b, err := arg(args, "b")
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(big.NewInt(a), big.NewInt(b)), nil
}

// Factorial returns n! for 0 <= n <= MaxFactorialN.
func Factorial(ctx context.Context, args Args) (*big.Int, error) {
	n, err := arg(args, "n")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: n must be non-negative, got %d", ErrInvalidArgument, n)
	}
	if n > MaxFactorialN {
		return nil, fmt.Errorf("%w: n must be at most %d, got %d", ErrInvalidArgument, MaxFactorialN, n)
	}

	result := big.NewInt(1)
	for i := int64(2); i <= n; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		result.Mul(result, big.NewInt(i))
	}
	return result, nil
}

func arg(args Args, name string) (int64, error) {
	v, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidArgument, name)
	}
	return v, nil
}
