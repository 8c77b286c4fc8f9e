package blocking

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc/panics"
)

// ErrCanceled reports that a task ended without producing a result, either because
// the caller's context finished first or because the task panicked.
var ErrCanceled = errors.New("blocking: task canceled")

// TaskError wraps an error returned by the task function itself.
type TaskError struct {
	Err error
}

func (e *TaskError) Error() string {
	if e.Err == nil {
		return "blocking: task failed"
	}
	return "blocking: task failed: " + e.Err.Error()
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

type result[T any] struct {
	value T
	err   error
}

// Run executes fn on its own goroutine and waits for it or for ctx, whichever ends first.
//
// A context that ends first yields ErrCanceled; fn keeps running and its result is dropped.
// A panic inside fn is recovered and reported as ErrCanceled joined with the recovered value.
// An error returned by fn is reported as *TaskError.
func Run[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return run(ctx, fn, nil)
}

// run is Run with a release func that is called exactly once, when fn has finished or
// was never started.
func run[T any](ctx context.Context, fn func() (T, error), release func()) (T, error) {
	if release == nil {
		release = func() {}
	}
	var zero T
	if err := ctx.Err(); err != nil {
		release()
		return zero, errors.Join(ErrCanceled, err)
	}

	done := make(chan result[T], 1)
	go func() {
		defer release()
		var (
			pc  panics.Catcher
			res result[T]
		)
		pc.Try(func() {
			res.value, res.err = fn()
		})
		if recovered := pc.Recovered(); recovered != nil {
			done <- result[T]{err: errors.Join(ErrCanceled, recovered.AsError())}
			return
		}
		if res.err != nil {
			res.err = &TaskError{Err: res.err}
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		return zero, errors.Join(ErrCanceled, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return zero, res.err
		}
		return res.value, nil
	}
}

// DefaultLimit is used when NewPool receives a non-positive limit.
const DefaultLimit = 4

// Pool bounds the number of blocking tasks running at the same time.
type Pool struct {
	sema chan struct{}
}

// NewPool creates a Pool that allows at most limit concurrent tasks.
func NewPool(limit int) *Pool {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Pool{sema: make(chan struct{}, limit)}
}

// Do waits for a free slot and runs fn through Run. Waiting for a slot honours ctx.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	if p == nil {
		return Run(ctx, fn)
	}
	var zero T
	select {
	case p.sema <- struct{}{}:
	case <-ctx.Done():
		return zero, errors.Join(ErrCanceled, ctx.Err())
	}

	return run(ctx, fn, func() { <-p.sema })
}
