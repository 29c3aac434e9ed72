package keyring

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// pool runs CPU-bound KDF work off the caller's goroutine with a bound on
// how many jobs run at once.
type pool struct {
	sem *semaphore.Weighted
}

func newPool(workers int) *pool {
	return &pool{sem: semaphore.NewWeighted(int64(workers))}
}

type result[T any] struct {
	val T
	err error
}

// submit runs fn on the pool and waits for it. If ctx ends first the wait is
// abandoned and, once fn finishes, discard is called on its successful value
// so late key material is wiped rather than leaked.
func submit[T any](ctx context.Context, p *pool, fn func() (T, error), discard func(T)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- result[T]{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil && discard != nil {
				discard(r.val)
			}
		}()
		return zero, ctx.Err()
	}
}

func wipe(b []byte) { clear(b) }
