package async

import (
	"context"
	"sync"
)

// Deferred is a write handle for a value that will be produced exactly once.
// Resolve and Reject after the first settlement are no-ops; this matters
// because success, rollback and external abort may race to settle the same
// outcome.
type Deferred[T any] struct {
	mu   sync.Mutex
	done chan struct{}
	val  T
	err  error
}

// NewDeferred creates an unsettled Deferred.
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolve settles the deferred with a value.
// It reports whether this call was the one that settled it.
func (d *Deferred[T]) Resolve(val T) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.done:
		return false
	default:
	}
	d.val = val
	close(d.done)
	return true
}

// Reject settles the deferred with an error.
// It reports whether this call was the one that settled it.
func (d *Deferred[T]) Reject(err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.done:
		return false
	default:
	}
	d.err = err
	close(d.done)
	return true
}

// Future returns the read-only view of the deferred.
func (d *Deferred[T]) Future() *Future[T] {
	return &Future[T]{d: d}
}

// Future is the read side of a Deferred. Multiple goroutines may wait on
// the same future; all observe the same settlement.
type Future[T any] struct {
	d *Deferred[T]
}

// Done returns a channel that is closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.d.done
}

// Settled reports whether the future has been resolved or rejected.
// It never blocks.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.d.done:
		return true
	default:
		return false
	}
}

// Result returns the settled value and error. ok is false while the
// future is still pending, in which case value and err are zero.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	select {
	case <-f.d.done:
		return f.d.val, f.d.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Wait blocks until the future settles or the context is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.d.done:
		return f.d.val, f.d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved returns an already-settled future carrying val.
// It seeds the serialized transition chain.
func Resolved[T any](val T) *Future[T] {
	d := NewDeferred[T]()
	d.Resolve(val)
	return d.Future()
}
