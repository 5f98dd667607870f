package compress

import (
	"context"

	"github.com/jmgilman/go/respcache/errors"
)

// Future is the eventual result of an asynchronous engine call.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolved returns a Future that is already complete.
func resolved[T any](val T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(val, err)
	return f
}

func (f *Future[T]) resolve(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx ends.
// Abandoning a wait does not stop the underlying work.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrap(ctx.Err(), errors.CodeCanceled, "wait abandoned")
	}
}
