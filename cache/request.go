package cache

import (
	"context"

	"github.com/jmgilman/go/respcache/errors"
)

// Request is the pending result of GetURL. It resolves exactly once.
type Request struct {
	id     string
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	value  Value
	err    error
}

func newRequest(id, url string, cancel context.CancelFunc) *Request {
	return &Request{
		id:     id,
		url:    url,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// resolve is called once, by the goroutine running the request.
func (r *Request) resolve(v Value, err error) {
	r.value = v
	r.err = err
	close(r.done)
}

// ID returns the request identifier used in log output.
func (r *Request) ID() string {
	return r.id
}

// URL returns the requested URL.
func (r *Request) URL() string {
	return r.url
}

// Cancel aborts the request. Before the origin responds this rejects the
// request with CodeCanceled and nothing is written. Afterwards the write still
// completes and the caller should discard the outcome.
func (r *Request) Cancel() {
	r.cancel()
}

// Done is closed once the request has resolved.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the request resolves or ctx ends. Ending ctx only stops
// the wait; use Cancel to abort the request.
func (r *Request) Wait(ctx context.Context) (Value, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		return Value{}, canceled(r.url, ctx.Err())
	}
}

func canceled(url string, cause error) error {
	return errors.WithContext(
		errors.Wrap(cause, errors.CodeCanceled, "request canceled"),
		"url", url,
	)
}
