package fetch

import (
	"context"
	"sync"
)

// Pending is an in-flight fetch. It resolves exactly once.
type Pending struct {
	url    string
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
	body   []byte
	err    error
}

func (p *Pending) resolve(body []byte, err error) {
	p.once.Do(func() {
		p.body = body
		p.err = err
		close(p.done)
	})
}

// URL returns the requested URL.
func (p *Pending) URL() string {
	return p.url
}

// Cancel aborts the underlying transport on a best-effort basis. If the
// response already arrived the result is unaffected.
func (p *Pending) Cancel() {
	p.cancel()
}

// Done is closed when the fetch has resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the fetch resolves or ctx ends. Ending ctx only stops the
// wait; use Cancel to abort the request.
func (p *Pending) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.body, p.err
	case <-ctx.Done():
		return nil, canceledError(p.url, ctx.Err())
	}
}

// Err returns the fetch outcome once resolved, or nil before then.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}
