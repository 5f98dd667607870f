package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jmgilman/go/respcache/errors"
)

// Fetcher performs GET requests. It is safe for concurrent use.
type Fetcher struct {
	client     *http.Client
	newBackOff func() backoff.BackOff
	header     http.Header
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client. Defaults to a client with no timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithRetry retries transport failures using a fresh BackOff from newBackOff
// for every request. Non-2xx responses are never retried.
func WithRetry(newBackOff func() backoff.BackOff) Option {
	return func(f *Fetcher) {
		f.newBackOff = newBackOff
	}
}

// ExponentialRetry returns a BackOff factory that gives up after maxElapsed.
func ExponentialRetry(maxElapsed time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = maxElapsed
		return b
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.header.Add(key, value)
	}
}

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{},
		header: make(http.Header),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch starts a GET for url and returns immediately. The request runs until
// it completes, ctx ends, or the Pending is cancelled.
func (f *Fetcher) Fetch(ctx context.Context, url string) *Pending {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pending{
		url:    url,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer cancel()
		body, err := f.do(ctx, url)
		p.resolve(body, err)
	}()
	return p
}

// Get performs a GET and waits for the result.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	p := f.Fetch(ctx, url)
	defer p.Cancel()
	return p.Wait(ctx)
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	var b backoff.BackOff = &backoff.StopBackOff{}
	if f.newBackOff != nil {
		b = f.newBackOff()
	}

	attempts := 0
	body, err := backoff.RetryWithData(func() ([]byte, error) {
		attempts++
		return f.attempt(ctx, url)
	}, backoff.WithContext(b, ctx))

	if err != nil && ctx.Err() != nil && !errors.HasCode(err, errors.CodeFetchFailed) {
		err = canceledError(url, ctx.Err())
	}

	f.logger.Debug("fetch finished",
		"url", url,
		"attempts", attempts,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err)
	return body, err
}

// attempt performs one request. Only transport failures are returned as
// retryable; everything else is wrapped in backoff.Permanent.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(invalidRequestError(url, err))
	}
	for k, vs := range f.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(canceledError(url, ctx.Err()))
		}
		return nil, transportError(url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, backoff.Permanent(statusError(url, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(canceledError(url, ctx.Err()))
		}
		return nil, transportError(url, err)
	}
	return body, nil
}
