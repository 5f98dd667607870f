package compress

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/jmgilman/go/respcache/errors"
)

// Engine compresses and decompresses text, synchronously or on a worker pool.
// An Engine is safe for concurrent use.
type Engine struct {
	codec   Codec
	workers *semaphore.Weighted
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	codec   Codec
	workers int
	logger  *slog.Logger
}

// WithCodec sets the compression algorithm. Defaults to zstd.
func WithCodec(c Codec) Option {
	return func(o *engineOptions) {
		o.codec = c
	}
}

// WithWorkers bounds the number of concurrent asynchronous operations.
// Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *engineOptions) {
		o.workers = n
	}
}

// WithoutWorkers disables the worker pool. Asynchronous calls run inline on
// the caller and return resolved futures.
func WithoutWorkers() Option {
	return func(o *engineOptions) {
		o.workers = -1
	}
}

// WithLogger sets the logger used for codec diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// New creates an Engine. If the default zstd codec cannot be created the
// engine falls back to S2.
func New(opts ...Option) *Engine {
	options := &engineOptions{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(options)
	}

	codec := options.codec
	if codec == nil {
		z, err := NewZstdCodec()
		if err != nil {
			options.logger.Warn("zstd unavailable, using s2", "error", err)
			codec = S2Codec{}
		} else {
			codec = z
		}
	}

	e := &Engine{codec: codec, logger: options.logger}
	if options.workers > 0 {
		e.workers = semaphore.NewWeighted(int64(options.workers))
	}
	return e
}

// Codec returns the engine's codec.
func (e *Engine) Codec() Codec {
	return e.codec
}

// HasWorkers reports whether asynchronous calls are offloaded.
func (e *Engine) HasWorkers() bool {
	return e.workers != nil
}

// CompressSync compresses text on the calling goroutine.
func (e *Engine) CompressSync(text string) []byte {
	return e.codec.Encode([]byte(text))
}

// DecompressSync decompresses data on the calling goroutine.
// Corrupted input returns a CodeDecodeFailed error.
func (e *Engine) DecompressSync(data []byte) (string, error) {
	out, err := e.codec.Decode(data)
	if err != nil {
		return "", errors.WithContext(
			errors.Wrap(err, errors.CodeDecodeFailed, "failed to decompress payload"),
			"codec", e.codec.Name(),
		)
	}
	return string(out), nil
}

// Compress compresses text on the worker pool.
// The only possible error is CodeCanceled when ctx ends before a worker is free.
func (e *Engine) Compress(ctx context.Context, text string) *Future[[]byte] {
	return dispatch(ctx, e, func() ([]byte, error) {
		return e.CompressSync(text), nil
	})
}

// Decompress decompresses data on the worker pool.
func (e *Engine) Decompress(ctx context.Context, data []byte) *Future[string] {
	return dispatch(ctx, e, func() (string, error) {
		return e.DecompressSync(data)
	})
}

func dispatch[T any](ctx context.Context, e *Engine, fn func() (T, error)) *Future[T] {
	if e.workers == nil {
		return resolved(fn())
	}

	f := newFuture[T]()
	go func() {
		if err := e.workers.Acquire(ctx, 1); err != nil {
			var zero T
			f.resolve(zero, errors.Wrap(err, errors.CodeCanceled, "no compression worker acquired"))
			return
		}
		defer e.workers.Release(1)
		f.resolve(fn())
	}()
	return f
}
