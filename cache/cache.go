package cache

import (
	"bytes"
	"context"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jmgilman/go/respcache/compress"
	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/eviction"
	"github.com/jmgilman/go/respcache/fetch"
	"github.com/jmgilman/go/respcache/store"
)

// Default namespace prefixes.
const (
	DefaultValuePrefix   = "respcache:v:"
	DefaultRecencyPrefix = "respcache:r:"
)

// ResponseCache serves URL responses from a QuotaStore, fetching and storing
// them on a miss. It is safe for concurrent use.
type ResponseCache struct {
	store   *store.QuotaStore
	index   *eviction.Index
	engine  *compress.Engine
	fetcher *fetch.Fetcher
	logger  *Logger
	metrics *Metrics
	now     func() time.Time
	group   *singleflight.Group
}

// Option configures a ResponseCache.
type Option func(*cacheOptions)

type cacheOptions struct {
	compression   bool
	engine        *compress.Engine
	fetcher       *fetch.Fetcher
	valuePrefix   string
	recencyPrefix string
	logger        *Logger
	metrics       *Metrics
	clock         func() time.Time
	coalesce      bool
}

// WithCompression enables or disables payload compression. Enabled by default.
// When disabled, keys and payloads are stored uncompressed regardless of
// WithEngine.
func WithCompression(enabled bool) Option {
	return func(o *cacheOptions) {
		o.compression = enabled
	}
}

// WithEngine sets the compression engine.
func WithEngine(e *compress.Engine) Option {
	return func(o *cacheOptions) {
		o.engine = e
	}
}

// WithFetcher sets the fetcher used on a miss.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(o *cacheOptions) {
		o.fetcher = f
	}
}

// WithNamespaces sets the value and recency key prefixes.
func WithNamespaces(valuePrefix, recencyPrefix string) Option {
	return func(o *cacheOptions) {
		o.valuePrefix = valuePrefix
		o.recencyPrefix = recencyPrefix
	}
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *Logger) Option {
	return func(o *cacheOptions) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(o *cacheOptions) {
		o.metrics = m
	}
}

// WithClock sets the time source for recency entries.
func WithClock(now func() time.Time) Option {
	return func(o *cacheOptions) {
		o.clock = now
	}
}

// WithCoalescing makes concurrent misses for the same URL share one fetch and
// one write. A caller that cancels stops waiting but does not abort the
// shared fetch.
func WithCoalescing() Option {
	return func(o *cacheOptions) {
		o.coalesce = true
	}
}

// New creates a ResponseCache over st.
func New(st *store.QuotaStore, opts ...Option) (*ResponseCache, error) {
	if st == nil {
		return nil, errors.New(errors.CodeInvalidInput, "store cannot be nil")
	}

	options := &cacheOptions{
		compression:   true,
		valuePrefix:   DefaultValuePrefix,
		recencyPrefix: DefaultRecencyPrefix,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = NewNopLogger()
	}
	if options.metrics == nil {
		options.metrics = NewMetrics()
	}

	engine := options.engine
	switch {
	case !options.compression:
		engine = compress.New(
			compress.WithCodec(compress.IdentityCodec{}),
			compress.WithoutWorkers(),
			compress.WithLogger(options.logger.Slog()),
		)
	case engine == nil:
		engine = compress.New(compress.WithLogger(options.logger.Slog()))
	}

	fetcher := options.fetcher
	if fetcher == nil {
		fetcher = fetch.New(fetch.WithLogger(options.logger.Slog()))
	}

	index, err := eviction.New(st, options.valuePrefix, options.recencyPrefix,
		eviction.WithLogger(options.logger.Slog()))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid namespaces")
	}

	c := &ResponseCache{
		store:   st,
		index:   index,
		engine:  engine,
		fetcher: fetcher,
		logger:  options.logger,
		metrics: options.metrics,
		now:     options.clock,
	}
	if options.coalesce {
		c.group = &singleflight.Group{}
	}

	if !st.Available() {
		c.logger.Warn(context.Background(), "storage unavailable, caching disabled")
	}
	return c, nil
}

// Available reports whether responses are being cached.
func (c *ResponseCache) Available() bool {
	return c.store.Available()
}

// Metrics returns the metrics collector.
func (c *ResponseCache) Metrics() *Metrics {
	return c.metrics
}

// Key returns the storage key of the value entry for url.
func (c *ResponseCache) Key(url string) string {
	return c.index.ValueKey(c.token(url))
}

// token is the shared suffix of both storage keys for url. Compression is
// lossless, so distinct URLs never share a token.
func (c *ResponseCache) token(url string) string {
	return base64.RawURLEncoding.EncodeToString(c.engine.CompressSync(url))
}

// GetURL returns the response body for url, from the cache when present.
// The returned Request always resolves on another goroutine.
func (c *ResponseCache) GetURL(ctx context.Context, url string) *Request {
	ctx, cancel := context.WithCancel(ctx)
	r := newRequest(uuid.NewString(), url, cancel)
	go func() {
		defer cancel()
		v, err := c.run(ctx, r)
		r.resolve(v, err)
	}()
	return r
}

func (c *ResponseCache) run(ctx context.Context, r *Request) (Value, error) {
	log := c.logger.WithRequest(r.id, r.url)
	token := c.token(r.url)

	if c.store.Available() {
		v, hit, err := c.lookup(ctx, token, log)
		if err != nil {
			return Value{}, err
		}
		if hit {
			return v, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Value{}, canceled(r.url, err)
	}

	body, err := c.fetchAndStore(ctx, r.url, token, log)
	if err != nil {
		log.WithOperation(OpGetURL).Debug(ctx, "request failed", "error", err)
		return Value{}, err
	}
	return NewValue(body), nil
}

// lookup serves token from the store. A missing or undecodable entry is a
// miss; the only error is cancellation.
func (c *ResponseCache) lookup(ctx context.Context, token string, log *Logger) (Value, bool, error) {
	log = log.WithOperation(OpLookup)

	raw, ok := c.store.Get(ctx, c.index.ValueKey(token))
	if !ok {
		LogCacheMiss(ctx, log, "absent")
		return Value{}, false, nil
	}

	text, err := c.decode(ctx, raw)
	if err != nil {
		if errors.HasCode(err, errors.CodeCanceled) {
			return Value{}, false, err
		}
		c.metrics.RecordDecodeFailure()
		log.Warn(ctx, "discarding undecodable entry", "error", err)
		if ferr := c.index.Forget(ctx, token); ferr != nil {
			log.Warn(ctx, "failed to remove undecodable entry", "error", ferr)
		}
		LogCacheMiss(ctx, log, "decode_failed")
		return Value{}, false, nil
	}

	if err := c.index.Touch(ctx, token, c.now()); err != nil {
		log.Warn(ctx, "failed to refresh recency", "error", err)
	}

	c.metrics.RecordHit(len(text))
	LogCacheHit(ctx, log, len(text))
	return NewValue([]byte(text)), true, nil
}

func (c *ResponseCache) decode(ctx context.Context, raw []byte) (string, error) {
	payload, err := openEntry(raw)
	if err != nil {
		return "", err
	}
	return c.engine.Decompress(ctx, payload).Wait(ctx)
}

func (c *ResponseCache) fetchAndStore(ctx context.Context, url, token string, log *Logger) ([]byte, error) {
	if c.group == nil {
		return c.fetchOnce(ctx, url, token, log)
	}

	ch := c.group.DoChan(token, func() (any, error) {
		return c.fetchOnce(context.WithoutCancel(ctx), url, token, log)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		body := res.Val.([]byte)
		if res.Shared {
			body = bytes.Clone(body)
		}
		return body, nil
	case <-ctx.Done():
		return nil, canceled(url, ctx.Err())
	}
}

func (c *ResponseCache) fetchOnce(ctx context.Context, url, token string, log *Logger) ([]byte, error) {
	body, err := c.fetcher.Get(ctx, url)
	if err != nil {
		c.metrics.RecordFetchError()
		return nil, err
	}
	c.metrics.RecordMiss(len(body))
	log.WithOperation(OpFetch).Debug(ctx, "fetched from origin", "size", len(body))

	if c.store.Available() {
		// The response has arrived; cancelling now must not interrupt the write.
		c.storeWithEviction(context.WithoutCancel(ctx), token, body, log)
	}
	return body, nil
}

// storeWithEviction writes the entry for token, evicting least recently used
// entries while the store is full. Failure is logged and otherwise ignored.
func (c *ResponseCache) storeWithEviction(ctx context.Context, token string, body []byte, log *Logger) {
	log = log.WithOperation(OpStore).With("key", c.index.ValueKey(token))

	payload, err := c.engine.Compress(ctx, string(body)).Wait(ctx)
	if err != nil {
		c.metrics.RecordStoreFailure()
		LogStoreAbandoned(ctx, log, len(body), err)
		return
	}
	entry := sealEntry(payload)

	if err := c.putEvicting(ctx, c.index.ValueKey(token), entry, log); err != nil {
		c.metrics.RecordStoreFailure()
		LogStoreAbandoned(ctx, log, len(entry), err)
		return
	}

	// The fresh value has no recency entry yet and would otherwise look like
	// the oldest entry in the store.
	err = c.retryEvicting(ctx, log, func() error {
		return c.index.Touch(ctx, token, c.now())
	}, token)
	if err != nil {
		if ferr := c.index.Forget(ctx, token); ferr != nil {
			log.Warn(ctx, "failed to remove entry without recency", "error", ferr)
		}
		c.metrics.RecordStoreFailure()
		LogStoreAbandoned(ctx, log, len(entry), err)
		return
	}

	c.metrics.RecordStore(len(entry))
	log.Debug(ctx, "stored entry", "size", len(entry), "original_size", len(body))
}

func (c *ResponseCache) putEvicting(ctx context.Context, key string, data []byte, log *Logger) error {
	return c.retryEvicting(ctx, log, func() error {
		return c.store.Put(ctx, key, data)
	})
}

// retryEvicting runs write until it succeeds, evicting one entry after each
// capacity failure. It stops when the write fails for any other reason or
// nothing is left to evict. Each iteration either removes an entry or ends
// the loop, so it terminates.
func (c *ResponseCache) retryEvicting(ctx context.Context, log *Logger, write func() error, keep ...string) error {
	for {
		err := write()
		if err == nil {
			return nil
		}
		if !store.IsCapacityExceeded(err) {
			return err
		}

		evicted, eerr := c.index.EvictLeastRecentlyUsed(ctx, keep...)
		if eerr != nil {
			return errors.Wrap(eerr, errors.CodeStorageUnavailable, "eviction failed")
		}
		if !evicted {
			log.Warn(ctx, "nothing left to evict")
			return errors.Wrap(err, errors.CodeEvictionExhausted, "entry does not fit with nothing left to evict")
		}
		c.metrics.RecordEviction()
		log.Debug(ctx, "evicted entry to make room", "phase", string(OpEvict))
	}
}

// Invalidate removes the entry for url, if any.
func (c *ResponseCache) Invalidate(ctx context.Context, url string) error {
	if !c.store.Available() {
		return nil
	}
	token := c.token(url)
	if err := c.index.Forget(ctx, token); err != nil {
		return errors.WithContext(err, "url", url)
	}
	c.logger.WithOperation(OpInvalidate).Debug(ctx, "invalidated entry", "url", url)
	return nil
}

// Clear removes every entry in both namespaces.
func (c *ResponseCache) Clear(ctx context.Context) error {
	if !c.store.Available() {
		return nil
	}
	tokens, err := c.index.Tokens(ctx)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if err := c.index.Forget(ctx, t); err != nil {
			return err
		}
	}
	c.logger.WithOperation(OpClear).Info(ctx, "cleared cache", "entries", len(tokens))
	return nil
}

// Len returns the number of stored values.
func (c *ResponseCache) Len(ctx context.Context) (int, error) {
	if !c.store.Available() {
		return 0, nil
	}
	keys, err := c.store.KeysWithPrefix(ctx, c.index.ValueKey(""))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
