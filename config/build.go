package config

import (
	"context"
	"io"
	"net/http"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/jmgilman/go/respcache/cache"
	"github.com/jmgilman/go/respcache/compress"
	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/fetch"
	"github.com/jmgilman/go/respcache/medium"
	"github.com/jmgilman/go/respcache/store"
)

// Logger builds the logger described by c, writing to out.
func (c *Config) Logger(out io.Writer) *cache.Logger {
	level, _ := cache.ParseLogLevel(c.Log.Level)
	return cache.NewLogger(cache.LogConfig{Level: level, JSON: c.Log.JSON, Output: out})
}

// NewMedium constructs the configured medium.
func (c *Config) NewMedium(ctx context.Context) (medium.Medium, error) {
	switch c.Medium.Type {
	case MediumFilesystem:
		return medium.NewFilesystem(osfs.New(c.Medium.Path), "/", c.Medium.QuotaBytes)
	case MediumS3:
		s3 := c.Medium.S3
		return medium.NewS3(ctx, medium.S3Config{
			Endpoint:   s3.Endpoint,
			Bucket:     s3.Bucket,
			AccessKey:  s3.AccessKey,
			SecretKey:  s3.SecretKey,
			UseSSL:     s3.UseSSL,
			Prefix:     s3.Prefix,
			QuotaBytes: c.Medium.QuotaBytes,
		})
	default:
		return medium.NewMemory(c.Medium.QuotaBytes)
	}
}

// Build constructs a ResponseCache from cfg, logging through logger. A nil
// logger discards output. A medium that cannot be constructed leaves the
// cache in passthrough mode rather than failing.
func Build(ctx context.Context, cfg *Config, logger *cache.Logger) (*cache.ResponseCache, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = cache.NewNopLogger()
	}
	slogger := logger.Slog()

	m, err := cfg.NewMedium(ctx)
	if err != nil {
		logger.Warn(ctx, "failed to open medium", "type", cfg.Medium.Type, "error", err)
		m = nil
	}
	st := store.New(ctx, m, store.WithLogger(slogger))

	codec, err := compress.CodecByName(cfg.Compression.Codec)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid codec")
	}
	engineOpts := []compress.Option{compress.WithCodec(codec), compress.WithLogger(slogger)}
	if cfg.Compression.Workers > 0 {
		engineOpts = append(engineOpts, compress.WithWorkers(cfg.Compression.Workers))
	}

	fetchOpts := []fetch.Option{fetch.WithLogger(slogger)}
	if cfg.Fetch.Timeout > 0 {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(&http.Client{Timeout: cfg.Fetch.Timeout}))
	}
	if cfg.Fetch.Retry.MaxElapsed > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRetry(fetch.ExponentialRetry(cfg.Fetch.Retry.MaxElapsed)))
	}
	for k, v := range cfg.Fetch.Headers {
		fetchOpts = append(fetchOpts, fetch.WithHeader(k, v))
	}

	opts := []cache.Option{
		cache.WithCompression(cfg.CompressionEnabled()),
		cache.WithEngine(compress.New(engineOpts...)),
		cache.WithFetcher(fetch.New(fetchOpts...)),
		cache.WithNamespaces(cfg.Namespaces.Value, cfg.Namespaces.Recency),
		cache.WithLogger(logger),
	}
	if cfg.Coalesce {
		opts = append(opts, cache.WithCoalescing())
	}
	return cache.New(st, opts...)
}
