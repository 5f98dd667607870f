package reload

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmgilman/go/respcache/cache"
)

// Provider produces values on request.
type Provider interface {
	// DataReady delivers each newly loaded value. Only the latest unread
	// value is kept.
	DataReady() <-chan cache.Value
	// RequestReload asks for a fresh value. Requests made while a reload is
	// pending are merged into it.
	RequestReload()
}

// URLProvider is a Provider backed by one URL fetched through a ResponseCache.
type URLProvider struct {
	cache     *cache.ResponseCache
	url       string
	refresh   bool
	logger    *slog.Logger
	coalescer *Coalescer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	ready chan cache.Value
	err   error
}

// Option configures a URLProvider.
type Option func(*URLProvider)

// WithRefresh makes every reload bypass the stored entry and fetch from the
// origin, replacing what is stored.
func WithRefresh() Option {
	return func(p *URLProvider) {
		p.refresh = true
	}
}

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(p *URLProvider) {
		p.logger = l
	}
}

// NewURLProvider creates a provider for url. Close releases it.
func NewURLProvider(c *cache.ResponseCache, url string, opts ...Option) *URLProvider {
	ctx, cancel := context.WithCancel(context.Background())
	p := &URLProvider{
		cache:     c,
		url:       url,
		logger:    slog.New(slog.DiscardHandler),
		coalescer: NewCoalescer(),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan cache.Value, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DataReady implements Provider.
func (p *URLProvider) DataReady() <-chan cache.Value {
	return p.ready
}

// RequestReload implements Provider.
func (p *URLProvider) RequestReload() {
	if p.ctx.Err() != nil {
		return
	}
	if p.coalescer.Submit(p.reload) {
		p.logger.Debug("reload merged into pending request", "url", p.url)
	}
}

// Err returns the error from the most recent reload, or nil if it succeeded.
func (p *URLProvider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until no reload is pending or running.
func (p *URLProvider) Wait() {
	p.coalescer.Wait()
}

// Close cancels any running reload and rejects further requests.
func (p *URLProvider) Close() {
	p.cancel()
	p.coalescer.Wait()
}

func (p *URLProvider) reload() {
	if p.refresh {
		if err := p.cache.Invalidate(p.ctx, p.url); err != nil {
			p.logger.Warn("failed to invalidate before reload", "url", p.url, "error", err)
		}
	}

	v, err := p.cache.GetURL(p.ctx, p.url).Wait(p.ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	if err != nil {
		p.logger.Warn("reload failed", "url", p.url, "error", err)
		return
	}

	select {
	case <-p.ready:
	default:
	}
	p.ready <- v
}
