// Package store wraps a capacity-bounded medium with the narrow contract the
// response cache needs: lookups that never fail, all-or-nothing writes that
// distinguish capacity failures from everything else, idempotent removal and
// prefix scans.
package store

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/medium"
)

// DefaultProbeKey is written and deleted once at construction to decide
// whether the medium is usable.
const DefaultProbeKey = "respcache:probe"

// QuotaStore is a thin wrapper over a medium.Medium.
// It is safe for concurrent use if the medium is.
type QuotaStore struct {
	medium    medium.Medium
	available bool
	logger    *slog.Logger
}

// Option configures a QuotaStore.
type Option func(*storeOptions)

type storeOptions struct {
	logger   *slog.Logger
	probeKey string
}

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = l
	}
}

// WithProbeKey overrides the key used by the availability probe.
func WithProbeKey(key string) Option {
	return func(o *storeOptions) {
		o.probeKey = key
	}
}

// New wraps m and probes it once. A nil medium, or one that rejects the
// probe write or delete, yields an unavailable store: every Get misses and
// every Put fails with CodeStorageUnavailable.
func New(ctx context.Context, m medium.Medium, opts ...Option) *QuotaStore {
	options := &storeOptions{
		logger:   slog.New(slog.DiscardHandler),
		probeKey: DefaultProbeKey,
	}
	for _, opt := range opts {
		opt(options)
	}

	s := &QuotaStore{medium: m, logger: options.logger}
	s.available = s.probe(ctx, options.probeKey)
	if !s.available {
		s.logger.Warn("storage unavailable, caching disabled")
	}
	return s
}

func (s *QuotaStore) probe(ctx context.Context, key string) bool {
	if s.medium == nil {
		return false
	}
	if err := s.medium.Set(ctx, key, []byte(key)); err != nil {
		s.logger.Debug("storage probe write failed", "error", err)
		return false
	}
	if err := s.medium.Delete(ctx, key); err != nil {
		s.logger.Debug("storage probe delete failed", "error", err)
		return false
	}
	return true
}

// Available reports the result of the construction-time probe.
func (s *QuotaStore) Available() bool {
	return s.available
}

// Get returns the bytes stored under key. Absence and read failures are both
// reported as a miss.
func (s *QuotaStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.available {
		return nil, false
	}

	data, err := s.medium.Get(ctx, key)
	if err != nil {
		if !stderrors.Is(err, medium.ErrNotFound) {
			s.logger.Warn("storage read failed, treating as miss", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Put stores data under key. The write either fully succeeds or leaves the
// store unchanged. Errors carry CodeCapacityExceeded when eviction could
// help and CodeStorageUnavailable otherwise.
func (s *QuotaStore) Put(ctx context.Context, key string, data []byte) error {
	if !s.available {
		return errors.New(errors.CodeStorageUnavailable, "storage is unavailable")
	}

	err := s.medium.Set(ctx, key, data)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, medium.ErrQuotaExceeded):
		return errors.WrapWithContext(err, errors.CodeCapacityExceeded, "entry does not fit", map[string]interface{}{
			"key":  key,
			"size": len(data),
		})
	default:
		return errors.WithContext(
			errors.Wrap(err, errors.CodeStorageUnavailable, "failed to write entry"),
			"key", key,
		)
	}
}

// Remove deletes key. Removing an absent key is not an error.
func (s *QuotaStore) Remove(ctx context.Context, key string) error {
	if !s.available {
		return nil
	}
	if err := s.medium.Delete(ctx, key); err != nil {
		return errors.WithContext(
			errors.Wrap(err, errors.CodeStorageUnavailable, "failed to remove entry"),
			"key", key,
		)
	}
	return nil
}

// KeysWithPrefix returns every stored key starting with prefix, sorted.
// It is a full scan of the medium.
func (s *QuotaStore) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	if !s.available {
		return nil, nil
	}

	all, err := s.medium.Keys(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageUnavailable, "failed to list entries")
	}

	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// IsCapacityExceeded reports whether err is a capacity failure from Put.
func IsCapacityExceeded(err error) bool {
	return errors.HasCode(err, errors.CodeCapacityExceeded)
}
