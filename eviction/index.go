// Package eviction tracks when each cached entry was last used and evicts
// the least recently used one on demand.
//
// Recency entries live in the same QuotaStore as the values they describe,
// under their own namespace prefix. Both entries for a URL share the same
// token: the value lives at valuePrefix+token and its recency timestamp at
// recencyPrefix+token.
package eviction

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/store"
)

// Index is an LRU index over a QuotaStore.
type Index struct {
	store         *store.QuotaStore
	valuePrefix   string
	recencyPrefix string
	logger        *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. Defaults to discarding output.
func WithLogger(l *slog.Logger) Option {
	return func(i *Index) {
		i.logger = l
	}
}

// New creates an index over s. The prefixes must be non-empty and neither
// may be a prefix of the other, so the two namespaces never overlap.
func New(s *store.QuotaStore, valuePrefix, recencyPrefix string, opts ...Option) (*Index, error) {
	if s == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "store cannot be nil")
	}
	if err := ValidatePrefixes(valuePrefix, recencyPrefix); err != nil {
		return nil, err
	}

	i := &Index{
		store:         s,
		valuePrefix:   valuePrefix,
		recencyPrefix: recencyPrefix,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// ValidatePrefixes checks that two namespace prefixes partition the keyspace.
func ValidatePrefixes(valuePrefix, recencyPrefix string) error {
	if valuePrefix == "" || recencyPrefix == "" {
		return errors.New(errors.CodeInvalidConfig, "namespace prefixes cannot be empty")
	}
	if strings.HasPrefix(valuePrefix, recencyPrefix) || strings.HasPrefix(recencyPrefix, valuePrefix) {
		return errors.Newf(errors.CodeInvalidConfig, "namespace prefixes %q and %q overlap", valuePrefix, recencyPrefix)
	}
	return nil
}

// ValueKey returns the storage key of the value entry for token.
func (i *Index) ValueKey(token string) string {
	return i.valuePrefix + token
}

// RecencyKey returns the storage key of the recency entry for token.
func (i *Index) RecencyKey(token string) string {
	return i.recencyPrefix + token
}

// Touch records now as the last access time of token.
func (i *Index) Touch(ctx context.Context, token string, now time.Time) error {
	return i.store.Put(ctx, i.RecencyKey(token), []byte(strconv.FormatInt(now.UnixNano(), 10)))
}

// LastAccess returns the recorded access time of token.
func (i *Index) LastAccess(ctx context.Context, token string) (time.Time, bool) {
	raw, ok := i.store.Get(ctx, i.RecencyKey(token))
	if !ok {
		return time.Time{}, false
	}
	return parseTimestamp(raw), true
}

// Tokens returns every token that has a value or a recency entry, sorted.
func (i *Index) Tokens(ctx context.Context) ([]string, error) {
	recency, err := i.lastAccessByToken(ctx)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(recency))
	for t := range recency {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens, nil
}

// EvictLeastRecentlyUsed removes the value and recency entries of the token
// with the oldest access time. Ties go to the lexically smallest token. A
// value without a recency entry, or with an unreadable one, counts as oldest.
//
// Tokens listed in keep are never chosen. At most one entry is removed per
// call. The result is false only when there is nothing left to evict.
func (i *Index) EvictLeastRecentlyUsed(ctx context.Context, keep ...string) (bool, error) {
	recency, err := i.lastAccessByToken(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range keep {
		delete(recency, t)
	}
	if len(recency) == 0 {
		return false, nil
	}

	tokens := make([]string, 0, len(recency))
	for t := range recency {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	victim := tokens[0]
	for _, t := range tokens[1:] {
		if recency[t].Before(recency[victim]) {
			victim = t
		}
	}

	if err := i.Forget(ctx, victim); err != nil {
		return false, err
	}

	i.logger.Debug("evicted least recently used entry",
		"token", victim,
		"last_access", recency[victim])
	return true, nil
}

// Forget removes both entries for token. The value goes first so that a
// failure in between never leaves a value without its recency entry.
func (i *Index) Forget(ctx context.Context, token string) error {
	if err := i.store.Remove(ctx, i.ValueKey(token)); err != nil {
		return err
	}
	return i.store.Remove(ctx, i.RecencyKey(token))
}

// lastAccessByToken scans both namespaces. Tokens present only in the value
// namespace map to the zero time.
func (i *Index) lastAccessByToken(ctx context.Context) (map[string]time.Time, error) {
	recencyKeys, err := i.store.KeysWithPrefix(ctx, i.recencyPrefix)
	if err != nil {
		return nil, err
	}
	valueKeys, err := i.store.KeysWithPrefix(ctx, i.valuePrefix)
	if err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(recencyKeys))
	for _, k := range recencyKeys {
		raw, ok := i.store.Get(ctx, k)
		if !ok {
			// Vanished between the scan and the read.
			continue
		}
		out[strings.TrimPrefix(k, i.recencyPrefix)] = parseTimestamp(raw)
	}
	for _, k := range valueKeys {
		t := strings.TrimPrefix(k, i.valuePrefix)
		if _, ok := out[t]; !ok {
			out[t] = time.Time{}
		}
	}
	return out, nil
}

func parseTimestamp(raw []byte) time.Time {
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}
