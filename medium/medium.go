package medium

import (
	"context"
	_ "crypto/sha256" // registers the digest algorithm used for names
	"encoding/base64"
	"errors"

	"github.com/opencontainers/go-digest"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// ErrQuotaExceeded is returned by Set when the write would exceed the quota.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Medium is a capacity-bounded key/value store.
// Implementations must be safe for concurrent use.
type Medium interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	// Returns ErrQuotaExceeded if the result would exceed the quota; in that
	// case nothing is written.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key currently stored, in no particular order.
	Keys(ctx context.Context) ([]string, error)

	// Clear removes every key.
	Clear(ctx context.Context) error
}

// entrySize is the quota charge for one entry.
func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// fits reports whether used bytes stay within quota.
func fits(used, quota int64) bool {
	return quota <= 0 || used <= quota
}

// nameFor maps a key of any length onto a fixed-length name safe for file
// and object paths. The key itself is kept alongside the data so listings
// can recover it.
func nameFor(key string) string {
	return digest.FromString(key).Encoded()
}

// isName reports whether name could have been produced by nameFor.
func isName(name string) bool {
	return digest.NewDigestFromEncoded(digest.SHA256, name).Validate() == nil
}

// encodeKey makes a key safe to store as a single header line or metadata
// value.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// decodeKey reverses encodeKey.
func decodeKey(s string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", false
	}
	return string(b), true
}
