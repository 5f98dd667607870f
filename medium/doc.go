// Package medium provides capacity-bounded key/value media for the response
// cache.
//
// A Medium is the physical store that the cache's QuotaStore wraps. It has a
// fixed byte quota that callers do not query up front: a write that would
// exceed it fails with ErrQuotaExceeded and leaves the medium unchanged.
// Three implementations are provided:
//
//   - Memory: an in-process table built on go-memdb, the closest analogue
//     to a browser's session storage
//   - Filesystem: one file per key on any go-billy filesystem (memfs by
//     default, osfs for a scratch directory)
//   - S3: objects in a MinIO/S3 bucket under an optional prefix
//
// Usage is counted as len(key)+len(value) per entry so all media agree on
// what fits. A quota of zero or less means unbounded.
//
// The media are session scoped: nothing is promised across process restarts,
// and any of them may be cleared by outside forces. Absence of a key is
// reported as ErrNotFound and is never an exceptional condition.
package medium
