// Package errors provides the structured error type used across respcache.
//
// Every failure that crosses a package boundary inside respcache is a
// PlatformError: it carries an ErrorCode naming the failure, an
// ErrorClassification saying whether retrying can help, optional context
// metadata, and the wrapped cause. The type stays compatible with the
// standard library (errors.Is, errors.As, errors.Unwrap).
//
// # Codes
//
// The codes map onto the cache's failure taxonomy:
//
//   - CodeStorageUnavailable: the backing medium failed its probe or a write
//   - CodeCapacityExceeded: a write did not fit in the medium
//   - CodeEvictionExhausted: nothing left to evict while still over capacity
//   - CodeDecodeFailed: a stored payload could not be decompressed or verified
//   - CodeFetchFailed: the origin answered with a non-2xx status
//   - CodeNetwork: the transport failed before a status was received
//   - CodeCanceled: the caller cancelled the request
//
// Only fetch-related codes ever reach callers of the response cache; the
// others are recovered internally and show up in logs.
//
// # Usage
//
//	if err := st.Put(ctx, key, payload); err != nil {
//	    if errors.GetCode(err) == errors.CodeCapacityExceeded {
//	        // evict and retry
//	    }
//	}
//
// Wrapping keeps the cause reachable:
//
//	return errors.Wrap(err, errors.CodeStorageUnavailable, "failed to write entry")
package errors
