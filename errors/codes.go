package errors

// ErrorCode represents a specific error condition.
// Codes are strings so they read well in logs and serialize naturally.
type ErrorCode string

const (
	// Storage errors.

	// CodeStorageUnavailable indicates the backing medium cannot be used.
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// CodeCapacityExceeded indicates a write did not fit in the backing medium.
	CodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// CodeEvictionExhausted indicates no entries remain to evict.
	CodeEvictionExhausted ErrorCode = "EVICTION_EXHAUSTED"

	// CodeDecodeFailed indicates a payload failed to decompress or verify.
	CodeDecodeFailed ErrorCode = "DECODE_FAILED"

	// CodeNotFound indicates a key is absent.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Fetch errors.

	// CodeFetchFailed indicates the origin responded with a non-2xx status.
	CodeFetchFailed ErrorCode = "FETCH_FAILED"

	// CodeNetwork indicates the transport failed before a response arrived.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeCanceled indicates the caller cancelled the operation.
	CodeCanceled ErrorCode = "CANCELED"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unclassified error.
	CodeUnknown ErrorCode = "UNKNOWN"
)
