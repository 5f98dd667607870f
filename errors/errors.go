package errors

// PlatformError extends the standard error interface with a code, a retry
// classification and contextual metadata.
type PlatformError interface {
	error

	// Code returns the error code identifying the type of error.
	Code() ErrorCode

	// Classification returns whether the error is retryable or permanent.
	Classification() ErrorClassification

	// Message returns the human-readable error message without the cause.
	Message() string

	// Context returns attached metadata as a copy.
	// Returns nil if no context has been attached.
	Context() map[string]interface{}

	// Unwrap returns the wrapped error, or nil.
	Unwrap() error
}
