package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with a code and message while preserving the original
// error for errors.Is and errors.As.
//
// If err already contains a PlatformError its classification is kept.
// Returns nil if err is nil.
//
// Example:
//
//	if err := m.Set(ctx, key, data); err != nil {
//	    return errors.Wrap(err, errors.CodeStorageUnavailable, "failed to write entry")
//	}
func Wrap(err error, code ErrorCode, message string) PlatformError {
	return WrapWithContext(err, code, message, nil)
}

// Wrapf wraps an error with a formatted message.
// Returns nil if err is nil.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) PlatformError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WrapWithContext wraps an error and attaches context metadata in one step.
// The context map is copied.
// Returns nil if err is nil.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]interface{}) PlatformError {
	if err == nil {
		return nil
	}

	classification := getDefaultClassification(code)
	var platformErr PlatformError
	if errors.As(err, &platformErr) {
		classification = platformErr.Classification()
	}

	return &platformError{
		code:           code,
		classification: classification,
		message:        message,
		context:        copyContext(ctx),
		cause:          err,
	}
}
