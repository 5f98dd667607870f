package errors

import "errors"

// WithContext returns a copy of err with one context field added.
// Existing fields are preserved.
//
// A plain error is first converted to a PlatformError with CodeUnknown.
// Returns nil if err is nil.
//
// Example:
//
//	err = errors.WithContext(err, "url", url)
func WithContext(err error, key string, value interface{}) PlatformError {
	return WithContextMap(err, map[string]interface{}{key: value})
}

// WithContextMap returns a copy of err with the given fields merged into its
// context. New fields override existing ones with the same key.
// Returns nil if err is nil.
func WithContextMap(err error, ctx map[string]interface{}) PlatformError {
	if err == nil {
		return nil
	}

	platformErr := asPlatformError(err)
	merged := platformErr.Context()
	if merged == nil {
		merged = make(map[string]interface{}, len(ctx))
	}
	for k, v := range ctx {
		merged[k] = v
	}

	return &platformError{
		code:           platformErr.Code(),
		classification: platformErr.Classification(),
		message:        platformErr.Message(),
		context:        merged,
		cause:          platformErr.Unwrap(),
	}
}

// WithClassification returns a copy of err with the classification overridden.
// Returns nil if err is nil.
func WithClassification(err error, classification ErrorClassification) PlatformError {
	if err == nil {
		return nil
	}

	platformErr := asPlatformError(err)
	return &platformError{
		code:           platformErr.Code(),
		classification: classification,
		message:        platformErr.Message(),
		context:        platformErr.Context(),
		cause:          platformErr.Unwrap(),
	}
}

func asPlatformError(err error) PlatformError {
	var platformErr PlatformError
	if errors.As(err, &platformErr) {
		return platformErr
	}
	return &platformError{
		code:           CodeUnknown,
		classification: ClassificationPermanent,
		message:        err.Error(),
		cause:          err,
	}
}
