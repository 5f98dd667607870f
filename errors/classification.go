package errors

// ErrorClassification indicates whether an error should trigger a retry.
type ErrorClassification string

const (
	// ClassificationRetryable indicates temporary failures that may succeed on retry.
	ClassificationRetryable ErrorClassification = "RETRYABLE"

	// ClassificationPermanent indicates failures that will not succeed on retry.
	ClassificationPermanent ErrorClassification = "PERMANENT"
)

// IsRetryable returns true if the classification indicates retry should be attempted.
func (c ErrorClassification) IsRetryable() bool {
	return c == ClassificationRetryable
}

// defaultClassifications maps error codes to their default classification.
// A capacity failure is retryable because eviction can free space.
var defaultClassifications = map[ErrorCode]ErrorClassification{
	CodeNetwork:            ClassificationRetryable,
	CodeStorageUnavailable: ClassificationRetryable,
	CodeCapacityExceeded:   ClassificationRetryable,

	CodeEvictionExhausted: ClassificationPermanent,
	CodeDecodeFailed:      ClassificationPermanent,
	CodeNotFound:          ClassificationPermanent,
	CodeFetchFailed:       ClassificationPermanent,
	CodeCanceled:          ClassificationPermanent,
	CodeInvalidInput:      ClassificationPermanent,
	CodeInvalidConfig:     ClassificationPermanent,
	CodeInternal:          ClassificationPermanent,
	CodeUnknown:           ClassificationPermanent,
}

// getDefaultClassification returns the default classification for an error code.
// Unknown codes are permanent.
func getDefaultClassification(code ErrorCode) ErrorClassification {
	if class, ok := defaultClassifications[code]; ok {
		return class
	}
	return ClassificationPermanent
}
