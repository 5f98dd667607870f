package errors

import "fmt"

// platformError is the concrete implementation of PlatformError.
// Construction goes through the package functions.
type platformError struct {
	code           ErrorCode
	classification ErrorClassification
	message        string
	context        map[string]interface{}
	cause          error
}

// Error formats as "[CODE] message" or "[CODE] message: cause".
func (e *platformError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *platformError) Code() ErrorCode                     { return e.code }
func (e *platformError) Classification() ErrorClassification { return e.classification }
func (e *platformError) Message() string                     { return e.message }
func (e *platformError) Unwrap() error                       { return e.cause }

// Context returns a copy of the context map, or nil.
func (e *platformError) Context() map[string]interface{} {
	return copyContext(e.context)
}

func copyContext(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
