package errors

import (
	"encoding/json"
)

// ErrorResponse is the flat JSON form of an error.
// The wrapped cause chain is not included.
type ErrorResponse struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Classification string                 `json:"classification"`
	Context        map[string]interface{} `json:"context,omitempty"`
}

// ToJSON converts any error to an ErrorResponse.
// Returns nil if err is nil. Plain errors use CodeUnknown and their Error text.
func ToJSON(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	message := err.Error()
	var context map[string]interface{}

	var platformErr PlatformError
	if As(err, &platformErr) {
		message = platformErr.Message()
		context = platformErr.Context()
	}

	return &ErrorResponse{
		Code:           string(GetCode(err)),
		Message:        message,
		Classification: string(GetClassification(err)),
		Context:        context,
	}
}

// MarshalJSON implements json.Marshaler for platformError.
func (e *platformError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&ErrorResponse{
		Code:           string(e.code),
		Message:        e.message,
		Classification: string(e.classification),
		Context:        e.context,
	})
}
