package fetch

import (
	"fmt"

	"github.com/jmgilman/go/respcache/errors"
)

// FetchError describes a failed GET. StatusCode is zero when no response was
// received.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("GET %s: %v", e.URL, e.Cause)
	default:
		return fmt.Sprintf("GET %s failed", e.URL)
	}
}

// Unwrap returns the transport cause, if any.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

func statusError(url string, status int) error {
	return errors.WrapWithContext(&FetchError{URL: url, StatusCode: status},
		errors.CodeFetchFailed, "origin returned a non-2xx status",
		map[string]interface{}{"url": url, "status": status})
}

func transportError(url string, cause error) error {
	return errors.WrapWithContext(&FetchError{URL: url, Cause: cause},
		errors.CodeNetwork, "request failed",
		map[string]interface{}{"url": url})
}

func canceledError(url string, cause error) error {
	return errors.WrapWithContext(&FetchError{URL: url, Cause: cause},
		errors.CodeCanceled, "request canceled",
		map[string]interface{}{"url": url})
}

func invalidRequestError(url string, cause error) error {
	return errors.WrapWithContext(&FetchError{URL: url, Cause: cause},
		errors.CodeInvalidInput, "invalid request",
		map[string]interface{}{"url": url})
}
