package cache

import (
	"context"
	"encoding/json"

	"github.com/jmgilman/go/respcache/errors"
)

// Value is a decoded response body.
type Value struct {
	data []byte
}

// NewValue wraps data without copying it.
func NewValue(data []byte) Value {
	return Value{data: data}
}

// Bytes returns the body. The slice must not be modified.
func (v Value) Bytes() []byte {
	return v.data
}

// String returns the body as text.
func (v Value) String() string {
	return string(v.data)
}

// Len returns the body size in bytes.
func (v Value) Len() int {
	return len(v.data)
}

// DecodeJSON unmarshals the body into target.
func (v Value) DecodeJSON(target any) error {
	if err := json.Unmarshal(v.data, target); err != nil {
		return errors.Wrap(err, errors.CodeDecodeFailed, "failed to decode JSON body")
	}
	return nil
}

// GetJSON fetches url through c and decodes the body as JSON.
func GetJSON[T any](ctx context.Context, c *ResponseCache, url string) (T, error) {
	var out T
	v, err := c.GetURL(ctx, url).Wait(ctx)
	if err != nil {
		return out, err
	}
	if err := v.DecodeJSON(&out); err != nil {
		return out, errors.WithContext(err, "url", url)
	}
	return out, nil
}
