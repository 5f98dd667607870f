package cache

import (
	"bytes"
	_ "crypto/sha256" // registers the canonical digest algorithm

	"github.com/opencontainers/go-digest"

	"github.com/jmgilman/go/respcache/errors"
)

// sealEntry prefixes payload with its digest and a newline.
func sealEntry(payload []byte) []byte {
	d := digest.FromBytes(payload)
	out := make([]byte, 0, len(d)+1+len(payload))
	out = append(out, d...)
	out = append(out, '\n')
	return append(out, payload...)
}

// openEntry verifies a sealed entry and returns its payload.
func openEntry(raw []byte) ([]byte, error) {
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return nil, errors.New(errors.CodeDecodeFailed, "entry has no digest header")
	}

	d, err := digest.Parse(string(raw[:i]))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDecodeFailed, "entry digest is malformed")
	}

	payload := raw[i+1:]
	v := d.Verifier()
	_, _ = v.Write(payload)
	if !v.Verified() {
		return nil, errors.WithContext(
			errors.New(errors.CodeDecodeFailed, "entry digest mismatch"),
			"expected", d.String(),
		)
	}
	return payload, nil
}
