package compress

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Codec is a reversible byte transformation.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name identifies the codec in configuration and logs.
	Name() string
	// Encode compresses src. It cannot fail for valid input.
	Encode(src []byte) []byte
	// Decode reverses Encode. Corrupted input returns an error.
	Decode(src []byte) ([]byte, error)
}

// Codec names accepted by CodecByName.
const (
	CodecZstd     = "zstd"
	CodecS2       = "s2"
	CodecIdentity = "identity"
)

// ZstdCodec compresses with Zstandard.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec creates a Zstandard codec. EncodeAll and DecodeAll are used
// so a single codec can serve every worker concurrently.
func NewZstdCodec() (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

// Name returns "zstd".
func (z *ZstdCodec) Name() string { return CodecZstd }

// Encode compresses src into a single zstd frame.
func (z *ZstdCodec) Encode(src []byte) []byte {
	if len(src) == 0 {
		return []byte{}
	}
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2+16))
}

// Decode decompresses a zstd frame.
func (z *ZstdCodec) Decode(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	return z.dec.DecodeAll(src, nil)
}

// S2Codec compresses with S2, a Snappy-compatible format tuned for speed.
type S2Codec struct{}

// Name returns "s2".
func (S2Codec) Name() string { return CodecS2 }

// Encode compresses src.
func (S2Codec) Encode(src []byte) []byte {
	return s2.Encode(nil, src)
}

// Decode decompresses src.
func (S2Codec) Decode(src []byte) ([]byte, error) {
	return s2.Decode(nil, src)
}

// IdentityCodec stores bytes unchanged.
type IdentityCodec struct{}

// Name returns "identity".
func (IdentityCodec) Name() string { return CodecIdentity }

// Encode returns a copy of src.
func (IdentityCodec) Encode(src []byte) []byte {
	return append([]byte{}, src...)
}

// Decode returns a copy of src.
func (IdentityCodec) Decode(src []byte) ([]byte, error) {
	return append([]byte{}, src...), nil
}

// CodecByName returns the codec registered under name.
// The empty name selects zstd.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", CodecZstd:
		return NewZstdCodec()
	case CodecS2:
		return S2Codec{}, nil
	case CodecIdentity, "none":
		return IdentityCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", name)
	}
}
