// Package compress implements the compression engine used for cache keys and
// cached payloads.
//
// An Engine compresses text into bytes and back. Each operation is available
// in a synchronous form, which runs on the caller's goroutine, and an
// asynchronous form, which runs on a bounded worker pool and returns a
// Future. When the engine is built without workers the asynchronous form runs
// inline and returns an already-resolved Future, so callers never branch on
// whether a pool exists.
//
// The algorithm is pluggable through the Codec interface. ZstdCodec is the
// default; S2Codec trades ratio for speed; IdentityCodec disables compression
// while keeping the same call shape.
//
// The round-trip law holds for every codec and every string, including the
// empty string and non-ASCII content:
//
//	DecompressSync(CompressSync(v)) == v
package compress
