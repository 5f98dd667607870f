// Package mediumtest provides a conformance suite for medium.Medium
// implementations.
//
// Example usage:
//
//	func TestMemory(t *testing.T) {
//	    mediumtest.Run(t, func(t *testing.T, quota int64) medium.Medium {
//	        m, err := medium.NewMemory(quota)
//	        require.NoError(t, err)
//	        return m
//	    })
//	}
package mediumtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/jmgilman/go/respcache/medium"
)

// Factory returns a fresh, empty medium with the given quota.
type Factory func(t *testing.T, quota int64) medium.Medium

// Run executes every conformance test against media produced by newMedium.
func Run(t *testing.T, newMedium Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newMedium) })
	t.Run("SetGet", func(t *testing.T) { testSetGet(t, newMedium) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newMedium) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, newMedium) })
	t.Run("Keys", func(t *testing.T) { testKeys(t, newMedium) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newMedium) })
	t.Run("QuotaExceeded", func(t *testing.T) { testQuotaExceeded(t, newMedium) })
	t.Run("OverwriteReclaimsSpace", func(t *testing.T) { testOverwriteReclaimsSpace(t, newMedium) })
	t.Run("DeleteFreesSpace", func(t *testing.T) { testDeleteFreesSpace(t, newMedium) })
	t.Run("LongKey", func(t *testing.T) { testLongKey(t, newMedium) })
}

func testGetMissing(t *testing.T, newMedium Factory) {
	m := newMedium(t, 0)
	_, err := m.Get(context.Background(), "missing")
	if !errors.Is(err, medium.ErrNotFound) {
		t.Fatalf("Get(missing): got %v, want ErrNotFound", err)
	}
}

func testSetGet(t *testing.T, newMedium Factory) {
	ctx := context.Background()
	m := newMedium(t, 0)

	values := map[string][]byte{
		"plain":                 []byte("value"),
		"respcache:v:Kx_9-abc":  {0x28, 0xb5, 0x2f, 0xfd, 0x00},
		"with/slash and spaces": []byte("ok"),
		"empty":                 {},
	}
	for k, v := range values {
		if err := m.Set(ctx, k, v); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}
	for k, want := range values {
		got, err := m.Get(ctx, k)
		if err != nil {
			t.Fatalf("Get(%q): %v", k, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Get(%q) = %q, want %q", k, got, want)
		}
	}
}

func testOverwrite(t *testing.T, newMedium Factory) {
	ctx := context.Background()
	m := newMedium(t, 0)

	mustSet(t, m, "k", []byte("first"))
	mustSet(t, m, "k", []byte("second"))

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Get = %q, want %q", got, "second")
	}
}

func testDeleteIdempotent(t *testing.T, newMedium Factory) {
	ctx := context.Background()
	m := newMedium(t, 0)

	if err := m.Delete(ctx, "never-written"); err != nil {
		t.Fatalf("Delete(absent): %v", err)
	}

	mustSet(t, m, "k", []byte("v"))
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, medium.ErrNotFound) {
		t.Fatalf("Get after Delete: got %v, want ErrNotFound", err)
	}
}

func testKeys(t *testing.T, newMedium Factory) {
	m := newMedium(t, 0)
	for _, k := range []string{"b", "a", "c"} {
		mustSet(t, m, k, []byte(k))
	}

	keys, err := m.Keys(context.Background())
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("Keys = %v, want [a b c]", keys)
	}
}

func testClear(t *testing.T, newMedium Factory) {
	ctx := context.Background()
	m := newMedium(t, 0)
	mustSet(t, m, "a", []byte("1"))
	mustSet(t, m, "b", []byte("2"))

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	keys, err := m.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Keys after Clear = %v, want none", keys)
	}
}

func testQuotaExceeded(t *testing.T, newMedium Factory) {
	ctx := context.Background()
	m := newMedium(t, 10)

	mustSet(t, m, "a", []byte("1234")) // 5 bytes

	err := m.Set(ctx, "b", []byte("123456789"))
	if !errors.Is(err, medium.ErrQuotaExceeded) {
		t.Fatalf("Set over quota: got %v, want ErrQuotaExceeded", err)
	}
	if _, err := m.Get(ctx, "b"); !errors.Is(err, medium.ErrNotFound) {
		t.Errorf("rejected write is visible: %v", err)
	}
	got, err := m.Get(ctx, "a")
	if err != nil || string(got) != "1234" {
		t.Errorf("existing entry changed: %q, %v", got, err)
	}
}

func testOverwriteReclaimsSpace(t *testing.T, newMedium Factory) {
	m := newMedium(t, 10)
	mustSet(t, m, "a", []byte("12345678")) // 9 bytes
	mustSet(t, m, "a", []byte("87654321")) // replaces, still 9 bytes
}

func testDeleteFreesSpace(t *testing.T, newMedium Factory) {
	ctx := context.Background()
	m := newMedium(t, 10)
	mustSet(t, m, "a", []byte("12345678"))

	if err := m.Set(ctx, "b", []byte("12345678")); !errors.Is(err, medium.ErrQuotaExceeded) {
		t.Fatalf("Set over quota: got %v, want ErrQuotaExceeded", err)
	}
	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	mustSet(t, m, "b", []byte("12345678"))
}

// testLongKey uses a key far longer than any file or object name limit.
func testLongKey(t *testing.T, newMedium Factory) {
	ctx := context.Background()
	m := newMedium(t, 0)

	var b strings.Builder
	for i := 0; b.Len() < 1024; i++ {
		fmt.Fprintf(&b, "/segment-%d", i)
	}
	key := "respcache:v:" + b.String()
	mustSet(t, m, key, []byte("payload"))

	got, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get long key: %v", err)
	}
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("Get long key: got %q", got)
	}

	keys, err := m.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != key {
		t.Fatalf("Keys: got %d keys, want the long key", len(keys))
	}

	if err := m.Delete(ctx, key); err != nil {
		t.Fatalf("Delete long key: %v", err)
	}
	if _, err := m.Get(ctx, key); !errors.Is(err, medium.ErrNotFound) {
		t.Fatalf("Get after Delete: got %v, want ErrNotFound", err)
	}
}

func mustSet(t *testing.T, m medium.Medium, key string, value []byte) {
	t.Helper()
	if err := m.Set(context.Background(), key, value); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}
