package store

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/medium"
)

// brokenMedium fails every operation.
type brokenMedium struct{}

var errBroken = stderrors.New("medium offline")

func (brokenMedium) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenMedium) Set(context.Context, string, []byte) error   { return errBroken }
func (brokenMedium) Delete(context.Context, string) error        { return errBroken }
func (brokenMedium) Keys(context.Context) ([]string, error)      { return nil, errBroken }
func (brokenMedium) Clear(context.Context) error                 { return errBroken }

// flakyMedium accepts the probe, then fails writes or reads on demand.
type flakyMedium struct {
	medium.Medium
	failWrites bool
	failReads  bool
}

func (f *flakyMedium) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failReads {
		return nil, errBroken
	}
	return f.Medium.Get(ctx, key)
}

func (f *flakyMedium) Set(ctx context.Context, key string, value []byte) error {
	if f.failWrites {
		return errBroken
	}
	return f.Medium.Set(ctx, key, value)
}

func newMemoryStore(t *testing.T, quota int64) *QuotaStore {
	t.Helper()
	m, err := medium.NewMemory(quota)
	require.NoError(t, err)
	s := New(context.Background(), m)
	require.True(t, s.Available())
	return s
}

func TestNew_Probe(t *testing.T) {
	tests := []struct {
		name      string
		medium    medium.Medium
		available bool
	}{
		{name: "nil medium", medium: nil, available: false},
		{name: "broken medium", medium: brokenMedium{}, available: false},
		{name: "memory medium", medium: mustMemory(t, 0), available: true},
		{name: "quota too small for probe", medium: mustMemory(t, 4), available: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(context.Background(), tt.medium)
			assert.Equal(t, tt.available, s.Available())
		})
	}
}

func TestNew_ProbeLeavesNoTrace(t *testing.T) {
	m := mustMemory(t, 0)
	New(context.Background(), m)

	keys, err := m.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestQuotaStore_GetPutRemove(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, 0)

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	got, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"))
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestQuotaStore_PutCapacityExceeded(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, 64)

	err := s.Put(ctx, "big", make([]byte, 128))
	require.Error(t, err)
	assert.True(t, IsCapacityExceeded(err))
	assert.True(t, stderrors.Is(err, medium.ErrQuotaExceeded))
	assert.True(t, errors.IsRetryable(err))

	_, ok := s.Get(ctx, "big")
	assert.False(t, ok)
}

func TestQuotaStore_PutOtherFailure(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyMedium{Medium: mustMemory(t, 0)}
	s := New(ctx, flaky)
	require.True(t, s.Available())

	flaky.failWrites = true
	err := s.Put(ctx, "k", []byte("v"))
	require.Error(t, err)
	assert.False(t, IsCapacityExceeded(err))
	assert.Equal(t, errors.CodeStorageUnavailable, errors.GetCode(err))
}

func TestQuotaStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, brokenMedium{})

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)

	err := s.Put(ctx, "k", []byte("v"))
	assert.Equal(t, errors.CodeStorageUnavailable, errors.GetCode(err))

	assert.NoError(t, s.Remove(ctx, "k"))

	keys, err := s.KeysWithPrefix(ctx, "")
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

func TestQuotaStore_KeysWithPrefix(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, 0)

	for _, k := range []string{"v:b", "r:b", "v:a", "r:a", "other"} {
		require.NoError(t, s.Put(ctx, k, []byte("x")))
	}

	keys, err := s.KeysWithPrefix(ctx, "v:")
	require.NoError(t, err)
	assert.Equal(t, []string{"v:a", "v:b"}, keys)

	keys, err = s.KeysWithPrefix(ctx, "r:")
	require.NoError(t, err)
	assert.Equal(t, []string{"r:a", "r:b"}, keys)
}

func mustMemory(t *testing.T, quota int64) medium.Medium {
	t.Helper()
	m, err := medium.NewMemory(quota)
	require.NoError(t, err)
	return m
}

func TestQuotaStore_GetReadFailureLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	flaky := &flakyMedium{Medium: mustMemory(t, 0)}
	s := New(ctx, flaky, WithLogger(logger))
	require.True(t, s.Available())
	require.NoError(t, s.Put(ctx, "k", []byte("v")))

	_, ok := s.Get(ctx, "missing")
	assert.False(t, ok)
	assert.Empty(t, buf.String(), "a plain miss is not worth a warning")

	flaky.failReads = true
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok, "read failures degrade to a miss")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "storage read failed")
	assert.Contains(t, buf.String(), "medium offline")
}
