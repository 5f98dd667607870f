package eviction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/medium"
	"github.com/jmgilman/go/respcache/store"
)

const (
	valuePrefix   = "v:"
	recencyPrefix = "r:"
)

func newIndex(t *testing.T) (*Index, *store.QuotaStore) {
	t.Helper()
	m, err := medium.NewMemory(0)
	require.NoError(t, err)
	s := store.New(context.Background(), m)
	idx, err := New(s, valuePrefix, recencyPrefix)
	require.NoError(t, err)
	return idx, s
}

// seed writes a value and recency pair for token at the given Unix-nano time.
func seed(t *testing.T, idx *Index, s *store.QuotaStore, token string, at int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, idx.ValueKey(token), []byte("payload-"+token)))
	require.NoError(t, idx.Touch(ctx, token, time.Unix(0, at)))
}

func TestNew_Validation(t *testing.T) {
	m, err := medium.NewMemory(0)
	require.NoError(t, err)
	s := store.New(context.Background(), m)

	tests := []struct {
		name    string
		store   *store.QuotaStore
		value   string
		recency string
		wantErr bool
	}{
		{name: "valid", store: s, value: "v:", recency: "r:"},
		{name: "nil store", store: nil, value: "v:", recency: "r:", wantErr: true},
		{name: "empty value prefix", store: s, value: "", recency: "r:", wantErr: true},
		{name: "identical prefixes", store: s, value: "x:", recency: "x:", wantErr: true},
		{name: "nested prefixes", store: s, value: "c:", recency: "c:r:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.store, tt.value, tt.recency)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndex_TouchAndLastAccess(t *testing.T) {
	ctx := context.Background()
	idx, _ := newIndex(t)

	_, ok := idx.LastAccess(ctx, "k")
	assert.False(t, ok)

	first := time.Unix(0, 100)
	require.NoError(t, idx.Touch(ctx, "k", first))
	got, ok := idx.LastAccess(ctx, "k")
	require.True(t, ok)
	assert.True(t, got.Equal(first))

	later := time.Unix(0, 250)
	require.NoError(t, idx.Touch(ctx, "k", later))
	got, ok = idx.LastAccess(ctx, "k")
	require.True(t, ok)
	assert.True(t, got.Equal(later))
}

func TestIndex_EvictLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	idx, s := newIndex(t)

	seed(t, idx, s, "k2", 200)
	seed(t, idx, s, "k1", 100)
	seed(t, idx, s, "k3", 300)

	evicted, err := idx.EvictLeastRecentlyUsed(ctx)
	require.NoError(t, err)
	require.True(t, evicted)

	values, err := s.KeysWithPrefix(ctx, valuePrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"v:k2", "v:k3"}, values)

	recency, err := s.KeysWithPrefix(ctx, recencyPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"r:k2", "r:k3"}, recency)
}

func TestIndex_EvictOnePerCall(t *testing.T) {
	ctx := context.Background()
	idx, s := newIndex(t)

	seed(t, idx, s, "a", 1)
	seed(t, idx, s, "b", 2)

	evicted, err := idx.EvictLeastRecentlyUsed(ctx)
	require.NoError(t, err)
	assert.True(t, evicted)
	tokens, err := idx.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, tokens)

	evicted, err = idx.EvictLeastRecentlyUsed(ctx)
	require.NoError(t, err)
	assert.True(t, evicted)

	evicted, err = idx.EvictLeastRecentlyUsed(ctx)
	require.NoError(t, err)
	assert.False(t, evicted, "empty index has nothing to evict")
}

func TestIndex_EvictTieBreaksLexically(t *testing.T) {
	ctx := context.Background()
	idx, s := newIndex(t)

	seed(t, idx, s, "beta", 50)
	seed(t, idx, s, "alpha", 50)
	seed(t, idx, s, "gamma", 60)

	evicted, err := idx.EvictLeastRecentlyUsed(ctx)
	require.NoError(t, err)
	require.True(t, evicted)

	tokens, err := idx.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "gamma"}, tokens)
}

func TestIndex_EvictOrphanAndCorruptFirst(t *testing.T) {
	ctx := context.Background()
	idx, s := newIndex(t)

	seed(t, idx, s, "fresh", 500)
	// Value with no recency entry.
	require.NoError(t, s.Put(ctx, idx.ValueKey("orphan"), []byte("x")))
	// Recency entry that does not parse.
	require.NoError(t, s.Put(ctx, idx.ValueKey("corrupt"), []byte("x")))
	require.NoError(t, s.Put(ctx, idx.RecencyKey("corrupt"), []byte("not-a-number")))

	for i := 0; i < 2; i++ {
		evicted, err := idx.EvictLeastRecentlyUsed(ctx)
		require.NoError(t, err)
		require.True(t, evicted)
	}

	tokens, err := idx.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, tokens)
}

func TestIndex_Forget(t *testing.T) {
	ctx := context.Background()
	idx, s := newIndex(t)
	seed(t, idx, s, "k", 1)

	require.NoError(t, idx.Forget(ctx, "k"))
	require.NoError(t, idx.Forget(ctx, "k"))

	_, ok := s.Get(ctx, idx.ValueKey("k"))
	assert.False(t, ok)
	_, ok = idx.LastAccess(ctx, "k")
	assert.False(t, ok)
}

func TestIndex_EvictSkipsKept(t *testing.T) {
	ctx := context.Background()
	idx, s := newIndex(t)

	seed(t, idx, s, "a", 1)
	seed(t, idx, s, "b", 2)
	// An orphan value counts as oldest, but is kept.
	require.NoError(t, s.Put(ctx, idx.ValueKey("c"), []byte("fresh")))

	evicted, err := idx.EvictLeastRecentlyUsed(ctx, "c")
	require.NoError(t, err)
	assert.True(t, evicted)

	_, ok := s.Get(ctx, idx.ValueKey("a"))
	assert.False(t, ok)
	_, ok = s.Get(ctx, idx.ValueKey("c"))
	assert.True(t, ok)

	evicted, err = idx.EvictLeastRecentlyUsed(ctx, "b", "c")
	require.NoError(t, err)
	assert.False(t, evicted, "only kept tokens remain")
}
