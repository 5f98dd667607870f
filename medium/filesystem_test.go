package medium_test

import (
	"context"
	"path"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/respcache/medium"
	"github.com/jmgilman/go/respcache/medium/mediumtest"
)

// foreignHexName looks like a medium file name but carries no key header.
const foreignHexName = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestFilesystem_Conformance(t *testing.T) {
	t.Run("memfs", func(t *testing.T) {
		mediumtest.Run(t, func(t *testing.T, quota int64) medium.Medium {
			f, err := medium.NewFilesystem(memfs.New(), "/cache", quota)
			require.NoError(t, err)
			return f
		})
	})

	t.Run("osfs", func(t *testing.T) {
		mediumtest.Run(t, func(t *testing.T, quota int64) medium.Medium {
			f, err := medium.NewFilesystem(osfs.New(t.TempDir()), "entries", quota)
			require.NoError(t, err)
			return f
		})
	})
}

func TestFilesystem_ExistingFilesCountTowardQuota(t *testing.T) {
	ctx := context.Background()
	bfs := memfs.New()

	first, err := medium.NewFilesystem(bfs, "/cache", 0)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "key", []byte("value")))

	second, err := medium.NewFilesystem(bfs, "/cache", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len("key")+len("value")), second.Used())

	got, err := second.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))
}

func TestFilesystem_KeysIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	bfs := memfs.New()

	f, err := medium.NewFilesystem(bfs, "/cache", 0)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, "k", []byte("v")))
	require.NoError(t, util.WriteFile(bfs, "/cache/.tmp-leftover", []byte("x"), 0o644))
	require.NoError(t, util.WriteFile(bfs, "/cache/not base64!", []byte("x"), 0o644))
	require.NoError(t, util.WriteFile(bfs, "/cache/"+foreignHexName, []byte("no header"), 0o644))

	keys, err := f.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
	assert.Equal(t, int64(2), f.Used())
}

func TestFilesystem_ClearLeavesForeignFiles(t *testing.T) {
	ctx := context.Background()
	bfs := memfs.New()

	f, err := medium.NewFilesystem(bfs, "/cache", 0)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, "a", []byte("1")))
	require.NoError(t, f.Set(ctx, "b", []byte("2")))

	foreign := []string{"notes.txt!", "README", foreignHexName}
	for _, name := range foreign {
		require.NoError(t, util.WriteFile(bfs, path.Join("/cache", name), []byte("user data"), 0o644))
	}
	require.NoError(t, util.WriteFile(bfs, "/cache/.tmp-abandoned", []byte("x"), 0o644))

	require.NoError(t, f.Clear(ctx))

	keys, err := f.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Zero(t, f.Used())

	for _, name := range foreign {
		data, err := util.ReadFile(bfs, path.Join("/cache", name))
		require.NoError(t, err, "%s should survive Clear", name)
		assert.Equal(t, "user data", string(data))
	}
	_, err = bfs.Stat("/cache/.tmp-abandoned")
	assert.Error(t, err, "abandoned temp files belong to the medium")
}

func TestFilesystem_NamesAreFixedLength(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bfs := osfs.New(dir)

	f, err := medium.NewFilesystem(bfs, "/", 0)
	require.NoError(t, err)

	key := "respcache:v:" + strings.Repeat("https://example.com/path/segment", 40)
	require.NoError(t, f.Set(ctx, key, []byte("value")))

	infos, err := bfs.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Len(t, infos[0].Name(), 64)

	// A fresh medium over the same directory recovers the key.
	again, err := medium.NewFilesystem(bfs, "/", 0)
	require.NoError(t, err)
	keys, err := again.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
	assert.Equal(t, int64(len(key)+len("value")), again.Used())
}

func TestFilesystem_ExternalRemovalIsNotFound(t *testing.T) {
	ctx := context.Background()
	bfs := memfs.New()

	f, err := medium.NewFilesystem(bfs, "/cache", 0)
	require.NoError(t, err)
	require.NoError(t, f.Set(ctx, "k", []byte("v")))
	require.NoError(t, util.RemoveAll(bfs, "/cache"))
	require.NoError(t, bfs.MkdirAll("/cache", 0o755))

	_, err = f.Get(ctx, "k")
	assert.ErrorIs(t, err, medium.ErrNotFound)

	keys, err := f.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, int64(0), f.Used())
}
