package medium_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/respcache/internal/testutil"
	"github.com/jmgilman/go/respcache/medium"
	"github.com/jmgilman/go/respcache/medium/mediumtest"
)

func TestS3_Conformance(t *testing.T) {
	client := testutil.StartMinIO(t)

	var n int
	mediumtest.Run(t, func(t *testing.T, quota int64) medium.Medium {
		n++
		s, err := medium.NewS3(context.Background(), medium.S3Config{
			Client:     client,
			Bucket:     testutil.MinIOBucket,
			Prefix:     fmt.Sprintf("suite-%d", n),
			QuotaBytes: quota,
		})
		require.NoError(t, err)
		return s
	})
}

func TestS3_RescanChargesExistingObjects(t *testing.T) {
	client := testutil.StartMinIO(t)
	ctx := context.Background()

	cfg := medium.S3Config{Client: client, Bucket: testutil.MinIOBucket, Prefix: "rescan", QuotaBytes: 4096}
	first, err := medium.NewS3(ctx, cfg)
	require.NoError(t, err)
	long := "respcache:v:" + strings.Repeat("x", 1100)
	require.NoError(t, first.Set(ctx, "key", []byte("value")))
	require.NoError(t, first.Set(ctx, long, []byte("v")))

	// Not written by the medium: skipped by Keys and left by Clear.
	_, err = client.PutObject(ctx, testutil.MinIOBucket, "rescan/foreign.txt",
		strings.NewReader("user data"), int64(len("user data")), minio.PutObjectOptions{})
	require.NoError(t, err)

	second, err := medium.NewS3(ctx, cfg)
	require.NoError(t, err)
	keys, err := second.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"key", long}, keys)
	assert.Equal(t, int64(len("key")+len("value")+len(long)+len("v")), second.Used())

	require.NoError(t, second.Clear(ctx))
	_, err = client.StatObject(ctx, testutil.MinIOBucket, "rescan/foreign.txt", minio.StatObjectOptions{})
	assert.NoError(t, err)
}
