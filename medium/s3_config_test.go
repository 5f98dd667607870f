package medium

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr string
	}{
		{name: "missing bucket", cfg: S3Config{}, wantErr: "bucket is required"},
		{name: "missing endpoint", cfg: S3Config{Bucket: "b"}, wantErr: "endpoint is required"},
		{name: "missing credentials", cfg: S3Config{Bucket: "b", Endpoint: "localhost:9000"}, wantErr: "credentials are required"},
		{name: "complete", cfg: S3Config{Bucket: "b", Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNameFor(t *testing.T) {
	long := string(make([]byte, 4096))
	for _, key := range []string{"", "k", "respcache:v:abc", long} {
		name := nameFor(key)
		assert.Len(t, name, 64)
		assert.True(t, isName(name))
	}
	assert.NotEqual(t, nameFor("a"), nameFor("b"))
	assert.False(t, isName("not-a-name"))
	assert.False(t, isName("ZZ23456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"))
}
