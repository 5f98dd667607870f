package medium

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

// S3Config configures an S3 medium.
type S3Config struct {
	// Endpoint is the server address (e.g., "localhost:9000").
	Endpoint string
	// Bucket must already exist.
	Bucket string
	// AccessKey is the access key ID.
	AccessKey string
	// SecretKey is the secret access key.
	SecretKey string
	// UseSSL enables HTTPS.
	UseSSL bool
	// Prefix namespaces every object this medium creates.
	Prefix string
	// Client is an optional pre-configured client. When set, Endpoint and
	// credentials are ignored.
	Client *minio.Client
	// QuotaBytes bounds the total size of stored entries.
	QuotaBytes int64
	// DeleteConcurrency bounds parallel deletes during Clear. Default: 8.
	DeleteConcurrency int
}

func (c *S3Config) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Client != nil {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when client is not provided")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("credentials are required when client is not provided")
	}
	return nil
}

// S3 stores one object per key in a MinIO/S3 bucket. Objects are named by the
// SHA-256 of the key, which keeps names within the S3 key limit; the key
// itself travels as user metadata. PutObject replaces an object atomically,
// which gives the all-or-nothing write the Medium contract requires.
type S3 struct {
	mu          sync.Mutex
	client      *minio.Client
	bucket      string
	prefix      string
	quota       int64
	sizes       map[string]int64
	used        int64
	concurrency int
}

// NewS3 connects to the bucket and charges existing objects under the prefix
// against the quota.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := cfg.Client
	if client == nil {
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	concurrency := cfg.DeleteConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	s := &S3{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      prefix,
		quota:       cfg.QuotaBytes,
		concurrency: concurrency,
	}
	if err := s.rescan(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// keyMetadata is the user metadata entry holding the encoded key.
const keyMetadata = "Respcache-Key"

func (s *S3) objectName(key string) string {
	return s.prefix + nameFor(key)
}

// rescan rebuilds size accounting from a bucket listing. Objects under the
// prefix that this medium did not write are skipped.
// Caller must hold s.mu or be the constructor.
func (s *S3) rescan(ctx context.Context) error {
	sizes := make(map[string]int64)
	var used int64

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return fmt.Errorf("failed to list bucket %q: %w", s.bucket, object.Err)
		}
		key, ok, err := s.keyOf(ctx, object.Key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		size := int64(len(key)) + object.Size
		sizes[key] = size
		used += size
	}

	s.sizes = sizes
	s.used = used
	return nil
}

// keyOf recovers the key stored in the metadata of the named object.
func (s *S3) keyOf(ctx context.Context, objectName string) (string, bool, error) {
	name := strings.TrimPrefix(objectName, s.prefix)
	if !isName(name) {
		return "", false, nil
	}

	info, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if errors.Is(translate(objectName, err), ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to stat %q: %w", objectName, err)
	}

	for k, v := range info.UserMetadata {
		if !strings.EqualFold(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"), keyMetadata) {
			continue
		}
		key, ok := decodeKey(v)
		if ok && nameFor(key) == name {
			return key, true, nil
		}
	}
	return "", false, nil
}

// Get downloads the object for key.
func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(key, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(key, err)
	}
	return data, nil
}

// Set uploads value for key if it fits in the quota.
func (s *S3) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := entrySize(key, value)
	used := s.used - s.sizes[key] + size
	if !fits(used, s.quota) {
		return ErrQuotaExceeded
	}

	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(key), bytes.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: map[string]string{keyMetadata: encodeKey(key)},
		})
	if err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}

	s.sizes[key] = size
	s.used = used
	return nil
}

// Delete removes the object for key. S3 deletes are idempotent.
func (s *S3) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.RemoveObject(ctx, s.bucket, s.objectName(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}

	s.used -= s.sizes[key]
	delete(s.sizes, key)
	return nil
}

// Keys lists the stored keys and resynchronizes quota accounting.
func (s *S3) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rescan(ctx); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.sizes))
	for k := range s.sizes {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear removes every object the medium wrote under the prefix.
func (s *S3) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rescan(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for key := range s.sizes {
		name := s.objectName(key)
		g.Go(func() error {
			if err := s.client.RemoveObject(gctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
				return fmt.Errorf("failed to remove %q: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.sizes = make(map[string]int64)
	s.used = 0
	return nil
}

// Used returns the number of bytes currently charged against the quota.
func (s *S3) Used() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// translate maps MinIO errors onto medium errors.
func translate(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	}
	return fmt.Errorf("failed to get %q: %w", key, err)
}
