// Package config loads a YAML configuration file and builds a ResponseCache
// from it.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmgilman/go/respcache/cache"
	"github.com/jmgilman/go/respcache/compress"
	"github.com/jmgilman/go/respcache/errors"
	"github.com/jmgilman/go/respcache/eviction"
)

// Medium types.
const (
	MediumMemory     = "memory"
	MediumFilesystem = "filesystem"
	MediumS3         = "s3"
)

// Config is the root of the configuration file.
type Config struct {
	Compression CompressionConfig `yaml:"compression"`
	Namespaces  NamespaceConfig   `yaml:"namespaces"`
	Medium      MediumConfig      `yaml:"medium"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Log         LogConfig         `yaml:"log"`
	// Coalesce makes concurrent misses for one URL share a fetch.
	Coalesce bool `yaml:"coalesce"`
}

// CompressionConfig controls payload compression.
type CompressionConfig struct {
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`
	// Codec is zstd or s2.
	Codec string `yaml:"codec"`
	// Workers bounds concurrent background compression. Zero selects
	// GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// NamespaceConfig holds the storage key prefixes.
type NamespaceConfig struct {
	Value   string `yaml:"value"`
	Recency string `yaml:"recency"`
}

// MediumConfig selects and configures the storage medium.
type MediumConfig struct {
	Type string `yaml:"type"`
	// QuotaBytes caps stored bytes. Zero means unbounded.
	QuotaBytes int64    `yaml:"quota_bytes"`
	Path       string   `yaml:"path"`
	S3         S3Config `yaml:"s3"`
}

// S3Config configures the S3 medium.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// FetchConfig configures origin requests.
type FetchConfig struct {
	Timeout time.Duration     `yaml:"timeout"`
	Retry   RetryConfig       `yaml:"retry"`
	Headers map[string]string `yaml:"headers"`
}

// RetryConfig configures transport retries. A zero MaxElapsed disables them.
type RetryConfig struct {
	MaxElapsed time.Duration `yaml:"max_elapsed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads and parses the file at path. Defaults are applied and the
// result validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithContext(
			errors.Wrap(err, errors.CodeInvalidConfig, "failed to read configuration"),
			"path", path,
		)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WithContext(err, "path", path)
	}
	return cfg, nil
}

// Parse decodes YAML configuration. Unknown fields are rejected. Defaults are
// applied and the result validated.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to parse configuration")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Compression.Enabled == nil {
		enabled := true
		c.Compression.Enabled = &enabled
	}
	if c.Compression.Codec == "" {
		c.Compression.Codec = compress.CodecZstd
	}
	if c.Namespaces.Value == "" {
		c.Namespaces.Value = cache.DefaultValuePrefix
	}
	if c.Namespaces.Recency == "" {
		c.Namespaces.Recency = cache.DefaultRecencyPrefix
	}
	if c.Medium.Type == "" {
		c.Medium.Type = MediumMemory
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// CompressionEnabled reports the effective compression setting.
func (c *Config) CompressionEnabled() bool {
	return c.Compression.Enabled == nil || *c.Compression.Enabled
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid configuration")
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := compress.CodecByName(c.Compression.Codec); err != nil {
		return err
	}
	if c.Compression.Workers < 0 {
		return fmt.Errorf("compression workers cannot be negative")
	}
	if err := eviction.ValidatePrefixes(c.Namespaces.Value, c.Namespaces.Recency); err != nil {
		return err
	}
	if c.Medium.QuotaBytes < 0 {
		return fmt.Errorf("medium quota cannot be negative")
	}

	switch c.Medium.Type {
	case MediumMemory:
	case MediumFilesystem:
		if c.Medium.Path == "" {
			return fmt.Errorf("filesystem medium requires a path")
		}
	case MediumS3:
		if c.Medium.S3.Bucket == "" {
			return fmt.Errorf("s3 medium requires a bucket")
		}
		if c.Medium.S3.Endpoint == "" {
			return fmt.Errorf("s3 medium requires an endpoint")
		}
	default:
		return fmt.Errorf("unknown medium type %q", c.Medium.Type)
	}

	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch timeout cannot be negative")
	}
	if c.Fetch.Retry.MaxElapsed < 0 {
		return fmt.Errorf("retry max_elapsed cannot be negative")
	}
	if _, err := cache.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
