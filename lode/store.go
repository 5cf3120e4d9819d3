package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// Storage backend names.
const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// StorageConfig selects and configures a storage backend.
type StorageConfig struct {
	// Backend is fs, memory or s3.
	Backend string
	// Path is the root directory (fs) or "bucket/prefix" (s3).
	Path string
	// Region is the AWS region (s3, optional).
	Region string
	// Endpoint is a custom S3 endpoint for S3-compatible providers (optional).
	Endpoint string
	// UsePathStyle forces path-style addressing (s3, optional).
	UsePathStyle bool
}

// Validate checks that the backend is known and its path is set.
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.Path == "" {
			return errors.New("storage path is required for fs backend")
		}
	case BackendS3:
		if bucket, _ := ParseS3Path(c.Path); bucket == "" {
			return errors.New("S3 bucket is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q (must be fs, memory or s3)", c.Backend)
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// NewStoreFactory returns a lode.StoreFactory for cfg. The memory backend
// hands out one shared store so payloads and reports see each other.
func NewStoreFactory(ctx context.Context, cfg StorageConfig) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		store := lode.NewMemory()
		return func() (lode.Store, error) { return store, nil }, nil
	case BackendS3:
		return newS3Factory(ctx, cfg)
	default:
		return lode.NewFSFactory(cfg.Path), nil
	}
}

// newS3Factory uses the AWS SDK default credential chain (env vars, shared
// config, IAM role).
func newS3Factory(ctx context.Context, cfg StorageConfig) (lode.StoreFactory, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("failed to load AWS config: %w", err), BackendS3)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	bucket, prefix := ParseS3Path(cfg.Path)
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: bucket,
			Prefix: prefix,
		})
	}, nil
}
