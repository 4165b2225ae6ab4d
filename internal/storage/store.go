// Package storage abstracts the "put object by key and bytes" capability
// of the destination object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net"

	"gocloud.dev/gcerrors"
)

// ObjectStore writes document bodies to storage under computed keys.
type ObjectStore interface {
	// Put writes body to the given key, overwriting any existing object.
	Put(ctx context.Context, key string, body []byte) error

	// Probe verifies the store is reachable and writable enough to start a
	// run. Called once before any batch is dispatched.
	Probe(ctx context.Context) error

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Backend string `yaml:"backend"` // "local" | "gcs" | "s3"

	// Local filesystem
	LocalDir string `yaml:"local_dir"`

	// S3 (also works for B2, R2, MinIO)
	Endpoint string `yaml:"endpoint"` // custom endpoint for B2/MinIO/R2
	Region   string `yaml:"region"`
}

// NewObjectStore creates a storage backend based on configuration.
// bucket is the destination bucket name (ignored by the local backend).
func NewObjectStore(cfg Config, bucket string) (ObjectStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local_dir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir)
	case "gcs":
		if bucket == "" {
			return nil, fmt.Errorf("bucket required for gcs backend")
		}
		return NewGCSStore(bucket)
	case "s3", "":
		if bucket == "" {
			return nil, fmt.Errorf("bucket required for s3 backend")
		}
		return NewS3Store(bucket, cfg.Endpoint, cfg.Region)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// IsRetryable reports whether a Put failure is worth retrying. Throttling,
// timeouts, and transient server errors are; permission and precondition
// failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch gcerrors.Code(err) {
	case gcerrors.ResourceExhausted, gcerrors.DeadlineExceeded, gcerrors.Internal:
		return true
	default:
		return false
	}
}
