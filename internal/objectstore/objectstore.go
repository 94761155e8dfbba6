package objectstore

import (
	"context"
	"fmt"
	"strings"

	"partita/internal/config"
)

// Store is the object store contract consumed by the pipeline.
type Store interface {
	// Put writes data under (bucket, key) and returns the blob's locator.
	Put(ctx context.Context, bucket Bucket, key string, data []byte, contentType string) (Locator, error)
	// Get returns the bytes stored under (bucket, key).
	// Returns ErrNotFound if the blob does not exist.
	Get(ctx context.Context, bucket Bucket, key string) ([]byte, error)
	// Delete removes the blob at (bucket, key). Returns ErrNotFound if the
	// blob does not exist.
	Delete(ctx context.Context, bucket Bucket, key string) error
}

// New builds the configured store backend.
func New(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendFS:
		return NewFS(cfg.Paths.DataDir)
	case config.StorageBackendAzure:
		return NewAzure(cfg.Storage.ConnectionString, cfg.Storage.Container)
	default:
		return nil, fmt.Errorf("objectstore: unsupported backend %q", cfg.Storage.Backend)
	}
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return ErrInvalidKey
		}
	}
	if strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	return nil
}
