package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"partita/internal/fileutil"
)

// FS is a filesystem-backed store rooted at one directory, with a
// subdirectory per bucket.
type FS struct {
	root string
}

// NewFS creates a filesystem store rooted at dir.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		return nil, errors.New("objectstore: root directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create root: %w", err)
	}
	return &FS{root: dir}, nil
}

// Put implements Store.
func (s *FS) Put(_ context.Context, bucket Bucket, key string, data []byte, contentType string) (Locator, error) {
	if err := validateKey(key); err != nil {
		return Locator{}, err
	}
	path := s.blobPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Locator{}, fmt.Errorf("objectstore: create key path: %w", err)
	}

	// Write-then-rename so a concurrent reader never sees a partial blob.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partita-put-*")
	if err != nil {
		return Locator{}, fmt.Errorf("objectstore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return Locator{}, fmt.Errorf("objectstore: write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return Locator{}, fmt.Errorf("objectstore: close blob: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return Locator{}, fmt.Errorf("objectstore: finalize blob: %w", err)
	}

	return Locator{
		Bucket:    bucket,
		Key:       key,
		SizeBytes: int64(len(data)),
		Checksum: Checksum{
			Algorithm: "sha256",
			HexDigest: fileutil.SHA256Hex(data),
		},
		ContentType:    contentType,
		LastModifiedAt: time.Now().UTC(),
	}, nil
}

// Get implements Store.
func (s *FS) Get(_ context.Context, bucket Bucket, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.blobPath(bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("objectstore: read blob: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (s *FS) Delete(_ context.Context, bucket Bucket, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.blobPath(bucket, key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("objectstore: delete blob: %w", err)
	}
	return nil
}

func (s *FS) blobPath(bucket Bucket, key string) string {
	return filepath.Join(s.root, string(bucket), filepath.FromSlash(key))
}
