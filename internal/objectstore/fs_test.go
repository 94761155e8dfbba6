package objectstore_test

import (
	"context"
	"errors"
	"testing"

	"partita/internal/fileutil"
	"partita/internal/objectstore"
)

func newFS(t *testing.T) *objectstore.FS {
	t.Helper()
	store, err := objectstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return store
}

func TestPutGetDelete(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()
	data := []byte("<score-partwise/>")

	loc, err := store.Put(ctx, objectstore.BucketRaw, "w1/s1/rev/upload.xml", data, "application/xml")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if loc.Bucket != objectstore.BucketRaw || loc.Key != "w1/s1/rev/upload.xml" {
		t.Fatalf("unexpected locator %+v", loc)
	}
	if loc.SizeBytes != int64(len(data)) {
		t.Fatalf("unexpected size %d", loc.SizeBytes)
	}
	if loc.Checksum.Algorithm != "sha256" || loc.Checksum.HexDigest != fileutil.SHA256Hex(data) {
		t.Fatalf("unexpected checksum %+v", loc.Checksum)
	}

	got, err := store.Get(ctx, objectstore.BucketRaw, loc.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	if err := store.Delete(ctx, objectstore.BucketRaw, loc.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, objectstore.BucketRaw, loc.Key); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetMissingBlob(t *testing.T) {
	store := newFS(t)
	if _, err := store.Get(context.Background(), objectstore.BucketDerivatives, "absent/blob.pdf"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestKeyValidation(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, objectstore.BucketRaw, "", nil, ""); !errors.Is(err, objectstore.ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	for _, key := range []string{"../escape", "a/../b", "a//b", `a\b`} {
		if _, err := store.Put(ctx, objectstore.BucketRaw, key, nil, ""); !errors.Is(err, objectstore.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestBucketsAreIsolated(t *testing.T) {
	store := newFS(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, objectstore.BucketRaw, "shared/key", []byte("raw"), "text/plain"); err != nil {
		t.Fatalf("Put raw: %v", err)
	}
	if _, err := store.Get(ctx, objectstore.BucketAux, "shared/key"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected bucket isolation, got %v", err)
	}
}
