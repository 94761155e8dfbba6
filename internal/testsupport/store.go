package testsupport

import (
	"path/filepath"
	"testing"

	"partita/internal/objectstore"
	"partita/internal/store"
)

// MustOpenStore opens a metadata store in a temp directory and registers
// cleanup.
func MustOpenStore(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.OpenPath(filepath.Join(t.TempDir(), "partita.db"))
	if err != nil {
		t.Fatalf("store.OpenPath: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustOpenObjects opens a filesystem object store rooted in a temp directory.
func MustOpenObjects(t testing.TB) objectstore.Store {
	t.Helper()

	objects, err := objectstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("objectstore.NewFS: %v", err)
	}
	return objects
}
