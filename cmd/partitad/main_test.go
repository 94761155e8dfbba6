package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireLockRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partitad.lock")

	_, release, err := acquireLock(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	if _, _, err := acquireLock(path); err == nil {
		t.Fatal("expected second acquire to fail while lock is held")
	}
}

func TestAcquireLockAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partitad.lock")

	_, release, err := acquireLock(path)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	release()

	_, release, err = acquireLock(path)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	release()
}

func TestPruneLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, age time.Duration) {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("log"), 0o644); err != nil {
			t.Fatal(err)
		}
		stamp := time.Now().Add(-age)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatal(err)
		}
	}

	write("partitad.log", 90*24*time.Hour)
	write("rotated.2026-05-01.log", 90*24*time.Hour)
	write("recent.log", time.Hour)
	write("notes.txt", 90*24*time.Hour)

	if removed := pruneLogs(dir, 30); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	for _, name := range []string{"partitad.log", "recent.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s should survive pruning: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "rotated.2026-05-01.log")); !os.IsNotExist(err) {
		t.Error("expired rotated log should be removed")
	}
}

func TestPruneLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.log")
	if err := os.WriteFile(path, []byte("log"), 0o644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-365 * 24 * time.Hour)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	if removed := pruneLogs(dir, 0); removed != 0 {
		t.Fatalf("removed = %d, want 0 when retention disabled", removed)
	}
}
