// Command partitad runs the deferred PDF rendering worker as a daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"partita/internal/config"
	"partita/internal/convert"
	"partita/internal/logging"
	"partita/internal/objectstore"
	"partita/internal/pdfjob"
	"partita/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var configPath string
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if err := run(ctx, configPath); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("partitad: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "partitad.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock, release, err := acquireLock(lockPath(cfg))
	if err != nil {
		return err
	}
	defer release()

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	objects, err := objectstore.New(cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	engine := convert.NewEngine(cfg, objects, convert.NewExecutor(), logger)
	worker := pdfjob.NewWorker(cfg, st, objects, engine, logger)

	logger.Info("partitad started", "lock", lock.Path(), "store", st.Path())
	if removed := pruneLogs(cfg.Paths.LogDir, cfg.Logging.RetentionDays); removed > 0 {
		logger.Info("pruned expired log files", "count", removed)
	}
	err = worker.Run(ctx)
	logger.Info("partitad shutting down")
	return err
}

func lockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "partitad.lock")
}

// pruneLogs removes .log files in dir older than retentionDays. A
// non-positive retention disables pruning. The active partitad.log and
// partita.log are recreated on next write, so they are exempt.
func pruneLogs(dir string, retentionDays int) int {
	if retentionDays <= 0 {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		if entry.Name() == "partitad.log" || entry.Name() == "partita.log" {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, entry.Name())) == nil {
			removed++
		}
	}
	return removed
}

// acquireLock takes the single-instance daemon lock. The returned release
// function unlocks and must be called on shutdown.
func acquireLock(path string) (*flock.Flock, func(), error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, nil, errors.New("another partitad instance is already running")
	}
	return lock, func() { _ = lock.Unlock() }, nil
}
