package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"partita/internal/branch"
	"partita/internal/config"
	"partita/internal/convert"
	"partita/internal/ingest"
	"partita/internal/logging"
	"partita/internal/notifications"
	"partita/internal/objectstore"
	"partita/internal/progress"
	"partita/internal/store"
	"partita/internal/vcs"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtime bundles the wired pipeline services a command needs. Callers must
// Close it to release the metadata store.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	objects  objectstore.Store
	vcs      *vcs.Manager
	engine   *convert.Engine
	hub      *progress.Hub
	notifier notifications.Service
	ingest   *ingest.Service
}

func (c *commandContext) openRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "partita.log")},
	})
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	objects, err := objectstore.New(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine := convert.NewEngine(cfg, objects, convert.NewExecutor(), logger)
	manager := vcs.NewManager(cfg, vcs.NewExecutor(), logger)
	hub := progress.NewHub()
	notifier := notifications.NewService(cfg)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		objects:  objects,
		vcs:      manager,
		engine:   engine,
		hub:      hub,
		notifier: notifier,
		ingest:   ingest.NewService(cfg, st, objects, engine, manager, notifier, hub, logger),
	}, nil
}

func (r *runtime) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// addActorFlags registers the caller-identity flags shared by gated commands.
func addActorFlags(cmd *cobra.Command, userID *string, admin *bool) {
	cmd.Flags().StringVar(userID, "user", "", "Acting user id")
	cmd.Flags().BoolVar(admin, "admin", false, "Act with administrative privileges")
}

func actorFrom(userID string, admin bool) branch.Actor {
	return branch.Actor{UserID: strings.TrimSpace(userID), Admin: admin}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
