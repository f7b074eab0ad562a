package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"burstline/internal/catalog"
	"burstline/internal/config"
	"burstline/internal/database"
	"burstline/internal/logging"
	"burstline/internal/notifications"
	"burstline/internal/queue"
	"burstline/internal/services"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// app bundles the stores a command works against. It lives for one command.
type app struct {
	cfg      *config.Config
	db       *database.DB
	catalog  *catalog.Catalog
	queue    *queue.Store
	notifier notifications.Service
	logger   *slog.Logger
}

// withApp opens the database for the duration of fn. Every invocation gets
// its own request id so jobs it enqueues can be traced back to it.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := services.WithRequestID(cmd.Context(), uuid.NewString())
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, &app{
		cfg:      cfg,
		db:       db,
		catalog:  catalog.New(db, catalog.WithLogger(logger)),
		queue:    queue.NewStoreFromConfig(db, cfg),
		notifier: notifications.NewService(cfg),
		logger:   logger,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
