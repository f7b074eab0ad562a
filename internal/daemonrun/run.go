// Package daemonrun builds the burstline daemon process: logging, preflight,
// storage and the processing pipeline, then blocks until a signal arrives.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"burstline/internal/assets"
	"burstline/internal/catalog"
	"burstline/internal/config"
	"burstline/internal/daemon"
	"burstline/internal/database"
	"burstline/internal/deps"
	"burstline/internal/logging"
	"burstline/internal/notifications"
	"burstline/internal/pipeline"
	"burstline/internal/preflight"
	"burstline/internal/queue"
	"burstline/internal/workflow"
)

const (
	currentLogName = "burstline.log"
	pidFileName    = "burstline.pid"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the burstline daemon runtime loop and returns after SIGINT,
// SIGTERM or cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, unix.SIGINT, unix.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("burstline-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldCorrelationID, uuid.NewString()))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", currentLogName, err)
	}

	if err := logDependencySnapshot(signalCtx, logger, cfg); err != nil {
		return err
	}
	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	db, err := database.Open(signalCtx, cfg)
	if err != nil {
		logger.Error("open database", logging.Error(err))
		return err
	}
	defer db.Close()

	cat := catalog.New(db, catalog.WithLogger(logger))
	store := queue.NewStoreFromConfig(db, cfg)
	assetStore := assets.NewStore(cfg, logger)
	notifier := notifications.NewService(cfg)

	stages, err := pipeline.FromConfig(cfg, cat, assetStore, store, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	workflowManager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	workflowManager.ConfigureStages(stages.Handlers())

	d, err := daemon.New(cfg, store, logger, workflowManager, notifier)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the lock file and database access"),
			logging.String(logging.FieldImpact, "no jobs will be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("burstline daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, currentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logDependencySnapshot logs every external tool and fails when a required
// one is missing.
func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		key := strings.ReplaceAll(strings.ToLower(status.Name), " ", "_")
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	missing := deps.Blocking(statuses)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, status := range missing {
		names = append(names, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	logging.ErrorWithContext(logger, "required dependencies missing", "dependency_missing",
		logging.Strings("missing", names),
		logging.String(logging.FieldErrorHint, "install the tool or set its path under [tools]"),
	)
	return fmt.Errorf("required dependencies missing: %s", strings.Join(names, ", "))
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs touching this resource may fail"),
		)
	}
}
