package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"burstline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The database is a sqlite file under the temp data directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.AssetDir = filepath.Join(base, "assets")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Driver = config.DriverSQLite
	cfgVal.Database.DSN = filepath.Join(base, "data", "burstline.db")
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1
	cfgVal.Retry.InitialBackoffSeconds = 1
	cfgVal.Retry.MaxBackoffSeconds = 4
	cfgVal.Tools.TimeoutSeconds = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTools points the external tool settings at explicit executables.
func WithTools(exiftool, faceDetector, analyzer string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.Exiftool = exiftool
		b.cfg.Tools.FaceDetector = faceDetector
		b.cfg.Tools.Analyzer = analyzer
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, exiftool is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"exiftool"}
		}
		for _, name := range names {
			WriteScript(b.t, filepath.Join(b.baseDir, "bin", name), "exit 0\n")
		}
		prependPath(b.t, filepath.Join(b.baseDir, "bin"))
	}
}

// WriteScript writes an executable shell script with the given body.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}

func prependPath(t testing.TB, dir string) {
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
