package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"burstline/internal/config"
	"burstline/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("exiftool"))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeImportDir writes n JPEGs whose modification times increase with
// their index, so import order is deterministic.
func writeImportDir(t *testing.T, dir string, n int) {
	t.Helper()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := range n {
		path := testsupport.WriteJPEG(t, filepath.Join(dir, "IMG_"+string(rune('A'+i))+".jpg"), 120, 80)
		stamp := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
