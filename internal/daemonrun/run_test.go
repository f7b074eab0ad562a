package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"burstline/internal/daemon"
	"burstline/internal/testsupport"
)

func TestRunFailsWhenExiftoolMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTools("clearly-not-present-exiftool", "", ""))

	err := Run(context.Background(), cfg, Options{LogLevel: "error"})
	if err == nil || !strings.Contains(err.Error(), "ExifTool") {
		t.Fatalf("expected missing exiftool error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.LogDir, pidFileName)); !os.IsNotExist(statErr) {
		t.Fatalf("expected no pid file, stat err %v", statErr)
	}
}

func TestRunStartsDaemonAndStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("exiftool"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{LogLevel: "error"})
	}()

	pidPath := filepath.Join(cfg.Paths.LogDir, pidFileName)
	lockPath := filepath.Join(cfg.Paths.LogDir, daemon.LockFileName)
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, pidErr := os.Stat(pidPath)
		_, lockErr := os.Stat(lockPath)
		if pidErr == nil && lockErr == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon did not start (pid: %v, lock: %v)", pidErr, lockErr)
		}
		time.Sleep(20 * time.Millisecond)
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "burstline-1.log")
	second := filepath.Join(dir, "burstline-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, currentLogName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "burstline-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}
