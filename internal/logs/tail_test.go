package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"burstline/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "burstline.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func collect(t *testing.T, path string, opts logs.TailOptions) []string {
	t.Helper()
	var lines []string
	if err := logs.Tail(context.Background(), path, opts, func(line string) { lines = append(lines, line) }); err != nil {
		t.Fatalf("Tail: %v", err)
	}
	return lines
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines := collect(t, path, logs.TailOptions{Lines: 2})
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}

func TestTailFiltersConsoleAndJSONLines(t *testing.T) {
	path := writeLog(t,
		"2024-06-01T10:00:00Z INFO workflow: stage completed job_id=4 photo_id=7\n"+
			"2024-06-01T10:00:01Z INFO workflow: stage completed job_id=42 photo_id=7\n"+
			`{"msg":"stage failed","job_id":4,"photo_id":8}`+"\n"+
			"2024-06-01T10:00:02Z INFO daemon: burstline daemon started\n")

	lines := collect(t, path, logs.TailOptions{Lines: 10, Filter: logs.Filter{JobID: 4}})
	if len(lines) != 2 {
		t.Fatalf("expected job 4 lines only, got %#v", lines)
	}

	lines = collect(t, path, logs.TailOptions{Lines: 10, Filter: logs.Filter{JobID: 4, PhotoID: 8}})
	if len(lines) != 1 || lines[0][0] != '{' {
		t.Fatalf("expected the JSON line, got %#v", lines)
	}
}

func TestTailMissingFileIsEmpty(t *testing.T) {
	lines := collect(t, filepath.Join(t.TempDir(), "missing.log"), logs.TailOptions{Lines: 5})
	if len(lines) != 0 {
		t.Fatalf("expected no lines, got %#v", lines)
	}
}

func TestTailFollowPicksUpAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var (
		mu    sync.Mutex
		lines []string
	)
	got := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- logs.Tail(ctx, path, logs.TailOptions{Lines: 1, Follow: true, Poll: 20 * time.Millisecond}, func(line string) {
			mu.Lock()
			lines = append(lines, line)
			n := len(lines)
			mu.Unlock()
			if n == 2 {
				got <- struct{}{}
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not deliver appended line")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Tail returned %v after cancel", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if lines[0] != "start" || lines[1] != "later" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}
