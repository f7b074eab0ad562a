package preflight

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"burstline/internal/config"
	"burstline/internal/deps"
)

// CheckNtfy verifies that the ntfy server behind topicURL answers its
// health endpoint.
func CheckNtfy(ctx context.Context, topicURL string) Result {
	const name = "ntfy"

	parsed, err := url.Parse(strings.TrimSpace(topicURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{Name: name, Detail: "topic is not an absolute URL"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/v1/health"}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, health.String(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies that the filesystem holding path has at least
// minFree bytes available to unprivileged writers.
func CheckDiskSpace(name, path string, minFree uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%s free)", path, humanize.IBytes(free))
	if free < minFree {
		return Result{Name: name, Detail: detail + ", need " + humanize.IBytes(minFree)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external tools for the given config. Both the
// daemon and the CLI use this so the requirements list lives in one place.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "ExifTool",
			Command:     cfg.Tools.Exiftool,
			Description: "Required for EXIF extraction",
			VersionArgs: []string{"-ver"},
		},
		{
			Name:        "Face detector",
			Command:     cfg.Tools.FaceDetector,
			Description: "Enables face detection and portrait crops",
			Optional:    true,
		},
		{
			Name:        "Session analyzer",
			Command:     cfg.Tools.Analyzer,
			Description: "Enables session analysis",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}
