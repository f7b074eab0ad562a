package preflight

import (
	"context"
	"strings"

	"burstline/internal/config"
)

// MinAssetFreeBytes is the free space the asset directory needs for new
// originals and variants.
const MinAssetFreeBytes = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks, plus the ntfy check when a topic
// is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Asset directory", cfg.Paths.AssetDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDiskSpace("Asset storage", cfg.Paths.AssetDir, MinAssetFreeBytes),
	}

	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		results = append(results, CheckNtfy(ctx, topic))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
