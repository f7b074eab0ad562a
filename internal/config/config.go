package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	AssetDir     string `toml:"asset_dir"`
	LogDir       string `toml:"log_dir"`
	AssetBaseURL string `toml:"asset_base_url"`
}

// Database selects the SQL backend holding sessions, photos and jobs.
type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `toml:"driver"`
	// DSN is a file path for sqlite or a connection URL for postgres.
	// Empty sqlite DSN resolves to <data_dir>/burstline.db.
	DSN string `toml:"dsn"`
}

// Variant describes one derived image size.
type Variant struct {
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
	Mode    string `toml:"mode"` // "fit" or "fill"
	Quality int    `toml:"quality"`
}

// Assets contains configuration for the image asset store.
type Assets struct {
	Variants        map[string]Variant `toml:"variants"`
	DefaultVariants []string           `toml:"default_variants"`
	FaceCropSizes   []int              `toml:"face_crop_sizes"`
	PortraitPadding float64            `toml:"portrait_padding"`
}

// Tools names the external metadata extractors and their limits.
type Tools struct {
	Exiftool       string `toml:"exiftool"`
	FaceDetector   string `toml:"face_detector"`
	Analyzer       string `toml:"analyzer"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains configuration for daemon timing and lane sizing.
type Workflow struct {
	QueuePollInterval  int            `toml:"queue_poll_interval"`
	ErrorRetryInterval int            `toml:"error_retry_interval"`
	HeartbeatInterval  int            `toml:"heartbeat_interval"`
	HeartbeatTimeout   int            `toml:"heartbeat_timeout"`
	Lanes              map[string]int `toml:"lanes"`
}

// Retry controls the capped exponential backoff applied to required stages.
type Retry struct {
	MaxAttempts           int `toml:"max_attempts"`
	InitialBackoffSeconds int `toml:"initial_backoff_seconds"`
	MaxBackoffSeconds     int `toml:"max_backoff_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobFailures    bool   `toml:"job_failures"`
	Mutations      bool   `toml:"mutations"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for burstline.
//
// Configuration sections by subsystem:
//   - Paths: data, asset and log directories
//   - Database: sqlite or postgres backend
//   - Assets: variant sizes and face crop settings
//   - Tools: exiftool, face detector and analyzer binaries
//   - Workflow: polling intervals, heartbeats, worker counts per lane
//   - Retry: attempt cap and backoff for required stages
//   - Notifications: ntfy alerts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Assets        Assets        `toml:"assets"`
	Tools         Tools         `toml:"tools"`
	Workflow      Workflow      `toml:"workflow"`
	Retry         Retry         `toml:"retry"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// projectConfigFile is looked up in the working directory when no per-user
// file exists.
const projectConfigFile = "burstline.toml"

// DefaultConfigPath is the per-user configuration file, expanded.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load reads, normalizes and validates the configuration. An empty path
// searches the per-user file and then burstline.toml in the working
// directory; when neither exists the defaults are used and the per-user path
// is returned with exists=false. A .env file in the working directory is read
// first so BURSTLINE_* overrides can live next to a project.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func locate(explicit string) (string, bool, error) {
	candidates := []string{explicit}
	if strings.TrimSpace(explicit) == "" {
		candidates = []string{defaultConfigPath, projectConfigFile}
	}
	var fallback string
	for _, candidate := range candidates {
		abs, err := ExpandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if fallback == "" {
			fallback = abs
		}
		info, err := os.Stat(abs)
		switch {
		case err == nil && !info.IsDir():
			return abs, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", false, fmt.Errorf("stat config %s: %w", abs, err)
		}
	}
	return fallback, false, nil
}

// decodeFile reports TOML syntax and type errors with their line and column.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.AssetDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabaseDSN returns the connection string for the configured driver.
func (c *Config) DatabaseDSN() string {
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn
	}
	if c.Database.Driver == DriverSQLite {
		return filepath.Join(c.Paths.DataDir, "burstline.db")
	}
	return ""
}

// VariantNames returns the variants generated after attachment, in configured order.
func (c *Config) VariantNames() []string {
	names := make([]string, 0, len(c.Assets.DefaultVariants))
	for _, name := range c.Assets.DefaultVariants {
		if _, ok := c.Assets.Variants[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// LaneWorkers returns the number of workers for a lane, never less than one.
func (c *Config) LaneWorkers(lane string) int {
	if n, ok := c.Workflow.Lanes[lane]; ok && n > 0 {
		return n
	}
	return 1
}

// ExpandPath resolves a leading "~" to the home directory and returns an
// absolute, cleaned path. Empty input stays empty.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path for %q: %w", path, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample file to path, creating parent
// directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
