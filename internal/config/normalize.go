package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeAssets()
	c.normalizeTools()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetDir) == "" {
		c.Paths.AssetDir = defaultAssetDir
	}
	if c.Paths.AssetDir, err = ExpandPath(c.Paths.AssetDir); err != nil {
		return fmt.Errorf("paths.asset_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.AssetBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.AssetBaseURL), "/")
	if c.Paths.AssetBaseURL == "" {
		c.Paths.AssetBaseURL = defaultAssetBaseURL
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	if value, ok := os.LookupEnv("BURSTLINE_DATABASE_DRIVER"); ok && strings.TrimSpace(value) != "" {
		c.Database.Driver = value
	}
	if value, ok := os.LookupEnv("BURSTLINE_DATABASE_DSN"); ok && strings.TrimSpace(value) != "" {
		c.Database.DSN = value
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case "", "sqlite3":
		c.Database.Driver = DriverSQLite
	case "postgresql", "pgx":
		c.Database.Driver = DriverPostgres
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.Driver == DriverSQLite && c.Database.DSN != "" && !strings.HasPrefix(c.Database.DSN, "file:") && c.Database.DSN != ":memory:" {
		expanded, err := ExpandPath(c.Database.DSN)
		if err != nil {
			return fmt.Errorf("database.dsn: %w", err)
		}
		c.Database.DSN = expanded
	}
	return nil
}

func (c *Config) normalizeAssets() {
	defaults := Default().Assets
	if len(c.Assets.Variants) == 0 {
		c.Assets.Variants = defaults.Variants
	}
	for name, variant := range c.Assets.Variants {
		variant.Mode = strings.ToLower(strings.TrimSpace(variant.Mode))
		if variant.Mode == "" {
			variant.Mode = defaultVariantModeFit
		}
		if variant.Quality <= 0 || variant.Quality > 100 {
			variant.Quality = defaultJPEGQuality
		}
		c.Assets.Variants[name] = variant
	}
	if len(c.Assets.DefaultVariants) == 0 {
		c.Assets.DefaultVariants = defaults.DefaultVariants
	}
	names := make([]string, 0, len(c.Assets.DefaultVariants))
	seen := make(map[string]struct{}, len(c.Assets.DefaultVariants))
	for _, name := range c.Assets.DefaultVariants {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		names = append(names, normalized)
	}
	c.Assets.DefaultVariants = names
	if len(c.Assets.FaceCropSizes) == 0 {
		c.Assets.FaceCropSizes = defaults.FaceCropSizes
	}
	if c.Assets.PortraitPadding <= 0 {
		c.Assets.PortraitPadding = defaultPortraitPadding
	}
}

func (c *Config) normalizeTools() {
	c.Tools.Exiftool = strings.TrimSpace(c.Tools.Exiftool)
	if c.Tools.Exiftool == "" {
		c.Tools.Exiftool = defaultExiftool
	}
	c.Tools.FaceDetector = strings.TrimSpace(c.Tools.FaceDetector)
	c.Tools.Analyzer = strings.TrimSpace(c.Tools.Analyzer)
	if c.Tools.TimeoutSeconds <= 0 {
		c.Tools.TimeoutSeconds = defaultToolTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Lanes == nil {
		c.Workflow.Lanes = Default().Workflow.Lanes
	}
	for _, lane := range []string{LaneAttachments, LaneFaceDetection, LaneDefault} {
		if c.Workflow.Lanes[lane] <= 0 {
			c.Workflow.Lanes[lane] = 1
		}
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("BURSTLINE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
