package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required when database.driver is postgres (or set BURSTLINE_DATABASE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (expected sqlite or postgres)", c.Database.Driver)
	}
}

func (c *Config) validateAssets() error {
	names := make([]string, 0, len(c.Assets.Variants))
	for name := range c.Assets.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		variant := c.Assets.Variants[name]
		if strings.TrimSpace(name) == "" {
			return errors.New("assets.variants: variant name must not be empty")
		}
		if variant.Width <= 0 || variant.Height <= 0 {
			return fmt.Errorf("assets.variants.%s: width and height must be positive", name)
		}
		if variant.Mode != "fit" && variant.Mode != "fill" {
			return fmt.Errorf("assets.variants.%s.mode must be fit or fill, got %q", name, variant.Mode)
		}
	}
	for _, name := range c.Assets.DefaultVariants {
		if _, ok := c.Assets.Variants[name]; !ok {
			return fmt.Errorf("assets.default_variants references unknown variant %q", name)
		}
	}
	for _, size := range c.Assets.FaceCropSizes {
		if size <= 0 {
			return errors.New("assets.face_crop_sizes must contain positive sizes")
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"tools.timeout_seconds":         c.Tools.TimeoutSeconds,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	if c.Retry.InitialBackoffSeconds < 0 {
		return errors.New("retry.initial_backoff_seconds must not be negative")
	}
	if c.Retry.MaxBackoffSeconds < c.Retry.InitialBackoffSeconds {
		return errors.New("retry.max_backoff_seconds must be at least retry.initial_backoff_seconds")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
