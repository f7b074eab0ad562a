package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"burstline/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigShowCommand(ctx),
		newConfigPathCommand(ctx),
	)
	return cmd
}

// initTarget resolves the --path flag, defaulting to the per-user location.
func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		return config.ExpandPath(flag)
	}
	return config.DefaultConfigPath()
}

func newConfigInitCommand() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(path)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			_, statErr := os.Stat(target)
			switch {
			case statErr == nil && !force:
				return fmt.Errorf("%s already exists; pass --force to replace it", target)
			case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
				return fmt.Errorf("check config path: %w", statErr)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Set tools.face_detector and tools.analyzer to enable face detection and session analysis.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Where to write the file (default: user config directory)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults and overrides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, cfg)
			}
			encoded, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			header := "# loaded from " + ctx.configPath
			if !ctx.configExists {
				header = "# " + ctx.configPath + " not found; showing defaults"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s", header, encoded)
			return err
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"path": ctx.configPath, "exists": ctx.configExists})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ctx.configPath)
			return nil
		},
	}
}
