package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "burstline",
		Short:         "Photo session catalog and processing pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit JSON instead of tables")

	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newSessionCommand(ctx))
	rootCmd.AddCommand(newPhotoCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newDepsCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newNotifyCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))

	return rootCmd
}
