package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"burstline/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(out, "ntfy topic not configured")
				return nil
			}
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
