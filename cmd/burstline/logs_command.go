package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"burstline/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log, optionally narrowed to one job, photo or session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, "burstline.log")
			out := cmd.OutOrStdout()
			return logs.Tail(cmd.Context(), path, logs.TailOptions{
				Lines:  lines,
				Follow: follow,
				Filter: filter,
			}, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().Int64Var(&filter.JobID, "job", 0, "Only lines for this job id")
	cmd.Flags().Int64Var(&filter.PhotoID, "photo", 0, "Only lines for this photo id")
	cmd.Flags().Int64Var(&filter.SessionID, "session", 0, "Only lines for this session id")
	return cmd
}
