package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"burstline/internal/queue"
	"burstline/internal/stage"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueuePurgeCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per lane and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				stats, err := a.queue.Stats(runCtx)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}

				headers := []string{"Lane", "Workers"}
				for _, status := range queue.AllStatuses {
					headers = append(headers, stage.Label(string(status)))
				}
				rows := make([][]string, 0, len(queue.Lanes()))
				for _, lane := range queue.Lanes() {
					row := []string{stage.Label(lane), strconv.Itoa(a.cfg.LaneWorkers(lane))}
					for _, status := range queue.AllStatuses {
						row = append(row, strconv.Itoa(stats[lane][status]))
					}
					rows = append(rows, row)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 1, 2, 3, 4, 5))
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var lane string
	var kind string
	var photoID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.Filter{Lane: strings.TrimSpace(lane), PhotoID: photoID, Limit: limit}
			for _, value := range statuses {
				status, ok := queue.ParseStatus(strings.ToLower(strings.TrimSpace(value)))
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			if kind = strings.TrimSpace(kind); kind != "" {
				filter.Kind = queue.Kind(kind)
				if !filter.Kind.Valid() {
					return fmt.Errorf("unknown job kind %q", kind)
				}
			}

			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				jobs, err := a.queue.List(runCtx, filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderJobs(jobs))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (queued, running, succeeded, failed)")
	cmd.Flags().StringVar(&lane, "lane", "", "Filter by lane")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by job kind")
	cmd.Flags().Int64Var(&photoID, "photo", 0, "Filter by photo id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to list (0 for all)")
	return cmd
}

func renderJobs(jobs []*queue.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			stage.Label(string(job.Kind)),
			job.Lane,
			string(job.Status),
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			jobTarget(job),
			formatTime(&job.RunAt),
			truncate(job.LastError, 48),
		})
	}
	return renderTable([]string{"ID", "Kind", "Lane", "Status", "Attempts", "Target", "Run At", "Last Error"}, rows, 0, 4)
}

func jobTarget(job *queue.Job) string {
	switch {
	case job.PhotoID > 0:
		return fmt.Sprintf("photo %d", job.PhotoID)
	case job.SessionID > 0:
		return fmt.Sprintf("session %d", job.SessionID)
	}
	return "-"
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Requeue failed jobs (all failed jobs when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "job")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				count, err := a.queue.RetryFailed(runCtx, ids...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"requeued": count})
				}
				if count == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed jobs to retry")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed jobs\n", count)
				return nil
			})
		},
	}
}

func newQueuePurgeCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete succeeded jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				removed, err := a.queue.Purge(runCtx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d succeeded jobs\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Only purge jobs last updated before now minus this duration")
	return cmd
}
