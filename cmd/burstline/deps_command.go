package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"burstline/internal/assets"
	"burstline/internal/config"
	"burstline/internal/deps"
	"burstline/internal/logging"
	"burstline/internal/pipeline"
	"burstline/internal/preflight"
	"burstline/internal/queue"
	"burstline/internal/stage"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "External tool and environment checks",
	}

	depsCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check external tools, directories and ntfy reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			results := preflight.RunAll(cmd.Context(), cfg)
			stages := stageHealth(cmd.Context(), cfg)

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, map[string]any{"tools": statuses, "checks": results, "stages": stages}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					state := "ok"
					switch {
					case !status.Available && status.Optional:
						state = "optional, missing"
					case !status.Available:
						state = "MISSING"
					}
					detail := status.Detail
					if detail == "" {
						detail = status.Version
					}
					rows = append(rows, []string{status.Name, status.Command, state, detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Tool", "Command", "State", "Detail"}, rows))

				rows = rows[:0]
				for _, result := range results {
					state := "ok"
					if !result.Passed {
						state = "FAILED"
					}
					rows = append(rows, []string{result.Name, state, result.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, rows))

				if len(stages) > 0 {
					rows = rows[:0]
					for _, health := range stages {
						rows = append(rows, []string{stage.Label(health.Name), health.State(), health.Detail})
					}
					fmt.Fprintln(out, renderTable([]string{"Stage", "State", "Detail"}, rows))
				}
			}

			missing := deps.Blocking(statuses)
			failed := preflight.Failed(results)
			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("%d required tools missing, %d checks failed", len(missing), len(failed))
			}
			return nil
		},
	})

	return depsCmd
}

// stageHealth reports each handler's readiness in pipeline order. Nothing is
// reported when the pipeline cannot be built, which the tool table already
// explains.
func stageHealth(ctx context.Context, cfg *config.Config) []stage.Health {
	logger := logging.NewNop()
	p, err := pipeline.FromConfig(cfg, nil, assets.NewStore(cfg, logger), nil, logger)
	if err != nil {
		return nil
	}
	handlers := p.Handlers()
	out := make([]stage.Health, 0, len(handlers))
	for _, kind := range queue.AllKinds {
		if handler, ok := handlers[kind]; ok {
			out = append(out, handler.HealthCheck(ctx))
		}
	}
	return out
}
