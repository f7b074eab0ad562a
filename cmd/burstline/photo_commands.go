package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"burstline/internal/assets"
	"burstline/internal/catalog"
	"burstline/internal/pipeline"
	"burstline/internal/queue"
	"burstline/internal/stage"
	"burstline/internal/stageexec"
)

func newPhotoCommand(ctx *commandContext) *cobra.Command {
	photoCmd := &cobra.Command{
		Use:   "photo",
		Short: "Inspect and process individual photos",
	}

	photoCmd.AddCommand(newPhotoShowCommand(ctx))
	photoCmd.AddCommand(newPhotoProcessCommand(ctx))
	photoCmd.AddCommand(newPhotoRejectCommand(ctx))

	return photoCmd
}

type photoJSON struct {
	ID        int64          `json:"id"`
	SessionID int64          `json:"session_id"`
	Position  int            `json:"position"`
	Filename  string         `json:"filename"`
	RawPath   string         `json:"raw_path"`
	Rejected  bool           `json:"rejected"`
	AssetKey  string         `json:"asset_key,omitempty"`
	HasExif   bool           `json:"has_exif"`
	Faces     *int           `json:"faces,omitempty"`
	Portrait  *catalog.Rect  `json:"portrait_crop,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func toPhotoJSON(p *catalog.Photo) photoJSON {
	out := photoJSON{
		ID:        p.ID,
		SessionID: p.SessionID,
		Position:  p.Position,
		Filename:  p.Filename,
		RawPath:   p.RawPath,
		Rejected:  p.Rejected,
		AssetKey:  p.AssetKey,
		HasExif:   p.HasExif(),
		Portrait:  p.PortraitCrop,
		Metadata:  p.Metadata,
	}
	if p.FaceData != nil {
		n := len(p.FaceData.Faces)
		out.Faces = &n
	}
	return out
}

func newPhotoShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <photo-id>",
		Short: "Show a photo's processing state and jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "photo")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				photo, err := a.catalog.GetPhoto(runCtx, id)
				if err != nil {
					return err
				}
				jobs, err := a.queue.List(runCtx, queue.Filter{PhotoID: id})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, toPhotoJSON(photo))
				}
				printPhoto(cmd.OutOrStdout(), photo)
				if len(jobs) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderJobs(jobs))
				}
				return nil
			})
		},
	}
}

func printPhoto(out io.Writer, p *catalog.Photo) {
	fmt.Fprintf(out, "Photo %d (%s)\n", p.ID, p.Filename)
	fmt.Fprintf(out, "  Session:   #%d position %d\n", p.SessionID, p.Position)
	fmt.Fprintf(out, "  Raw path:  %s\n", p.RawPath)
	fmt.Fprintf(out, "  Taken:     %s\n", formatTime(p.TakenAt))
	fmt.Fprintf(out, "  Rejected:  %s\n", yesNo(p.Rejected))
	asset := "-"
	if p.Attached() {
		asset = p.AssetKey
	}
	fmt.Fprintf(out, "  Original:  %s\n", asset)
	fmt.Fprintf(out, "  EXIF:      %s\n", yesNo(p.HasExif()))
	if p.FaceData != nil {
		fmt.Fprintf(out, "  Faces:     %d (detected %s)\n", len(p.FaceData.Faces), formatTime(p.FaceDetectedAt))
	} else {
		fmt.Fprintln(out, "  Faces:     not detected")
	}
	if p.PortraitCrop != nil {
		r := p.PortraitCrop
		fmt.Fprintf(out, "  Portrait:  %dx%d at (%d,%d)\n", r.Width, r.Height, r.X, r.Y)
	}
	if len(p.Metadata) > 0 {
		keys := make([]string, 0, len(p.Metadata))
		for key := range p.Metadata {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		fmt.Fprintf(out, "  Metadata:  %s\n", strings.Join(keys, ", "))
	}
}

// processableKinds are the per-photo stages "photo process --stage" accepts.
var processableKinds = []queue.Kind{queue.KindAttach, queue.KindVariants, queue.KindExif, queue.KindFaces, queue.KindPortrait}

func photoTask(kind queue.Kind, photoID int64) (queue.Task, error) {
	switch kind {
	case queue.KindAttach:
		return queue.AttachTask{PhotoID: photoID}, nil
	case queue.KindVariants:
		return queue.VariantsTask{PhotoID: photoID}, nil
	case queue.KindExif:
		return queue.ExifTask{PhotoID: photoID}, nil
	case queue.KindFaces:
		return queue.FaceTask{PhotoID: photoID}, nil
	case queue.KindPortrait:
		return queue.PortraitTask{PhotoID: photoID}, nil
	}
	return nil, fmt.Errorf("unsupported stage %q", kind)
}

func newPhotoProcessCommand(ctx *commandContext) *cobra.Command {
	var stages []string

	cmd := &cobra.Command{
		Use:   "process <photo-id>",
		Short: "Run the photo's pipeline stages in the foreground",
		Long: "Queues the requested stages (attach by default) and runs them, plus any\n" +
			"follow-up jobs they schedule, without waiting for the daemon. Each job\n" +
			"runs at most once per invocation; retries stay queued for the daemon.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "photo")
			if err != nil {
				return err
			}
			kinds := []queue.Kind{queue.KindAttach}
			if len(stages) > 0 {
				kinds = kinds[:0]
				for _, name := range stages {
					kind := queue.Kind(strings.TrimSpace(name))
					if !slices.Contains(processableKinds, kind) {
						return fmt.Errorf("unsupported stage %q", name)
					}
					kinds = append(kinds, kind)
				}
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				if _, err := a.catalog.GetPhoto(runCtx, id); err != nil {
					return err
				}
				p, err := pipeline.FromConfig(a.cfg, a.catalog, assets.NewStore(a.cfg, a.logger), a.queue, a.logger)
				if err != nil {
					return err
				}
				for _, kind := range kinds {
					task, err := photoTask(kind, id)
					if err != nil {
						return err
					}
					if _, err := a.queue.Enqueue(runCtx, task); err != nil {
						return err
					}
				}
				results, err := processPhotoJobs(runCtx, a, p.Handlers(), id)
				if err != nil {
					return err
				}
				return printProcessResults(cmd, results, ctx.jsonOutput())
			})
		},
	}

	cmd.Flags().StringSliceVar(&stages, "stage", nil, "Stages to queue first (attach, variants, exif, faces, portrait)")
	return cmd
}

type processResult struct {
	job    *queue.Job
	result stageexec.Result
}

// processPhotoJobs drains the photo's queued jobs oldest first, including
// follow-ups scheduled along the way.
func processPhotoJobs(ctx context.Context, a *app, handlers map[queue.Kind]stage.Handler, photoID int64) ([]processResult, error) {
	seen := make(map[int64]bool)
	var results []processResult
	for {
		queued, err := a.queue.List(ctx, queue.Filter{Statuses: []queue.Status{queue.StatusQueued}, PhotoID: photoID})
		if err != nil {
			return results, err
		}
		var next *queue.Job
		for i := len(queued) - 1; i >= 0; i-- {
			if !seen[queued[i].ID] {
				next = queued[i]
				break
			}
		}
		if next == nil {
			return results, nil
		}
		seen[next.ID] = true

		job, err := a.queue.Claim(ctx, next.ID)
		if err != nil {
			return results, err
		}
		if job == nil {
			continue
		}
		result, err := stageexec.Run(ctx, stageexec.Options{
			Logger:   a.logger,
			Store:    a.queue,
			Notifier: a.notifier,
			Handler:  handlers[job.Kind],
			Job:      job,
		})
		if err != nil {
			return results, err
		}
		results = append(results, processResult{job: job, result: result})
	}
}

func printProcessResults(cmd *cobra.Command, results []processResult, jsonOut bool) error {
	failed := 0
	rows := make([][]string, 0, len(results))
	items := make([]map[string]any, 0, len(results))
	for _, r := range results {
		errText := ""
		if r.result.Err != nil {
			errText = r.result.Err.Error()
		}
		if r.result.Status != queue.StatusSucceeded {
			failed++
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.job.ID, 10),
			stage.Label(string(r.job.Kind)),
			string(r.result.Status),
			r.result.Duration.Round(time.Millisecond).String(),
			truncate(errText, 60),
		})
		items = append(items, map[string]any{
			"job_id": r.job.ID,
			"kind":   r.job.Kind,
			"status": r.result.Status,
			"error":  errText,
		})
	}

	if jsonOut {
		if err := writeJSON(cmd, items); err != nil {
			return err
		}
	} else if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to process")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Job", "Stage", "Status", "Took", "Error"}, rows, 0, 3))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs did not succeed", failed, len(results))
	}
	return nil
}

func newPhotoRejectCommand(ctx *commandContext) *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "reject <photo-id>...",
		Short: "Mark photos rejected (or restore them with --undo)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "photo")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				for _, id := range ids {
					if err := a.catalog.SetRejected(runCtx, id, !undo); err != nil {
						return err
					}
					if undo {
						fmt.Fprintf(cmd.OutOrStdout(), "Photo %d restored\n", id)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Photo %d rejected\n", id)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "Clear the rejected flag instead")
	return cmd
}
