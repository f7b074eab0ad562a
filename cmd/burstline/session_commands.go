package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"burstline/internal/catalog"
	"burstline/internal/logging"
	"burstline/internal/notifications"
	"burstline/internal/queue"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and reorganize photo sessions",
	}

	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionMergeCommand(ctx))
	sessionCmd.AddCommand(newSessionSplitCommand(ctx))
	sessionCmd.AddCommand(newSessionCheckCommand(ctx))
	sessionCmd.AddCommand(newSessionHeroCommand(ctx))
	sessionCmd.AddCommand(newSessionAnalyzeCommand(ctx))

	return sessionCmd
}

type sessionJSON struct {
	ID            int64  `json:"id"`
	BurstID       string `json:"burst_id"`
	SessionNumber int    `json:"session_number"`
	SessionDate   string `json:"session_date"`
	PhotoCount    int    `json:"photo_count"`
	Visible       bool   `json:"visible"`
	HeroPhotoID   *int64 `json:"hero_photo_id,omitempty"`
	StartedAt     string `json:"started_at,omitempty"`
	EndedAt       string `json:"ended_at,omitempty"`
	Analyzed      bool   `json:"analyzed"`
}

func toSessionJSON(s *catalog.Session) sessionJSON {
	out := sessionJSON{
		ID:            s.ID,
		BurstID:       s.BurstID,
		SessionNumber: s.SessionNumber,
		SessionDate:   s.SessionDate,
		PhotoCount:    s.PhotoCount,
		Visible:       s.Visible,
		HeroPhotoID:   s.HeroPhotoID,
		Analyzed:      s.GenderAnalyzedAt != nil,
	}
	if s.StartedAt != nil {
		out.StartedAt = s.StartedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if s.EndedAt != nil {
		out.EndedAt = s.EndedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return out
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var date string
	var visibleOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				sessions, err := a.catalog.ListSessions(runCtx, catalog.SessionFilter{Date: date, VisibleOnly: visibleOnly, Limit: limit})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					items := make([]sessionJSON, 0, len(sessions))
					for _, s := range sessions {
						items = append(items, toSessionJSON(s))
					}
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions found")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						strconv.FormatInt(s.ID, 10),
						s.BurstID,
						s.SessionDate,
						strconv.Itoa(s.SessionNumber),
						strconv.Itoa(s.PhotoCount),
						yesNo(s.Visible),
						formatOptionalID(s.HeroPhotoID),
						formatTime(s.EndedAt),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Burst", "Date", "#", "Photos", "Visible", "Hero", "Ended"}, rows, 0, 3, 4, 6))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Only sessions on this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&visibleOnly, "visible", false, "Only visible sessions")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum sessions to list (0 for all)")
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session>",
		Short: "Show a session and its photos (id or burst id)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				session, err := resolveSession(runCtx, a.catalog, args[0])
				if err != nil {
					return err
				}
				photos, err := a.catalog.ListPhotos(runCtx, session.ID)
				if err != nil {
					return err
				}
				sittings, err := a.catalog.ListSittings(runCtx, session.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					items := make([]photoJSON, 0, len(photos))
					for _, p := range photos {
						items = append(items, toPhotoJSON(p))
					}
					return writeJSON(cmd, map[string]any{
						"session":  toSessionJSON(session),
						"photos":   items,
						"sittings": len(sittings),
					})
				}
				printSession(cmd.OutOrStdout(), session, photos, len(sittings))
				return nil
			})
		},
	}
}

func printSession(out io.Writer, s *catalog.Session, photos []*catalog.Photo, sittings int) {
	fmt.Fprintf(out, "Session #%d (%s)\n", s.ID, s.BurstID)
	fmt.Fprintf(out, "  Date:      %s (session %d)\n", s.SessionDate, s.SessionNumber)
	fmt.Fprintf(out, "  Started:   %s\n", formatTime(s.StartedAt))
	fmt.Fprintf(out, "  Ended:     %s\n", formatTime(s.EndedAt))
	fmt.Fprintf(out, "  Photos:    %d\n", s.PhotoCount)
	fmt.Fprintf(out, "  Visible:   %s\n", yesNo(s.Visible))
	fmt.Fprintf(out, "  Hero:      %s\n", formatOptionalID(s.HeroPhotoID))
	fmt.Fprintf(out, "  Sittings:  %d\n", sittings)
	fmt.Fprintf(out, "  Analyzed:  %s\n", formatTime(s.GenderAnalyzedAt))
	if len(photos) == 0 {
		return
	}
	rows := make([][]string, 0, len(photos))
	for _, p := range photos {
		faces := "-"
		if p.FaceData != nil {
			faces = strconv.Itoa(len(p.FaceData.Faces))
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Position),
			strconv.FormatInt(p.ID, 10),
			p.Filename,
			yesNo(p.Attached()),
			yesNo(p.HasExif()),
			faces,
			yesNo(p.Rejected),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Pos", "ID", "Filename", "Attached", "EXIF", "Faces", "Rejected"}, rows, 0, 1, 5))
}

func newSessionMergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <target> <source>",
		Short: "Move every photo of source into target and delete source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				target, err := resolveSession(runCtx, a.catalog, args[0])
				if err != nil {
					return err
				}
				source, err := resolveSession(runCtx, a.catalog, args[1])
				if err != nil {
					return err
				}
				result, err := a.catalog.Merge(runCtx, target.ID, source.ID)
				if err != nil {
					return err
				}
				publish(runCtx, a, notifications.EventSessionMerged, notifications.Payload{
					"source": source.BurstID,
					"target": target.BurstID,
					"moved":  result.Moved,
				})

				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"target_id":      result.TargetID,
						"source_id":      result.SourceID,
						"moved":          result.Moved,
						"photo_count":    result.PhotoCount,
						"sittings_moved": result.SittingsMoved,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Merged session #%d into #%d: %d photos moved, %d total\n",
					result.SourceID, result.TargetID, result.Moved, result.PhotoCount)
				return nil
			})
		},
	}
}

func newSessionSplitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "split <session> <photo-id>",
		Short: "Move the photo and everything after it into a new session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			photoID, err := parseID(args[1], "photo")
			if err != nil {
				return err
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				original, err := resolveSession(runCtx, a.catalog, args[0])
				if err != nil {
					return err
				}
				created, err := a.catalog.Split(runCtx, original.ID, photoID)
				if err != nil {
					return err
				}
				publish(runCtx, a, notifications.EventSessionSplit, notifications.Payload{
					"source":  original.BurstID,
					"created": created.BurstID,
					"moved":   created.PhotoCount,
				})

				if ctx.jsonOutput() {
					return writeJSON(cmd, toSessionJSON(created))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Split session #%d: %d photos moved to #%d (%s)\n",
					original.ID, created.PhotoCount, created.ID, created.BurstID)
				return nil
			})
		},
	}
}

func newSessionCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <session>...",
		Short: "Verify photo counts and position contiguity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				broken := 0
				for _, arg := range args {
					session, err := resolveSession(runCtx, a.catalog, arg)
					if err != nil {
						return err
					}
					report, err := a.catalog.CheckInvariants(runCtx, session.ID)
					if err != nil {
						return err
					}
					if report.OK() {
						fmt.Fprintf(out, "Session #%d (%s): ok, %d photos\n", report.SessionID, report.BurstID, report.Owned)
						continue
					}
					broken++
					fmt.Fprintf(out, "Session #%d (%s): %d problems\n", report.SessionID, report.BurstID, len(report.Problems))
					for _, problem := range report.Problems {
						fmt.Fprintf(out, "  - %s\n", problem)
					}
				}
				if broken > 0 {
					return fmt.Errorf("%d of %d sessions failed the check", broken, len(args))
				}
				return nil
			})
		},
	}
}

func newSessionHeroCommand(ctx *commandContext) *cobra.Command {
	var clearHero bool

	cmd := &cobra.Command{
		Use:   "hero <session> [photo-id]",
		Short: "Set or clear the session's hero photo",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var photoID *int64
			switch {
			case clearHero && len(args) == 2:
				return errors.New("pass a photo id or --clear, not both")
			case !clearHero && len(args) == 1:
				return errors.New("photo id is required unless --clear is set")
			case len(args) == 2:
				id, err := parseID(args[1], "photo")
				if err != nil {
					return err
				}
				photoID = &id
			}
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				session, err := resolveSession(runCtx, a.catalog, args[0])
				if err != nil {
					return err
				}
				if err := a.catalog.SetHeroPhoto(runCtx, session.ID, photoID); err != nil {
					return err
				}
				if photoID == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared hero photo of session #%d\n", session.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Session #%d hero photo set to %d\n", session.ID, *photoID)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearHero, "clear", false, "Remove the hero photo")
	return cmd
}

func newSessionAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <session>...",
		Short: "Queue session analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				for _, arg := range args {
					session, err := resolveSession(runCtx, a.catalog, arg)
					if err != nil {
						return err
					}
					job, err := a.queue.Enqueue(runCtx, queue.SessionAnalysisTask{SessionID: session.ID})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued analysis job #%d for session #%d\n", job.ID, session.ID)
				}
				return nil
			})
		},
	}
}

// publish sends a mutation notification. Delivery failures never fail the
// command because the mutation already committed.
func publish(ctx context.Context, a *app, event notifications.Event, payload notifications.Payload) {
	if err := a.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(a.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy topic and network connectivity"),
		)
	}
}
