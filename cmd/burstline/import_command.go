package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"burstline/internal/catalog"
	"burstline/internal/queue"
)

var importExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

type importFile struct {
	path    string
	name    string
	modTime time.Time
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var burstID string
	var source string
	var sessionNumber int
	var hidden bool

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Ingest a directory of images as one session and queue attach jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := scanImportDir(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(burstID) == "" {
				burstID = uuid.NewString()
			}

			return ctx.withApp(cmd, func(runCtx context.Context, a *app) error {
				session, err := a.catalog.CreateSession(runCtx, buildNewSession(files, burstID, source, sessionNumber, !hidden))
				if err != nil {
					return err
				}
				photos, err := a.catalog.ListPhotos(runCtx, session.ID)
				if err != nil {
					return err
				}
				queued, err := enqueueAttach(runCtx, a.queue, photos)
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{
						"session_id": session.ID,
						"burst_id":   session.BurstID,
						"photos":     len(photos),
						"queued":     queued,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d photos into session #%d (%s)\n", len(photos), session.ID, session.BurstID)
				fmt.Fprintf(out, "Queued %d attach jobs\n", queued)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&burstID, "burst-id", "", "Burst id for the new session (default: random UUID)")
	cmd.Flags().StringVar(&source, "source", "camera", "Capture source label")
	cmd.Flags().IntVar(&sessionNumber, "session-number", 1, "Session number within the day")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Create the session hidden")
	return cmd
}

// scanImportDir lists supported images in dir ordered by modification time,
// then name.
func scanImportDir(dir string) ([]importFile, error) {
	abs, err := filepath.Abs(strings.TrimSpace(dir))
	if err != nil {
		return nil, fmt.Errorf("resolve import directory: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read import directory: %w", err)
	}

	var files []importFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := importExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, importFile{
			path:    filepath.Join(abs, entry.Name()),
			name:    entry.Name(),
			modTime: info.ModTime().UTC(),
		})
	}
	if len(files) == 0 {
		return nil, errors.New("no .jpg, .jpeg or .png files found")
	}

	slices.SortFunc(files, func(a, b importFile) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return files, nil
}

func buildNewSession(files []importFile, burstID, source string, number int, visible bool) catalog.NewSession {
	photos := make([]catalog.NewPhoto, 0, len(files))
	for _, file := range files {
		taken := file.modTime
		photos = append(photos, catalog.NewPhoto{
			Filename: file.name,
			RawPath:  file.path,
			TakenAt:  &taken,
		})
	}
	start := files[0].modTime
	end := files[len(files)-1].modTime
	return catalog.NewSession{
		BurstID:       burstID,
		SessionNumber: number,
		SessionDate:   start.Format("2006-01-02"),
		StartedAt:     &start,
		EndedAt:       &end,
		Source:        source,
		Visible:       visible,
		Photos:        photos,
	}
}

func enqueueAttach(ctx context.Context, store *queue.Store, photos []*catalog.Photo) (int, error) {
	for i, photo := range photos {
		if _, err := store.Enqueue(ctx, queue.AttachTask{PhotoID: photo.ID}); err != nil {
			return i, fmt.Errorf("queue attach for photo %d: %w", photo.ID, err)
		}
	}
	return len(photos), nil
}
