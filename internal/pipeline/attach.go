package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"burstline/internal/fileutil"
	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/stage"
)

type attachHandler struct {
	p *Pipeline
}

func (h *attachHandler) Kind() queue.Kind     { return queue.KindAttach }
func (h *attachHandler) Policy() stage.Policy { return stage.Required }

// Execute stores the photo's raw file as its original and schedules the
// follow-up stages. Follow-ups are enqueued before the attachment is recorded
// so a retry after a partial failure still schedules them; queue
// de-duplication absorbs the repeats.
func (h *attachHandler) Execute(ctx context.Context, job *queue.Job) error {
	task, err := stage.DecodeTask[queue.AttachTask](job)
	if err != nil {
		return err
	}
	logger := h.p.stageLogger(ctx)

	photo, err := h.p.catalog.GetPhoto(ctx, task.PhotoID)
	if err != nil {
		return err
	}
	if photo.Attached() {
		logger.Info("photo already attached; skipping",
			logging.String(logging.FieldEventType, "attach_skipped"),
			logging.String("asset_key", photo.AssetKey),
		)
		return nil
	}
	raw := strings.TrimSpace(photo.RawPath)
	if raw == "" || !fileutil.Exists(raw) {
		logging.WarnWithContext(logger, "raw file missing; attach skipped", "attach_source_missing",
			logging.String("raw_path", raw),
			logging.String(logging.FieldImpact, "photo has no original until it is re-imported"),
		)
		return nil
	}

	file, err := os.Open(raw)
	if err != nil {
		return services.Wrap(services.ErrTransient, "attach", "open raw file", raw, err)
	}
	defer file.Close()

	filename := photo.Filename
	if strings.TrimSpace(filename) == "" {
		filename = filepath.Base(raw)
	}
	ref, err := h.p.assets.Attach(ctx, photo.ID, file, filename, "")
	if err != nil {
		return err
	}
	if err := h.p.enqueueFollowUps(ctx, photo.ID); err != nil {
		return err
	}
	if _, err := h.p.catalog.SetAttachment(ctx, photo.ID, ref.Key, ref.ContentType); err != nil {
		return err
	}
	logger.Info("original attached",
		logging.String(logging.FieldEventType, "attach_complete"),
		logging.String("asset_key", ref.Key),
		logging.Int64("bytes", ref.Size),
		logging.String("sha256", ref.Checksum),
	)
	return nil
}

func (h *attachHandler) HealthCheck(context.Context) stage.Health {
	const name = "attach"
	if h.p.assets == nil {
		return stage.Unhealthy(name, "asset store unavailable")
	}
	if strings.TrimSpace(h.p.cfg.Paths.AssetDir) == "" {
		return stage.Unhealthy(name, "asset directory not configured")
	}
	return stage.Healthy(name)
}

// enqueueFollowUps schedules variants, EXIF extraction and, when a detector
// is configured, face detection for a freshly attached photo.
func (p *Pipeline) enqueueFollowUps(ctx context.Context, photoID int64) error {
	tasks := []queue.Task{queue.VariantsTask{PhotoID: photoID}}
	if p.extractor != nil {
		tasks = append(tasks, queue.ExifTask{PhotoID: photoID})
	}
	if p.detector != nil {
		tasks = append(tasks, queue.FaceTask{PhotoID: photoID})
	}
	for _, task := range tasks {
		if _, err := p.queue.Enqueue(ctx, task); err != nil {
			return services.Wrap(services.ErrTransient, "attach", "enqueue "+string(task.Kind()), "schedule follow-up job", err)
		}
	}
	return nil
}
