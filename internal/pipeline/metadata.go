package pipeline

import (
	"context"
	"errors"
	"time"

	"burstline/internal/catalog"
	"burstline/internal/exif"
	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/stage"
)

type exifHandler struct {
	p *Pipeline
}

func (h *exifHandler) Kind() queue.Kind     { return queue.KindExif }
func (h *exifHandler) Policy() stage.Policy { return stage.Required }

// Execute extracts and stores EXIF data unless the photo already has it.
// Output the extractor cannot make sense of is logged and the job succeeds.
func (h *exifHandler) Execute(ctx context.Context, job *queue.Job) error {
	task, err := stage.DecodeTask[queue.ExifTask](job)
	if err != nil {
		return err
	}
	logger := h.p.stageLogger(ctx)

	photo, err := h.p.catalog.GetPhoto(ctx, task.PhotoID)
	if err != nil {
		return err
	}
	if photo.HasExif() {
		logger.Debug("exif already extracted; skipping", logging.String(logging.FieldEventType, "exif_skipped"))
		return nil
	}
	if h.p.extractor == nil {
		return services.Wrap(services.ErrConfiguration, "exif", "extract", "no exif extractor configured", nil)
	}
	path, err := h.p.sourcePath(photo)
	if err != nil {
		return err
	}

	data, err := h.p.extractor.Extract(ctx, path)
	if errors.Is(err, exif.ErrNoData) {
		logging.WarnWithContext(logger, "no usable exif data", "exif_empty",
			logging.Error(err),
			logging.String(logging.FieldImpact, "photo keeps its import metadata"),
		)
		return nil
	}
	if err != nil {
		return err
	}

	var takenAt *time.Time
	if ts, ok := data.TakenAt(); ok {
		takenAt = &ts
	}
	applied, err := h.p.catalog.SetExif(ctx, photo.ID, data, data.Summary(), takenAt)
	if err != nil {
		return err
	}
	logger.Info("exif extracted",
		logging.String(logging.FieldEventType, "exif_complete"),
		logging.Int("categories", len(data)),
		logging.Bool("applied", applied),
	)
	return nil
}

func (h *exifHandler) HealthCheck(context.Context) stage.Health {
	if h.p.extractor == nil {
		return stage.Unhealthy("exif", "extractor not configured")
	}
	return binaryHealth("exif", h.p.cfg.Tools.Exiftool)
}

// orientation returns the EXIF orientation of photo. Photos whose EXIF has
// not been extracted yet are read directly; any failure means upright.
func (p *Pipeline) orientation(ctx context.Context, photo *catalog.Photo, path string) int {
	if photo.HasExif() {
		return exif.Data(photo.ExifData).Orientation()
	}
	if p.extractor == nil {
		return 1
	}
	data, err := p.extractor.Extract(ctx, path)
	if err != nil {
		p.stageLogger(ctx).Debug("orientation lookup failed; assuming upright", logging.Error(err))
		return 1
	}
	return data.Orientation()
}
