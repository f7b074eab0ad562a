package pipeline

import (
	"context"
	"errors"
	"fmt"

	"burstline/internal/assets"
	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/stage"
)

type portraitHandler struct {
	p *Pipeline
}

func (h *portraitHandler) Kind() queue.Kind     { return queue.KindPortrait }
func (h *portraitHandler) Policy() stage.Policy { return stage.BestEffort }

// Execute stores the portrait rectangle around the largest face and renders
// every configured face crop size.
func (h *portraitHandler) Execute(ctx context.Context, job *queue.Job) error {
	task, err := stage.DecodeTask[queue.PortraitTask](job)
	if err != nil {
		return err
	}
	logger := h.p.stageLogger(ctx)

	photo, err := h.p.catalog.GetPhoto(ctx, task.PhotoID)
	if err != nil {
		return err
	}
	if !assets.HasFaces(photo) {
		logger.Debug("no faces on photo; portrait skipped", logging.String(logging.FieldEventType, "portrait_skipped"))
		return nil
	}
	if photo.PortraitCrop == nil {
		if rect, ok := assets.PortraitRect(photo.FaceData, h.p.cfg.Assets.PortraitPadding); ok {
			if err := h.p.catalog.SetPortraitCrop(ctx, photo.ID, &rect); err != nil {
				return err
			}
			photo.PortraitCrop = &rect
		}
	}

	var errs []error
	rendered := 0
	for _, size := range h.p.assets.FaceCropSizes() {
		if _, err := h.p.assets.FaceCrop(ctx, photo, size); err != nil {
			errs = append(errs, fmt.Errorf("face crop %dpx: %w", size, err))
			continue
		}
		rendered++
	}
	logger.Info("portrait crops ready",
		logging.String(logging.FieldEventType, "portrait_complete"),
		logging.Int("rendered", rendered),
	)
	return errors.Join(errs...)
}

func (h *portraitHandler) HealthCheck(context.Context) stage.Health {
	if h.p.assets == nil {
		return stage.Unhealthy("portrait", "asset store unavailable")
	}
	return stage.Healthy("portrait")
}
