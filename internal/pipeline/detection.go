package pipeline

import (
	"context"

	"burstline/internal/assets"
	"burstline/internal/catalog"
	"burstline/internal/faces"
	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/stage"
)

type facesHandler struct {
	p *Pipeline
}

func (h *facesHandler) Kind() queue.Kind     { return queue.KindFaces }
func (h *facesHandler) Policy() stage.Policy { return stage.Required }

// Execute runs the detector, maps its boxes into EXIF-oriented space and
// persists the result. An empty result is stored too so detection is not
// repeated. Detector failures propagate for retry.
func (h *facesHandler) Execute(ctx context.Context, job *queue.Job) error {
	task, err := stage.DecodeTask[queue.FaceTask](job)
	if err != nil {
		return err
	}
	logger := h.p.stageLogger(ctx)

	photo, err := h.p.catalog.GetPhoto(ctx, task.PhotoID)
	if err != nil {
		return err
	}
	if photo.FacesDetected() {
		logger.Debug("faces already detected; skipping", logging.String(logging.FieldEventType, "faces_skipped"))
		return nil
	}
	if h.p.detector == nil {
		return services.Wrap(services.ErrConfiguration, "faces", "detect", "no face detector configured", nil)
	}
	path, err := h.p.sourcePath(photo)
	if err != nil {
		return err
	}

	result, err := h.p.detector.Detect(ctx, path)
	if err != nil {
		return err
	}
	rawWidth, rawHeight, err := assets.Dimensions(path)
	if err != nil {
		logger.Debug("image header unreadable; using detector dimensions", logging.Error(err))
		rawWidth, rawHeight = result.ImageWidth, result.ImageHeight
	}
	orientation := h.p.orientation(ctx, photo, path)
	normalized := faces.Normalize(result, orientation, rawWidth, rawHeight)

	data := catalog.FaceData{
		ImageWidth:  normalized.ImageWidth,
		ImageHeight: normalized.ImageHeight,
		Faces:       toFaceBoxes(normalized.Faces),
		DetectedAt:  h.p.now(),
	}
	applied, err := h.p.catalog.SetFaces(ctx, photo.ID, data)
	if err != nil {
		return err
	}
	if !applied {
		logger.Debug("faces stored by a concurrent run; skipping", logging.String(logging.FieldEventType, "faces_skipped"))
		return nil
	}
	logger.Info("faces detected",
		logging.String(logging.FieldEventType, "faces_complete"),
		logging.Int("faces", len(data.Faces)),
		logging.Int("orientation", orientation),
	)

	if len(data.Faces) == 0 {
		return nil
	}
	if _, err := h.p.queue.Enqueue(ctx, queue.PortraitTask{PhotoID: photo.ID}); err != nil {
		return services.Wrap(services.ErrTransient, "faces", "enqueue portrait", "schedule portrait crop", err)
	}
	return nil
}

func (h *facesHandler) HealthCheck(context.Context) stage.Health {
	if h.p.detector == nil {
		return stage.Disabled("faces", "face detector not configured")
	}
	return binaryHealth("faces", h.p.cfg.Tools.FaceDetector)
}

func toFaceBoxes(boxes []faces.Box) []catalog.FaceBox {
	out := make([]catalog.FaceBox, 0, len(boxes))
	for _, box := range boxes {
		out = append(out, catalog.FaceBox{
			X:          box.X,
			Y:          box.Y,
			Width:      box.Width,
			Height:     box.Height,
			Confidence: box.Confidence,
		})
	}
	return out
}
