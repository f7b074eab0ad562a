package pipeline

import (
	"context"
	"slices"

	"burstline/internal/analysis"
	"burstline/internal/catalog"
	"burstline/internal/logging"
	"burstline/internal/queue"
	"burstline/internal/services"
	"burstline/internal/stage"
)

type analysisHandler struct {
	p *Pipeline
}

func (h *analysisHandler) Kind() queue.Kind     { return queue.KindSessionAnalysis }
func (h *analysisHandler) Policy() stage.Policy { return stage.BestEffort }

// Execute hands the session's hero and first photos to the analyzer and
// stores its JSON answer. Sessions analyzed before are skipped.
func (h *analysisHandler) Execute(ctx context.Context, job *queue.Job) error {
	task, err := stage.DecodeTask[queue.SessionAnalysisTask](job)
	if err != nil {
		return err
	}
	logger := h.p.stageLogger(ctx)

	if h.p.analyzer == nil {
		logger.Debug("analyzer not configured; skipping", logging.String(logging.FieldEventType, "analysis_skipped"))
		return nil
	}
	session, err := h.p.catalog.GetSession(ctx, task.SessionID)
	if err != nil {
		return err
	}
	if session.GenderAnalyzedAt != nil {
		logger.Debug("session already analyzed; skipping", logging.String(logging.FieldEventType, "analysis_skipped"))
		return nil
	}
	photos, err := h.p.catalog.ListPhotos(ctx, session.ID)
	if err != nil {
		return err
	}
	paths := h.p.analysisPaths(session, photos)
	if len(paths) == 0 {
		return services.Wrap(services.ErrNotFound, "analysis", "select photos", "session has no readable photos", nil)
	}

	result, err := h.p.analyzer.Analyze(ctx, paths)
	if err != nil {
		return err
	}
	if err := h.p.catalog.SetGenderAnalysis(ctx, session.ID, result, h.p.now()); err != nil {
		return err
	}
	logger.Info("session analyzed",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Int("photos", len(paths)),
	)
	return nil
}

func (h *analysisHandler) HealthCheck(context.Context) stage.Health {
	if h.p.analyzer == nil {
		return stage.Disabled("session_analysis", "analyzer not configured")
	}
	return binaryHealth("session_analysis", h.p.cfg.Tools.Analyzer)
}

// analysisPaths lists the hero first, then non-rejected photos in position
// order, capped at analysis.MaxPhotos. Photos without a readable file are
// left out.
func (p *Pipeline) analysisPaths(session *catalog.Session, photos []*catalog.Photo) []string {
	ordered := make([]*catalog.Photo, 0, len(photos))
	if session.HeroPhotoID != nil {
		if i := slices.IndexFunc(photos, func(photo *catalog.Photo) bool { return photo.ID == *session.HeroPhotoID }); i >= 0 {
			ordered = append(ordered, photos[i])
		}
	}
	for _, photo := range photos {
		if photo.Rejected || (session.HeroPhotoID != nil && photo.ID == *session.HeroPhotoID) {
			continue
		}
		ordered = append(ordered, photo)
	}

	paths := make([]string, 0, analysis.MaxPhotos)
	for _, photo := range ordered {
		if len(paths) == analysis.MaxPhotos {
			break
		}
		path, err := p.sourcePath(photo)
		if err != nil {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}
