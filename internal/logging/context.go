package logging

import (
	"context"
	"log/slog"

	"burstline/internal/services"
)

// WithContext returns logger annotated with the job, photo, session, stage,
// lane and request identifiers stored on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var attrs []Attr
	if id, ok := services.JobIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldJobID, id))
	}
	if id, ok := services.PhotoIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldPhotoID, id))
	}
	if id, ok := services.SessionIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldSessionID, id))
	}
	if name, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStage, name))
	}
	if lane, ok := services.LaneFromContext(ctx); ok {
		attrs = append(attrs, String(FieldLane, lane))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, rid))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}
