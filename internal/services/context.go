package services

import "context"

type ctxKey uint8

const (
	jobIDKey ctxKey = iota
	photoIDKey
	sessionIDKey
	stageKey
	laneKey
	requestIDKey
)

// Zero values are never stored, so a missing identifier and an unset one
// read the same.
func withValue[T comparable](ctx context.Context, key ctxKey, v T) context.Context {
	var zero T
	if v == zero {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOf[T comparable](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok && v != zero
}

// WithJobID tags ctx with the queue job being executed.
func WithJobID(ctx context.Context, id int64) context.Context {
	return withValue(ctx, jobIDKey, id)
}

func JobIDFromContext(ctx context.Context) (int64, bool) { return valueOf[int64](ctx, jobIDKey) }

// WithPhotoID tags ctx with the photo a job or command works on.
func WithPhotoID(ctx context.Context, id int64) context.Context {
	return withValue(ctx, photoIDKey, id)
}

func PhotoIDFromContext(ctx context.Context) (int64, bool) { return valueOf[int64](ctx, photoIDKey) }

// WithSessionID tags ctx with a photo session.
func WithSessionID(ctx context.Context, id int64) context.Context {
	return withValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) (int64, bool) {
	return valueOf[int64](ctx, sessionIDKey)
}

// WithStage records the job kind whose handler is running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return valueOf[string](ctx, stageKey) }

// WithLane records the worker lane executing the job.
func WithLane(ctx context.Context, lane string) context.Context {
	return withValue(ctx, laneKey, lane)
}

func LaneFromContext(ctx context.Context) (string, bool) { return valueOf[string](ctx, laneKey) }

// WithRequestID sets the correlation id shared by all log lines of one CLI
// invocation or daemon run.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueOf[string](ctx, requestIDKey)
}
