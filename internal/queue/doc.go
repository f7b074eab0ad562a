// Package queue persists processing jobs for the photo pipeline.
//
// Each job carries a typed Task (attach, variants, exif, faces, portrait,
// session_analysis) serialized as JSON, targets a photo or a session, and
// belongs to the lane its kind maps to. Delivery is at-least-once: a job that
// was claimed and never completed is reclaimed once its heartbeat goes stale,
// so stage handlers must be idempotent.
//
// Enqueue collapses duplicates: while a job of the same kind and target is
// still queued, a second enqueue returns the existing job (variant lists are
// merged). Failed attempts are rescheduled with capped exponential backoff
// until the attempt budget is spent, after which the job rests in the failed
// state until an operator retries it.
package queue
