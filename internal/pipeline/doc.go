// Package pipeline implements the photo processing stages executed by the
// workflow manager: attaching originals, rendering variants, extracting
// EXIF metadata, detecting faces, computing portrait crops and the optional
// session analysis.
//
// Every stage checks for already-applied state first so a job that runs
// twice, or a duplicate that slipped past queue de-duplication, is a no-op.
// Required stages return errors and rely on the queue's retry policy;
// best-effort stages (portrait, session analysis) have their errors logged
// by the runner and never fail the job.
package pipeline
