// Package services defines shared utilities consumed by the catalog, the
// processing stage handlers and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job, photo and session IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures as
//     retryable or terminal for the job runner.
//   - A Details helper that turns wrapped errors into loggable fields.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
