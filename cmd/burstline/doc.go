// Package main hosts the burstline CLI entrypoint and command graph.
//
// The Cobra-based command tree covers session inspection and mutation (merge,
// split, hero selection), photo import and synchronous processing, job queue
// maintenance, dependency checks and the daemon itself. Commands open the
// configured database directly; the daemon and the CLI may run side by side
// because every queue transition is a single conditional UPDATE.
//
// Keep this package lean: domain logic lives in internal/catalog,
// internal/queue and internal/pipeline, and commands here only parse
// arguments and render results.
package main
