// Package stage defines the contract between the workflow manager and the
// pipeline stage handlers: one Handler per job kind, a Policy deciding
// whether failures are retried, and Health reports for `burstline deps
// check` and daemon startup.
package stage
