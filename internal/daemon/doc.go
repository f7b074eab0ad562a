// Package daemon coordinates the long-running burstline process.
//
// It wires configuration, the job store and the workflow manager into a
// single lifecycle with flock-based locking to prevent two daemons from
// claiming jobs out of the same database. On start the daemon requeues jobs a
// previous process left running, then launches the lane workers and
// announces itself through the notification service.
//
// Keep orchestration logic here: stage handlers live in internal/pipeline and
// the worker loops in internal/workflow.
package daemon
