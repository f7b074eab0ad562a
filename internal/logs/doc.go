// Package logs reads the daemon log file for the "burstline logs" command:
// the last N lines, optionally narrowed to one job, photo or session, and an
// optional follow mode that polls for appended lines.
package logs
