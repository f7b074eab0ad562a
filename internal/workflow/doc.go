// Package workflow runs the job pipeline.
//
// The Manager starts a fixed pool of worker goroutines per queue lane
// (attachments, face_detection, default). Each worker claims the oldest due
// job of its lane, executes it through the registered stage handler via
// stageexec and keeps the job's heartbeat fresh while it runs. A reclaimer
// requeues running jobs whose heartbeat went stale, which covers workers that
// died mid-job. Retry scheduling, terminal failure alerts and best-effort
// handling live in stageexec so synchronous CLI runs behave the same way.
package workflow
