package stage

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"burstline/internal/queue"
	"burstline/internal/services"
)

var titleCaser = cases.Title(language.English)

// Label renders a kind or lane name for humans: "session_analysis" becomes
// "Session Analysis".
func Label(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return ""
	}
	return titleCaser.String(name)
}

// DecodeTask returns the job's typed payload. Undecodable payloads are
// validation failures so they are not retried.
func DecodeTask[T queue.Task](job *queue.Job) (T, error) {
	var zero T
	if job == nil {
		return zero, services.Wrap(services.ErrValidation, "stage", "decode task", "job is required", nil)
	}
	task, err := job.Task()
	if err != nil {
		return zero, services.Wrap(services.ErrValidation, string(job.Kind), "decode task",
			fmt.Sprintf("job %d has an invalid payload", job.ID), err)
	}
	typed, ok := task.(T)
	if !ok {
		return zero, services.Wrap(services.ErrValidation, string(job.Kind), "decode task",
			fmt.Sprintf("job %d carries %T", job.ID, task), nil)
	}
	return typed, nil
}
