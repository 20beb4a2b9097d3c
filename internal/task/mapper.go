package task

import (
	"bytes"
	"time"

	"github.com/podushkina/schedmon/internal/workflow"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// FromAPI converts a scheduler task into a Record. It never fails: fields
// that cannot be interpreted are left empty.
func FromAPI(api APITask, now time.Time) Record {
	rec := Record{
		ID:          api.ID,
		Prompt:      api.Prompt,
		Status:      api.Status,
		Result:      api.Result,
		Error:       api.Error,
		WorkerID:    api.WorkerID,
		CreatedAt:   parseTime(api.CreatedAt),
		UpdatedAt:   parseTime(api.UpdatedAt),
		StartedAt:   parseTime(api.StartedAt),
		CompletedAt: parseTime(api.CompletedAt),
	}
	if api.Priority != nil {
		rec.Priority = *api.Priority
	}
	if api.Timeout != nil {
		rec.Timeout = *api.Timeout
	}

	if hasWorkflow(api.Workflow) {
		wf, err := workflow.Parse(api.Workflow)
		if err == nil {
			rec.Workflow = wf
		}
		if rec.Prompt == "" {
			if err != nil {
				rec.Prompt = workflow.PlaceholderPrompt
			} else {
				rec.Prompt = workflow.ExtractPrompt(wf)
			}
		}
	}

	if rec.CreatedAt != nil {
		start := *rec.CreatedAt
		rec.StartTime = &start
	} else {
		start := now
		rec.StartTime = &start
	}
	if rec.CompletedAt != nil {
		end := *rec.CompletedAt
		rec.EndTime = &end
	}
	return rec
}

func hasWorkflow(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte(`""`))
}

func parseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
