package task

import (
	"fmt"
	"time"

	"github.com/podushkina/schedmon/internal/workflow"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
)

// IsTerminal reports whether no further transitions can follow s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// Failed reports whether s is one of the unsuccessful terminal states.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusTimeout
}

type Result struct {
	Images  []string       `json:"images,omitempty"`
	Videos  []string       `json:"videos,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Logs    []any          `json:"logs,omitempty"`
}

// MediaCount is the number of produced images and videos.
func (r *Result) MediaCount() int {
	if r == nil {
		return 0
	}
	return len(r.Images) + len(r.Videos)
}

// Record is the locally tracked view of one scheduler task.
type Record struct {
	ID          string            `json:"id"`
	Prompt      string            `json:"prompt"`
	Status      Status            `json:"status"`
	Result      *Result           `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	WorkerID    string            `json:"workerId,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
	CreatedAt   *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time        `json:"updatedAt,omitempty"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	StartTime   *time.Time        `json:"startTime,omitempty"`
	EndTime     *time.Time        `json:"endTime,omitempty"`
	Workflow    workflow.Workflow `json:"workflow,omitempty"`
}

// NewPending builds the record inserted right after a successful submission.
func NewPending(id, prompt string, now time.Time) Record {
	return Record{
		ID:        id,
		Prompt:    prompt,
		Status:    StatusPending,
		StartTime: &now,
	}
}

// Merge overlays next on r. The local StartTime always survives, and an
// empty prompt in next does not erase a known one.
func (r Record) Merge(next Record) Record {
	merged := next
	if r.StartTime != nil {
		start := *r.StartTime
		merged.StartTime = &start
	}
	if merged.Prompt == "" {
		merged.Prompt = r.Prompt
	}
	if merged.ID == "" {
		merged.ID = r.ID
	}
	return merged
}

// Duration renders how long the task ran: remote start/complete first, then
// the local monitoring window.
func (r Record) Duration() string {
	if r.StartedAt != nil && r.CompletedAt != nil {
		return fmt.Sprintf("%.2fs", r.CompletedAt.Sub(*r.StartedAt).Seconds())
	}
	if r.StartTime != nil && r.EndTime != nil {
		return fmt.Sprintf("%.2fs", r.EndTime.Sub(*r.StartTime).Seconds())
	}
	return "In progress"
}

// FormatTime renders an optional timestamp for display.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.Local().Format(time.DateTime)
}
