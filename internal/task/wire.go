package task

import "encoding/json"

// APITask is a task as the scheduler returns it.
type APITask struct {
	ID          string          `json:"id"`
	Prompt      string          `json:"prompt,omitempty"`
	Status      Status          `json:"status"`
	Result      *Result         `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	WorkerID    string          `json:"worker_id,omitempty"`
	Priority    *int            `json:"priority,omitempty"`
	Timeout     *int            `json:"timeout,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
	StartedAt   string          `json:"started_at,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Workflow    json.RawMessage `json:"workflow,omitempty"`
}

type SubmissionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type TasksResponse struct {
	Tasks []APITask `json:"tasks"`
}

type HealthResponse struct {
	OnlineWorkers int `json:"online_workers"`
	TotalWorkers  int `json:"total_workers"`
}

type StatsResponse struct {
	QueueLength int `json:"queue_length"`
	TotalTasks  int `json:"total_tasks"`
}

// SystemInfo is the display summary of scheduler capacity.
type SystemInfo struct {
	WorkerCount string `json:"workerCount"`
	QueueLength string `json:"queueLength"`
	TotalTasks  string `json:"totalTasks"`
}

// UnknownSystemInfo is shown before the first successful refresh.
func UnknownSystemInfo() SystemInfo {
	return SystemInfo{WorkerCount: "-", QueueLength: "-", TotalTasks: "-"}
}
