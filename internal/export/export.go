// Package export writes a snapshot of the gallery and connection details to
// a JSON file.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/podushkina/schedmon/internal/task"
)

type Summary struct {
	TotalTasks       int `json:"totalTasks"`
	CompletedTasks   int `json:"completedTasks"`
	FailedTasks      int `json:"failedTasks"`
	TimeoutTasks     int `json:"timeoutTasks"`
	RunningTasks     int `json:"runningTasks"`
	PendingTasks     int `json:"pendingTasks"`
	TotalImages      int `json:"totalImages"`
	TotalVideos      int `json:"totalVideos"`
	SuccessfulImages int `json:"successfulImages"`
}

type Document struct {
	Timestamp    time.Time       `json:"timestamp"`
	SchedulerURL string          `json:"schedulerUrl"`
	SystemInfo   task.SystemInfo `json:"systemInfo"`
	Tasks        []task.Record   `json:"tasks"`
	Summary      Summary         `json:"summary"`
}

// Summarize counts records by status and media. Processing and running
// both count as running. SuccessfulImages counts completed tasks with at
// least one image.
func Summarize(records []task.Record) Summary {
	s := Summary{TotalTasks: len(records)}
	for _, r := range records {
		switch r.Status {
		case task.StatusCompleted:
			s.CompletedTasks++
			if r.Result != nil && len(r.Result.Images) > 0 {
				s.SuccessfulImages++
			}
		case task.StatusFailed:
			s.FailedTasks++
		case task.StatusTimeout:
			s.TimeoutTasks++
		case task.StatusRunning, task.StatusProcessing:
			s.RunningTasks++
		case task.StatusPending:
			s.PendingTasks++
		}
		if r.Result != nil {
			s.TotalImages += len(r.Result.Images)
			s.TotalVideos += len(r.Result.Videos)
		}
	}
	return s
}

// NewDocument builds a document stamped with now.
func NewDocument(schedulerURL string, info task.SystemInfo, records []task.Record, now time.Time) Document {
	if records == nil {
		records = []task.Record{}
	}
	return Document{
		Timestamp:    now.UTC(),
		SchedulerURL: schedulerURL,
		SystemInfo:   info,
		Tasks:        records,
		Summary:      Summarize(records),
	}
}

// FileName is scheduler-test-results-<UTC date>.json.
func FileName(now time.Time) string {
	return fmt.Sprintf("scheduler-test-results-%s.json", now.UTC().Format(time.DateOnly))
}

// Write stores doc under dir and returns the file path. A file from the same
// day is overwritten.
func Write(dir string, doc Document, now time.Time) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, FileName(now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
