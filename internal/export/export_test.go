package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podushkina/schedmon/internal/task"
)

func sampleRecords() []task.Record {
	return []task.Record{
		{ID: "a", Status: task.StatusCompleted, Result: &task.Result{Images: []string{"1", "2"}}},
		{ID: "b", Status: task.StatusCompleted, Result: &task.Result{Videos: []string{"v"}}},
		{ID: "c", Status: task.StatusFailed, Error: "boom"},
		{ID: "d", Status: task.StatusTimeout},
		{ID: "e", Status: task.StatusRunning},
		{ID: "f", Status: task.StatusProcessing},
		{ID: "g", Status: task.StatusPending},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())

	assert.Equal(t, Summary{
		TotalTasks:       7,
		CompletedTasks:   2,
		FailedTasks:      1,
		TimeoutTasks:     1,
		RunningTasks:     2,
		PendingTasks:     1,
		TotalImages:      2,
		TotalVideos:      1,
		SuccessfulImages: 1,
	}, s)
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	info := task.SystemInfo{WorkerCount: "2/3", QueueLength: "4", TotalTasks: "17"}

	doc := NewDocument("https://sched.example", info, sampleRecords(), now)
	path, err := Write(dir, doc, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scheduler-test-results-2026-03-14.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "https://sched.example", got["schedulerUrl"])
	assert.Equal(t, "2026-03-14T23:30:00Z", got["timestamp"])
	assert.Equal(t, "2/3", got["systemInfo"].(map[string]any)["workerCount"])
	assert.Len(t, got["tasks"], 7)
	assert.EqualValues(t, 7, got["summary"].(map[string]any)["totalTasks"])
}

func TestNewDocument_EmptyGallery(t *testing.T) {
	doc := NewDocument("u", task.UnknownSystemInfo(), nil, time.Now())

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tasks":[]`)
	assert.Zero(t, doc.Summary.TotalTasks)
}
