package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podushkina/schedmon/internal/export"
	"github.com/podushkina/schedmon/internal/task"
	"github.com/podushkina/schedmon/internal/testsupport"
)

// syncBuffer is written by the command and by monitor goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupEnv(t *testing.T) *testsupport.FakeScheduler {
	t.Helper()
	fake := testsupport.NewFakeScheduler(t)

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	t.Setenv("SCHEDMON_SCHEDULER_URL", fake.URL())
	t.Setenv("SCHEDMON_GENERATION_URL", fake.WebURL())
	t.Setenv("SCHEDMON_REGISTRY", "memory")
	t.Setenv("SCHEDMON_POLL_INITIAL_DELAY_MS", "1")
	t.Setenv("SCHEDMON_POLL_INTERVAL_MS", "1")
	t.Setenv("SCHEDMON_POLL_HTTP_RETRY_MS", "1")
	t.Setenv("SCHEDMON_POLL_NETWORK_RETRY_MS", "1")
	t.Setenv("SCHEDMON_NTFY_TOPIC", "")
	t.Setenv("LOG_LEVEL", "error")
	return fake
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	_, stdout, stderr, err := runWithContext(t, args...)
	return stdout, stderr, err
}

func runWithContext(t *testing.T, args ...string) (*commandContext, string, string, error) {
	t.Helper()
	var stdout, stderr syncBuffer
	cmdCtx := newCommandContext()
	cmd := newRootCommand(cmdCtx)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := execute(context.Background(), cmd, cmdCtx)
	return cmdCtx, stdout.String(), stderr.String(), err
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Media"}, [][]string{{"t1", "2"}, {"t2"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "t2")
	assert.True(t, strings.HasPrefix(out, "╭"))

	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Completed", statusLabel(task.StatusCompleted))
	assert.Equal(t, "Unknown", statusLabel(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ябло…", truncate("яблоко", 5))
}

func TestSubmitImage_WaitsForTerminalState(t *testing.T) {
	fake := setupEnv(t)
	fake.Script("t1",
		testsupport.Step{Task: task.APITask{Status: task.StatusRunning}},
		testsupport.Step{Task: task.APITask{
			Status: task.StatusCompleted,
			Result: &task.Result{Images: []string{"https://cdn.example/fox.png"}},
		}},
	)

	out, _, err := runCommand(t, "submit", "image", "a", "red", "fox")
	require.NoError(t, err)

	assert.Contains(t, out, "Submitted t1")
	assert.Contains(t, out, "Task submitted: t1")
	assert.Contains(t, out, "Task completed: t1")
	assert.Contains(t, out, "https://cdn.example/fox.png")
	require.Len(t, fake.Submissions(), 1)
}

func TestSubmitImage_FailedTaskIsAnError(t *testing.T) {
	fake := setupEnv(t)
	fake.Script("t1", testsupport.Step{Task: task.APITask{Status: task.StatusFailed, Error: "out of memory"}})

	out, _, err := runCommand(t, "submit", "image", "a red fox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	assert.Contains(t, out, "Task failed: t1")
	assert.Contains(t, out, "out of memory")
}

func TestSubmitImage_EmptyPrompt(t *testing.T) {
	fake := setupEnv(t)

	_, _, err := runCommand(t, "submit", "image", "   ")
	require.Error(t, err)
	assert.Empty(t, fake.Submissions())
}

func TestFailedCommandReleasesRegistry(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testsupport.FakeScheduler)
	}{
		{
			name:  "submission rejected",
			setup: func(f *testsupport.FakeScheduler) { f.SetSubmitStatus(500) },
		},
		{
			name: "task failed",
			setup: func(f *testsupport.FakeScheduler) {
				f.Script("t1", testsupport.Step{Task: task.APITask{Status: task.StatusFailed}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := setupEnv(t)
			tt.setup(fake)
			t.Setenv("SCHEDMON_REGISTRY", "sqlite")
			t.Setenv("SCHEDMON_SQLITE_PATH", filepath.Join(t.TempDir(), "tasks.db"))

			cmdCtx, _, _, err := runWithContext(t, "submit", "image", "a red fox")
			require.Error(t, err)
			require.NotNil(t, cmdCtx.app)

			_, err = cmdCtx.app.store.Len(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "closed")
		})
	}
}

func TestTasksList_ReloadsMemoryGallery(t *testing.T) {
	fake := setupEnv(t)
	fake.AddTask(task.APITask{ID: "old1", Status: task.StatusCompleted, CreatedAt: "2026-01-01T10:00:00Z"})
	fake.AddTask(task.APITask{ID: "old2", Status: task.StatusRunning, CreatedAt: "2026-01-02T10:00:00Z"})

	out, _, err := runCommand(t, "tasks", "list", "--json")
	require.NoError(t, err)

	var records []task.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "old2", records[0].ID)
	assert.Equal(t, "old1", records[1].ID)
}

func TestTasksList_BadSort(t *testing.T) {
	setupEnv(t)
	_, _, err := runCommand(t, "tasks", "list", "--sort-by", "priority")
	require.Error(t, err)
}

func TestTasksShow_FallsBackToScheduler(t *testing.T) {
	fake := setupEnv(t)
	fake.AddTask(task.APITask{ID: "remote1", Prompt: "a cat", Status: task.StatusCompleted})

	out, _, err := runCommand(t, "tasks", "show", "remote1", "--json")
	require.NoError(t, err)

	var rec task.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "a cat", rec.Prompt)
	assert.Equal(t, task.StatusCompleted, rec.Status)

	_, _, err = runCommand(t, "tasks", "show", "missing")
	require.Error(t, err)
}

func TestExport_WritesDocument(t *testing.T) {
	fake := setupEnv(t)
	fake.AddTask(task.APITask{ID: "old1", Status: task.StatusFailed})
	dir := t.TempDir()

	out, _, err := runCommand(t, "export", "--dir", dir)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "scheduler-test-results-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, out, matches[0])

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var doc export.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, fake.URL(), doc.SchedulerURL)
	assert.Equal(t, 1, doc.Summary.FailedTasks)
	assert.Equal(t, "2/3", doc.SystemInfo.WorkerCount)
}

func TestConnect_Unreachable(t *testing.T) {
	fake := setupEnv(t)
	fake.SetHealthStatus(503)

	_, _, err := runCommand(t, "connect")
	require.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("SCHEDMON_REGISTRY", "etcd")

	_, _, err := runCommand(t, "tasks", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.backend")
}
