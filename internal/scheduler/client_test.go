package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/task"
	"github.com/podushkina/schedmon/internal/testsupport"
	"github.com/podushkina/schedmon/internal/workflow"
)

func newTestClient(t *testing.T) (*Client, *testsupport.FakeScheduler) {
	fake := testsupport.NewFakeScheduler(t)
	httpClient := remote.New(remote.Options{BaseURL: fake.URL(), Logger: zerolog.Nop()})
	return New(httpClient, 0, 0), fake
}

func TestClient_HealthAndStats(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, health.OnlineWorkers)
	assert.Equal(t, 3, health.TotalWorkers)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.QueueLength)
	assert.Equal(t, 17, stats.TotalTasks)
}

func TestClient_SubmitPayload(t *testing.T) {
	c, fake := newTestClient(t)

	wf := workflow.Workflow{"28": {ClassType: "String Literal", Inputs: map[string]any{"string": "a red fox"}}}
	resp, err := c.Submit(context.Background(), wf)
	require.NoError(t, err)
	assert.Equal(t, "t1", resp.ID)
	assert.Equal(t, "pending", resp.Status)

	subs := fake.Submissions()
	require.Len(t, subs, 1)

	var body struct {
		Workflow workflow.Workflow `json:"workflow"`
		Priority int               `json:"priority"`
		Timeout  int               `json:"timeout"`
	}
	require.NoError(t, json.Unmarshal(subs[0], &body))
	assert.Equal(t, DefaultPriority, body.Priority)
	assert.Equal(t, DefaultTimeout, body.Timeout)
	assert.Equal(t, "a red fox", body.Workflow["28"].Inputs["string"])
}

func TestClient_SubmitRejected(t *testing.T) {
	c, fake := newTestClient(t)
	fake.SetSubmitStatus(http.StatusTooManyRequests)

	_, err := c.Submit(context.Background(), workflow.Workflow{})
	assert.Equal(t, http.StatusTooManyRequests, remote.StatusCode(err))
}

func TestClient_GetAndList(t *testing.T) {
	c, fake := newTestClient(t)
	fake.AddTask(task.APITask{ID: "a", Status: task.StatusRunning})
	fake.AddTask(task.APITask{ID: "b", Status: task.StatusCompleted})

	got, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, got.Status)

	_, err = c.Get(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, remote.StatusCode(err))

	list, err := c.List(context.Background(), task.SortOptions{SortBy: task.SortUpdatedAt, SortOrder: task.SortAsc})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	queries := fake.ListQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, "updated_at", queries[0].Get("sort_by"))
	assert.Equal(t, "asc", queries[0].Get("sort_order"))
}
