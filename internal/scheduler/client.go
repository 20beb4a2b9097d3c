// Package scheduler is the client for the remote job-scheduling API.
package scheduler

import (
	"context"
	"fmt"
	"net/url"

	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/task"
	"github.com/podushkina/schedmon/internal/workflow"
)

const (
	DefaultPriority = 1
	DefaultTimeout  = 600
)

type submitRequest struct {
	Workflow workflow.Workflow `json:"workflow"`
	Priority int               `json:"priority"`
	Timeout  int               `json:"timeout"`
}

type Client struct {
	http     *remote.Client
	priority int
	timeout  int
}

// New wraps an HTTP client pointed at the scheduler base URL. Zero priority
// or timeout fall back to the defaults.
func New(httpClient *remote.Client, priority, timeoutSeconds int) *Client {
	if priority <= 0 {
		priority = DefaultPriority
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeout
	}
	return &Client{http: httpClient, priority: priority, timeout: timeoutSeconds}
}

func (c *Client) BaseURL() string {
	return c.http.BaseURL()
}

func (c *Client) Health(ctx context.Context) (*task.HealthResponse, error) {
	var out task.HealthResponse
	if err := c.http.GetJSON(ctx, "/health", nil, &out); err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*task.StatsResponse, error) {
	var out task.StatsResponse
	if err := c.http.GetJSON(ctx, "/api/v1/stats", nil, &out); err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &out, nil
}

// Submit queues a workflow and returns the scheduler's task id.
func (c *Client) Submit(ctx context.Context, wf workflow.Workflow) (*task.SubmissionResponse, error) {
	req := submitRequest{Workflow: wf, Priority: c.priority, Timeout: c.timeout}

	var out task.SubmissionResponse
	if err := c.http.PostJSON(ctx, "/api/v1/tasks", req, &out); err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}
	return &out, nil
}

// Get fetches one task. Errors are returned unwrapped so callers can tell
// HTTP failures from transport failures with errors.As.
func (c *Client) Get(ctx context.Context, id string) (*task.APITask, error) {
	var out task.APITask
	if err := c.http.GetJSON(ctx, "/api/v1/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context, opts task.SortOptions) ([]task.APITask, error) {
	query := url.Values{}
	query.Set("sort_by", string(opts.SortBy))
	query.Set("sort_order", string(opts.SortOrder))

	var out task.TasksResponse
	if err := c.http.GetJSON(ctx, "/api/v1/tasks", query, &out); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out.Tasks, nil
}
