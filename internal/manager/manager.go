// Package manager ties submission, monitoring and the gallery together. Every
// operator action ends here, and failures become notifications.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/podushkina/schedmon/internal/export"
	"github.com/podushkina/schedmon/internal/notify"
	"github.com/podushkina/schedmon/internal/poller"
	"github.com/podushkina/schedmon/internal/registry"
	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/scheduler"
	"github.com/podushkina/schedmon/internal/submit"
	"github.com/podushkina/schedmon/internal/task"
	"github.com/podushkina/schedmon/internal/workflow"
)

// ErrNotConnected is returned by actions that need a prior Connect.
var ErrNotConnected = errors.New("not connected to scheduler")

// Submitter sends one job of the given kind.
type Submitter interface {
	Submit(ctx context.Context, kind string, in submit.Input) (*submit.Result, error)
}

type Options struct {
	Scheduler *scheduler.Client
	Submitter Submitter
	Store     registry.Store
	Pool      *poller.Pool
	Sink      notify.Sink
	Logger    zerolog.Logger
}

type Manager struct {
	sched  *scheduler.Client
	sub    Submitter
	store  registry.Store
	pool   *poller.Pool
	sink   notify.Sink
	logger zerolog.Logger

	mu        sync.RWMutex
	connected bool
	info      task.SystemInfo
}

func New(opts Options) *Manager {
	sink := opts.Sink
	if sink == nil {
		sink = notify.Fanout{}
	}
	return &Manager{
		sched:  opts.Scheduler,
		sub:    opts.Submitter,
		store:  opts.Store,
		pool:   opts.Pool,
		sink:   sink,
		logger: opts.Logger.With().Str("component", "manager").Logger(),
		info:   task.UnknownSystemInfo(),
	}
}

func (m *Manager) SchedulerURL() string {
	return m.sched.BaseURL()
}

func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Manager) SystemInfo() task.SystemInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

// Connect checks scheduler health, then refreshes system info and loads the
// scheduler's existing tasks with the given sort.
func (m *Manager) Connect(ctx context.Context, sort task.SortOptions) error {
	if _, err := m.sched.Health(ctx); err != nil {
		m.setConnected(false)
		m.sink.Notify(ctx, notify.LevelError, fmt.Sprintf("Connection failed: %v", cause(err)))
		return err
	}

	m.setConnected(true)
	m.sink.Notify(ctx, notify.LevelSuccess, "Connected to scheduler service")
	m.logger.Info().Str("url", m.sched.BaseURL()).Msg("connected")

	_ = m.RefreshSystemInfo(ctx)
	_, _ = m.LoadExisting(ctx, sort)
	return nil
}

func (m *Manager) setConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

// cause strips the operation prefix the scheduler client adds.
func cause(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}

// RefreshSystemInfo fetches health and stats together. It does nothing
// before a successful Connect.
func (m *Manager) RefreshSystemInfo(ctx context.Context) error {
	if !m.Connected() {
		return ErrNotConnected
	}

	var (
		health *task.HealthResponse
		stats  *task.StatsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		health, err = m.sched.Health(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = m.sched.Stats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		m.sink.Notify(ctx, notify.LevelError, fmt.Sprintf("Failed to refresh system info: %v", err))
		return err
	}

	info := task.SystemInfo{
		WorkerCount: fmt.Sprintf("%d/%d", health.OnlineWorkers, health.TotalWorkers),
		QueueLength: fmt.Sprint(stats.QueueLength),
		TotalTasks:  fmt.Sprint(stats.TotalTasks),
	}
	m.mu.Lock()
	m.info = info
	m.mu.Unlock()
	return nil
}

// AutoRefresh refreshes system info every interval until ctx ends.
func (m *Manager) AutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Connected() {
				if err := m.RefreshSystemInfo(ctx); err != nil {
					m.logger.Warn().Err(err).Msg("system info refresh failed")
				}
			}
		}
	}
}

// Submit sends a job and starts monitoring it. The pending record is in the
// registry when Submit returns.
func (m *Manager) Submit(ctx context.Context, kind string, in submit.Input) (*submit.Result, *poller.Handle, error) {
	res, err := m.sub.Submit(ctx, kind, in)
	if err != nil {
		m.reportSubmitError(ctx, err)
		return nil, nil, err
	}

	// Monitoring outlives the request that started it.
	h := m.pool.Watch(context.WithoutCancel(ctx), res.ID, res.Label)
	m.sink.Notify(ctx, notify.LevelInfo, "Task submitted: "+res.ID)
	return res, h, nil
}

// SubmitPrompt submits an image job for prompt.
func (m *Manager) SubmitPrompt(ctx context.Context, prompt string) (*submit.Result, *poller.Handle, error) {
	return m.Submit(ctx, submit.KindImage, submit.Input{Prompt: prompt})
}

func (m *Manager) reportSubmitError(ctx context.Context, err error) {
	if remote.IsValidation(err) {
		m.sink.Notify(ctx, notify.LevelWarning, err.Error())
		return
	}
	m.sink.Notify(ctx, notify.LevelError, fmt.Sprintf("Failed to submit task: %v", err))
}

type BatchOptions struct {
	Count int
	// Random picks a sample prompt for every job; otherwise Prompt is used.
	Random bool
	Prompt string
	// Spacing is the pause between submissions.
	Spacing time.Duration
}

type BatchResult struct {
	Submitted []string
	Failed    int
	Handles   []*poller.Handle
}

// RunBatch submits Count image jobs one after another. progress, if set,
// receives a line before each submission and a summary at the end.
func (m *Manager) RunBatch(ctx context.Context, opts BatchOptions, progress func(string)) (BatchResult, error) {
	if opts.Count <= 0 {
		return BatchResult{}, remote.Invalid("count", "batch size must be positive")
	}
	if !opts.Random && opts.Prompt == "" {
		return BatchResult{}, remote.Invalid("prompt", "please enter a prompt or use random prompts")
	}
	if progress == nil {
		progress = func(string) {}
	}

	var out BatchResult
	for i := 1; i <= opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		progress(fmt.Sprintf("Submitting task %d/%d...", i, opts.Count))

		prompt := opts.Prompt
		if opts.Random {
			prompt = workflow.RandomPrompt()
		}
		res, h, err := m.SubmitPrompt(ctx, prompt)
		if err != nil {
			out.Failed++
		} else {
			out.Submitted = append(out.Submitted, res.ID)
			out.Handles = append(out.Handles, h)
		}

		if i < opts.Count && opts.Spacing > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(opts.Spacing):
			}
		}
	}

	progress(fmt.Sprintf("Batch test completed: %d/%d submitted", len(out.Submitted), opts.Count))
	return out, nil
}

// LoadExisting replaces the gallery with the scheduler's task list.
func (m *Manager) LoadExisting(ctx context.Context, sort task.SortOptions) (int, error) {
	apiTasks, err := m.sched.List(ctx, sort)
	if err != nil {
		m.sink.Notify(ctx, notify.LevelError, fmt.Sprintf("Failed to load existing tasks: %v", err))
		return 0, err
	}

	now := time.Now()
	records := make([]task.Record, 0, len(apiTasks))
	for _, t := range apiTasks {
		records = append(records, task.FromAPI(t, now))
	}
	if err := m.store.ReplaceAll(ctx, records); err != nil {
		m.sink.Notify(ctx, notify.LevelError, fmt.Sprintf("Failed to load existing tasks: %v", err))
		return 0, err
	}

	if len(apiTasks) > 0 {
		m.sink.Notify(ctx, notify.LevelInfo, fmt.Sprintf("Loaded %d existing tasks", len(apiTasks)))
	}
	return len(apiTasks), nil
}

// Clear empties the gallery. Running monitors keep going and will write
// their tasks back.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.sink.Notify(ctx, notify.LevelInfo, "Gallery cleared")
	return nil
}

func (m *Manager) Tasks(ctx context.Context, sort task.SortOptions) ([]task.Record, error) {
	return m.store.List(ctx, sort)
}

func (m *Manager) Task(ctx context.Context, id string) (task.Record, bool, error) {
	return m.store.Get(ctx, id)
}

// Export snapshots the gallery, newest first.
func (m *Manager) Export(ctx context.Context) (export.Document, error) {
	records, err := m.store.List(ctx, task.DefaultSort())
	if err != nil {
		return export.Document{}, err
	}
	return export.NewDocument(m.sched.BaseURL(), m.SystemInfo(), records, time.Now()), nil
}

// ExportTo writes the snapshot under dir and returns the file path.
func (m *Manager) ExportTo(ctx context.Context, dir string) (string, error) {
	doc, err := m.Export(ctx)
	if err != nil {
		return "", err
	}
	path, err := export.Write(dir, doc, doc.Timestamp)
	if err != nil {
		m.sink.Notify(ctx, notify.LevelError, fmt.Sprintf("Export failed: %v", err))
		return "", err
	}
	m.sink.Notify(ctx, notify.LevelSuccess, "Results exported successfully")
	return path, nil
}

// Wait blocks until every monitor has finished.
func (m *Manager) Wait() {
	m.pool.Wait()
}

// Close stops monitoring and releases the registry.
func (m *Manager) Close() error {
	m.pool.Stop()
	return m.store.Close()
}
