// Package poller drives each submitted task to a terminal state by polling
// the scheduler on its own goroutine.
package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/podushkina/schedmon/internal/notify"
	"github.com/podushkina/schedmon/internal/registry"
	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/task"
)

// Fetcher returns the current scheduler view of a task. HTTP status failures
// must be reported as *remote.RequestFailedError; anything else counts as a
// network failure.
type Fetcher interface {
	Get(ctx context.Context, id string) (*task.APITask, error)
}

type Options struct {
	// InitialDelay is the wait before the first fetch.
	InitialDelay time.Duration
	// Interval separates successful fetches of a non-terminal task.
	Interval time.Duration
	// HTTPRetryDelay follows a non-2xx response.
	HTTPRetryDelay time.Duration
	// NetworkRetryDelay follows a transport failure.
	NetworkRetryDelay time.Duration
	// MaxFailures consecutive failures end monitoring with a failed record.
	MaxFailures int
}

func DefaultOptions() Options {
	return Options{
		InitialDelay:      time.Second,
		Interval:          2 * time.Second,
		HTTPRetryDelay:    2 * time.Second,
		NetworkRetryDelay: 5 * time.Second,
		MaxFailures:       10,
	}
}

// Outcome describes how monitoring of one task ended.
type Outcome struct {
	Record task.Record
	// Ticks counts fetch attempts.
	Ticks int
	// Failures is the consecutive failure count when monitoring stopped.
	Failures int
	Canceled bool
}

// Handle controls one running monitor.
type Handle struct {
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

func (h *Handle) ID() string { return h.id }

// Cancel stops polling without touching the stored record.
func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until monitoring ends.
func (h *Handle) Wait() Outcome {
	<-h.done
	return h.outcome
}

type Pool struct {
	fetcher Fetcher
	store   registry.Store
	sink    notify.Sink
	opts    Options
	logger  zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[string]*Handle
}

func NewPool(fetcher Fetcher, store registry.Store, sink notify.Sink, opts Options, logger zerolog.Logger) *Pool {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultOptions().MaxFailures
	}
	return &Pool{
		fetcher: fetcher,
		store:   store,
		sink:    sink,
		opts:    opts,
		logger:  logger.With().Str("component", "poller").Logger(),
		active:  make(map[string]*Handle),
	}
}

// Watch records the task as pending and starts monitoring it. The pending
// record is stored before Watch returns. Watching an id that is already
// monitored replaces the earlier monitor.
func (p *Pool) Watch(ctx context.Context, id, prompt string) *Handle {
	base := task.NewPending(id, prompt, time.Now())
	if err := p.store.Insert(ctx, base); err != nil {
		p.logger.Error().Err(err).Str("task_id", id).Msg("store pending task")
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{id: id, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	if prev, ok := p.active[id]; ok {
		prev.Cancel()
	}
	p.active[id] = h
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(runCtx, h, base)
	return h
}

// Active reports how many tasks are being monitored.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Wait blocks until every monitor has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stop cancels all monitors and waits for them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	for _, h := range p.active {
		h.Cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Debug().Msg("all monitors stopped")
}

func (p *Pool) run(ctx context.Context, h *Handle, base task.Record) {
	defer p.wg.Done()
	defer close(h.done)
	defer h.cancel()
	defer p.release(h)

	log := p.logger.With().Str("task_id", h.id).Logger()
	log.Debug().Msg("monitoring started")

	current := base
	delay := p.opts.InitialDelay
	failures := 0

	for {
		if !sleep(ctx, delay) {
			h.outcome = Outcome{Record: current, Ticks: h.outcome.Ticks, Failures: failures, Canceled: true}
			log.Debug().Msg("monitoring canceled")
			return
		}

		h.outcome.Ticks++
		api, err := p.fetcher.Get(ctx, h.id)
		if err == nil {
			failures = 0
			rec := base.Merge(task.FromAPI(*api, time.Now()))
			if rec.Status.IsTerminal() {
				h.outcome.Record = p.finish(ctx, rec)
				h.outcome.Failures = failures
				log.Info().Str("status", string(rec.Status)).Int("ticks", h.outcome.Ticks).Msg("task finished")
				return
			}

			if stored, err := p.store.Update(ctx, rec); err != nil {
				log.Error().Err(err).Msg("update task")
				current = rec
			} else {
				current = stored
			}
			delay = p.opts.Interval
			continue
		}

		if ctx.Err() != nil {
			h.outcome = Outcome{Record: current, Ticks: h.outcome.Ticks, Failures: failures, Canceled: true}
			return
		}

		failures++
		message, retryAfter := p.classify(err)
		log.Warn().Err(err).Int("failures", failures).Msg("poll failed")

		if failures >= p.opts.MaxFailures {
			failed := base
			failed.Status = task.StatusFailed
			failed.Error = message
			h.outcome.Record = p.finish(ctx, failed)
			h.outcome.Failures = failures
			return
		}
		delay = retryAfter
	}
}

func (p *Pool) classify(err error) (string, time.Duration) {
	var rf *remote.RequestFailedError
	if errors.As(err, &rf) {
		return fmt.Sprintf("API error: %d %s", rf.StatusCode, http.StatusText(rf.StatusCode)), p.opts.HTTPRetryDelay
	}
	return fmt.Sprintf("Network error: %v", err), p.opts.NetworkRetryDelay
}

// finish stores the terminal record and reports it.
func (p *Pool) finish(ctx context.Context, rec task.Record) task.Record {
	now := time.Now()
	if rec.Status == task.StatusCompleted || rec.EndTime == nil {
		rec.EndTime = &now
	}

	stored, err := p.store.Update(ctx, rec)
	if err != nil {
		p.logger.Error().Err(err).Str("task_id", rec.ID).Msg("store terminal task")
		stored = rec
	}

	if rec.Status == task.StatusCompleted {
		p.sink.Notify(ctx, notify.LevelSuccess, "Task completed: "+rec.ID)
	} else {
		p.sink.Notify(ctx, notify.LevelError, "Task failed: "+rec.ID)
	}
	return stored
}

func (p *Pool) release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[h.id] == h {
		delete(p.active, h.id)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
