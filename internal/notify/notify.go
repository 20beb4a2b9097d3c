// Package notify delivers short operator-facing messages about submissions
// and task outcomes.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     Level     `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sink receives notifications. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(ctx context.Context, level Level, message string)
}

func newNotification(level Level, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Level:     level,
		CreatedAt: time.Now(),
	}
}

// Board keeps notifications visible for a fixed time, like toasts.
type Board struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items []Notification
}

func NewBoard(ttl time.Duration) *Board {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &Board{ttl: ttl, now: time.Now}
}

func (b *Board) Notify(ctx context.Context, level Level, message string) {
	n := newNotification(level, message)
	n.CreatedAt = b.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	b.items = append(b.items, n)
}

// Active returns the notifications that have not expired, oldest first.
func (b *Board) Active() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked()
	return append([]Notification(nil), b.items...)
}

func (b *Board) pruneLocked() {
	cutoff := b.now().Add(-b.ttl)
	keep := b.items[:0]
	for _, n := range b.items {
		if n.CreatedAt.After(cutoff) {
			keep = append(keep, n)
		}
	}
	b.items = keep
}

// LogSink writes notifications to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Notify(ctx context.Context, level Level, message string) {
	var ev *zerolog.Event
	switch level {
	case LevelError:
		ev = s.logger.Error()
	case LevelWarning:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Info()
	}
	ev.Str("kind", string(level)).Msg(message)
}

// Fanout forwards every notification to each sink in order.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, level Level, message string) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, level, message)
		}
	}
}

// Recorder keeps every notification; useful for CLI summaries and tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(ctx context.Context, level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, newNotification(level, message))
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Messages returns just the message texts.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.items))
	for i, n := range r.items {
		out[i] = n.Message
	}
	return out
}
