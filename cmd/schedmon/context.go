package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/podushkina/schedmon/internal/config"
	"github.com/podushkina/schedmon/internal/logging"
	"github.com/podushkina/schedmon/internal/manager"
	"github.com/podushkina/schedmon/internal/notify"
	"github.com/podushkina/schedmon/internal/poller"
	"github.com/podushkina/schedmon/internal/registry"
	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/scheduler"
	"github.com/podushkina/schedmon/internal/submit"
	"github.com/podushkina/schedmon/internal/tts"
	"github.com/podushkina/schedmon/internal/workflow"
)

type commandContext struct {
	configFlag string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app
	appErr  error

	closeOnce sync.Once
}

// app is the wired object graph shared by every command.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	scheduler *scheduler.Client
	store     registry.Store
	board     *notify.Board
	manager   *manager.Manager
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() zerolog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.New("info", "", os.Stderr)
	}
	return logging.New(cfg.Logging.Level, cfg.Logging.Env, os.Stderr)
}

// ensureApp builds the app once. Notifications are echoed to out.
func (c *commandContext) ensureApp(out io.Writer) (*app, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = buildApp(cfg, c.logger(), out)
	})
	return c.app, c.appErr
}

// close stops monitoring and releases the registry. It is safe to call more
// than once.
func (c *commandContext) close() {
	c.closeOnce.Do(func() {
		if c.app == nil {
			return
		}
		if err := c.app.manager.Close(); err != nil {
			c.app.logger.Warn().Err(err).Msg("close registry")
		}
	})
}

// execute runs root and then releases whatever the command opened, whether
// or not it succeeded.
func execute(ctx context.Context, root *cobra.Command, c *commandContext) error {
	defer c.close()
	return root.ExecuteContext(ctx)
}

func buildApp(cfg *config.Config, logger zerolog.Logger, out io.Writer) (*app, error) {
	store, err := registry.Open(registry.Options{
		Backend:       cfg.Registry.Backend,
		RedisAddr:     cfg.Registry.RedisAddr,
		RedisPassword: cfg.Registry.RedisPassword,
		RedisDB:       cfg.Registry.RedisDB,
		RedisTTL:      cfg.RedisTTL(),
		SQLitePath:    cfg.Registry.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	sched := scheduler.New(remote.New(remote.Options{
		BaseURL: cfg.Scheduler.URL,
		APIKey:  cfg.Scheduler.APIKey,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger,
	}), cfg.Scheduler.Priority, cfg.Scheduler.TaskTimeout)

	generation := remote.New(remote.Options{
		BaseURL: cfg.Scheduler.GenerationURL,
		APIKey:  cfg.Scheduler.APIKey,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger,
	})

	board := notify.NewBoard(cfg.NotificationTTL())
	sink := notify.Fanout{
		board,
		notify.NewLogSink(logger),
		&consoleSink{w: out},
	}
	if ntfy := notify.NewNtfy(cfg.Notifications.NtfyTopic, cfg.NtfyTimeout(), logger); ntfy != nil {
		sink = append(sink, ntfy)
	}

	pool := poller.NewPool(sched, store, sink, poller.Options{
		InitialDelay:      cfg.Polling.InitialDelay(),
		Interval:          cfg.Polling.Interval(),
		HTTPRetryDelay:    cfg.Polling.HTTPRetry(),
		NetworkRetryDelay: cfg.Polling.NetworkRetry(),
		MaxFailures:       cfg.Polling.MaxFailures,
	}, logger)

	loader := workflow.NewLoader(cfg.Templates.DefaultPath, cfg.Templates.VideoPath, logger)

	mgr := manager.New(manager.Options{
		Scheduler: sched,
		Submitter: submit.New(sched, generation, loader, logger),
		Store:     store,
		Pool:      pool,
		Sink:      sink,
		Logger:    logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		scheduler: sched,
		store:     store,
		board:     board,
		manager:   mgr,
	}, nil
}

func (a *app) ttsClient() *tts.Client {
	return tts.New(tts.Options{
		Endpoint: a.cfg.TTS.Endpoint,
		APIKey:   firstNonEmpty(a.cfg.TTS.APIKey, a.cfg.Scheduler.APIKey),
		Referer:  a.cfg.TTS.Referer,
		Timeout:  a.cfg.RequestTimeout(),
		Logger:   a.logger,
	})
}

// persistent reports whether the registry outlives the process.
func (a *app) persistent() bool {
	return a.cfg.Registry.Backend != registry.BackendMemory
}

// consoleSink prints notifications for interactive use.
type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *consoleSink) Notify(ctx context.Context, level notify.Level, message string) {
	if s.w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "[%s] %s\n", level, message)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
