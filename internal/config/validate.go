package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.Scheduler.URL = strings.TrimRight(strings.TrimSpace(c.Scheduler.URL), "/")
	c.Scheduler.GenerationURL = strings.TrimRight(strings.TrimSpace(c.Scheduler.GenerationURL), "/")
	c.TTS.Endpoint = strings.TrimSpace(c.TTS.Endpoint)
	c.Registry.Backend = strings.ToLower(strings.TrimSpace(c.Registry.Backend))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Env = strings.ToLower(strings.TrimSpace(c.Logging.Env))

	for _, p := range []*string{
		&c.Templates.DefaultPath,
		&c.Templates.VideoPath,
		&c.Registry.SQLitePath,
		&c.Output.ExportDir,
		&c.Output.AudioDir,
	} {
		expanded, err := expandPath(strings.TrimSpace(*p))
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validatePolling(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateEndpoints() error {
	for name, raw := range map[string]string{
		"scheduler.url":            c.Scheduler.URL,
		"scheduler.generation_url": c.Scheduler.GenerationURL,
		"tts.endpoint":             c.TTS.Endpoint,
	} {
		if err := validateURL(name, raw); err != nil {
			return err
		}
	}
	if c.Scheduler.Priority <= 0 {
		return errors.New("scheduler.priority must be positive")
	}
	if c.Scheduler.TaskTimeout <= 0 {
		return errors.New("scheduler.task_timeout must be positive")
	}
	if c.Scheduler.RequestTimeoutSec <= 0 {
		return errors.New("scheduler.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validatePolling() error {
	p := c.Polling
	if p.InitialDelayMS < 0 {
		return errors.New("polling.initial_delay_ms must not be negative")
	}
	if p.IntervalMS <= 0 || p.HTTPRetryMS <= 0 || p.NetworkRetryMS <= 0 {
		return errors.New("polling intervals must be positive")
	}
	if p.MaxFailures <= 0 {
		return errors.New("polling.max_failures must be positive")
	}
	return nil
}

func (c *Config) validateRegistry() error {
	switch c.Registry.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Registry.RedisAddr) == "" {
			return errors.New("registry.redis_addr is required for the redis backend")
		}
		if c.Registry.RedisTTLSec < 0 {
			return errors.New("registry.redis_ttl must not be negative")
		}
	case "sqlite":
		if c.Registry.SQLitePath == "" {
			return errors.New("registry.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("registry.backend %q is not one of memory, redis, sqlite", c.Registry.Backend)
	}
	return nil
}

func (c *Config) validateServer() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("server.port %q is not a valid port", c.Server.Port)
	}
	if c.Server.SystemRefreshSec <= 0 {
		return errors.New("server.system_refresh must be positive")
	}
	if c.Server.NotificationTTLSec <= 0 {
		return errors.New("server.notification_ttl must be positive")
	}
	if c.Notifications.NtfyTopic != "" {
		if err := validateURL("notifications.ntfy_topic", c.Notifications.NtfyTopic); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
	}
	return nil
}
