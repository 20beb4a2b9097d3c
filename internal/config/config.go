// Package config loads schedmon settings. Values come from code defaults,
// then an optional TOML file, then .env files, then the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Scheduler holds the remote endpoints and submission parameters.
type Scheduler struct {
	URL               string `toml:"url"`
	GenerationURL     string `toml:"generation_url"`
	APIKey            string `toml:"api_key"`
	Priority          int    `toml:"priority"`
	TaskTimeout       int    `toml:"task_timeout"`
	RequestTimeoutSec int    `toml:"request_timeout"`
}

type TTS struct {
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
	Referer  string `toml:"referer"`
}

// Polling timings are in milliseconds.
type Polling struct {
	InitialDelayMS int `toml:"initial_delay_ms"`
	IntervalMS     int `toml:"interval_ms"`
	HTTPRetryMS    int `toml:"http_retry_ms"`
	NetworkRetryMS int `toml:"network_retry_ms"`
	MaxFailures    int `toml:"max_failures"`
}

type Templates struct {
	DefaultPath string `toml:"default_path"`
	VideoPath   string `toml:"video_path"`
}

type Registry struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisTTLSec   int    `toml:"redis_ttl"`
	SQLitePath    string `toml:"sqlite_path"`
}

type Output struct {
	ExportDir string `toml:"export_dir"`
	AudioDir  string `toml:"audio_dir"`
}

type Server struct {
	Port               string `toml:"port"`
	SystemRefreshSec   int    `toml:"system_refresh"`
	NotificationTTLSec int    `toml:"notification_ttl"`
}

type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

type Logging struct {
	Level string `toml:"level"`
	Env   string `toml:"env"`
}

type Config struct {
	Scheduler     Scheduler     `toml:"scheduler"`
	TTS           TTS           `toml:"tts"`
	Polling       Polling       `toml:"polling"`
	Templates     Templates     `toml:"templates"`
	Registry      Registry      `toml:"registry"`
	Output        Output        `toml:"output"`
	Server        Server        `toml:"server"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user config file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/schedmon/config.toml")
}

// Load builds the configuration. path may be empty, in which case the
// per-user file and then ./schedmon.toml are tried. It returns the resolved
// path and whether a file was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Load(name)
	}
	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnv() {
	c.Scheduler.URL = getEnv("SCHEDMON_SCHEDULER_URL", c.Scheduler.URL)
	c.Scheduler.GenerationURL = getEnv("SCHEDMON_GENERATION_URL", c.Scheduler.GenerationURL)
	c.Scheduler.APIKey = getEnv("SCHEDMON_API_KEY", c.Scheduler.APIKey)
	c.Scheduler.Priority = getEnvInt("SCHEDMON_PRIORITY", c.Scheduler.Priority)
	c.Scheduler.TaskTimeout = getEnvInt("SCHEDMON_TASK_TIMEOUT", c.Scheduler.TaskTimeout)
	c.Scheduler.RequestTimeoutSec = getEnvInt("SCHEDMON_REQUEST_TIMEOUT", c.Scheduler.RequestTimeoutSec)

	c.TTS.Endpoint = getEnv("SCHEDMON_TTS_ENDPOINT", c.TTS.Endpoint)
	c.TTS.APIKey = getEnv("SCHEDMON_TTS_API_KEY", c.TTS.APIKey)
	c.TTS.Referer = getEnv("SCHEDMON_TTS_REFERER", c.TTS.Referer)

	c.Polling.InitialDelayMS = getEnvInt("SCHEDMON_POLL_INITIAL_DELAY_MS", c.Polling.InitialDelayMS)
	c.Polling.IntervalMS = getEnvInt("SCHEDMON_POLL_INTERVAL_MS", c.Polling.IntervalMS)
	c.Polling.HTTPRetryMS = getEnvInt("SCHEDMON_POLL_HTTP_RETRY_MS", c.Polling.HTTPRetryMS)
	c.Polling.NetworkRetryMS = getEnvInt("SCHEDMON_POLL_NETWORK_RETRY_MS", c.Polling.NetworkRetryMS)
	c.Polling.MaxFailures = getEnvInt("SCHEDMON_POLL_MAX_FAILURES", c.Polling.MaxFailures)

	c.Templates.DefaultPath = getEnv("SCHEDMON_DEFAULT_WORKFLOW", c.Templates.DefaultPath)
	c.Templates.VideoPath = getEnv("SCHEDMON_VIDEO_WORKFLOW", c.Templates.VideoPath)

	c.Registry.Backend = getEnv("SCHEDMON_REGISTRY", c.Registry.Backend)
	c.Registry.RedisAddr = getEnv("REDIS_ADDR", c.Registry.RedisAddr)
	c.Registry.RedisPassword = getEnv("REDIS_PASSWORD", c.Registry.RedisPassword)
	c.Registry.RedisDB = getEnvInt("REDIS_DB", c.Registry.RedisDB)
	c.Registry.RedisTTLSec = getEnvInt("SCHEDMON_REDIS_TTL", c.Registry.RedisTTLSec)
	c.Registry.SQLitePath = getEnv("SCHEDMON_SQLITE_PATH", c.Registry.SQLitePath)

	c.Output.ExportDir = getEnv("SCHEDMON_EXPORT_DIR", c.Output.ExportDir)
	c.Output.AudioDir = getEnv("SCHEDMON_AUDIO_DIR", c.Output.AudioDir)

	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.SystemRefreshSec = getEnvInt("SCHEDMON_SYSTEM_REFRESH", c.Server.SystemRefreshSec)
	c.Server.NotificationTTLSec = getEnvInt("SCHEDMON_NOTIFICATION_TTL", c.Server.NotificationTTLSec)

	c.Notifications.NtfyTopic = getEnv("SCHEDMON_NTFY_TOPIC", c.Notifications.NtfyTopic)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Env = getEnv("APP_ENV", c.Logging.Env)
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scheduler.RequestTimeoutSec) * time.Second
}

func (c *Config) SystemRefreshInterval() time.Duration {
	return time.Duration(c.Server.SystemRefreshSec) * time.Second
}

func (c *Config) NotificationTTL() time.Duration {
	return time.Duration(c.Server.NotificationTTLSec) * time.Second
}

func (c *Config) NtfyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// RedisTTL is zero when records never expire.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Registry.RedisTTLSec) * time.Second
}

func (p Polling) InitialDelay() time.Duration { return ms(p.InitialDelayMS) }
func (p Polling) Interval() time.Duration     { return ms(p.IntervalMS) }
func (p Polling) HTTPRetry() time.Duration    { return ms(p.HTTPRetryMS) }
func (p Polling) NetworkRetry() time.Duration { return ms(p.NetworkRetryMS) }

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("schedmon.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
