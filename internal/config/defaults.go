package config

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Scheduler: Scheduler{
			URL:               "https://api.zzcreation.com/scheduler",
			GenerationURL:     "https://api.zzcreation.com/web",
			Priority:          1,
			TaskTimeout:       600,
			RequestTimeoutSec: 30,
		},
		TTS: TTS{
			Endpoint: "https://api.zzcreation.com/web/custom_tts",
			Referer:  "http://localhost:8000/",
		},
		Polling: Polling{
			InitialDelayMS: 1000,
			IntervalMS:     2000,
			HTTPRetryMS:    2000,
			NetworkRetryMS: 5000,
			MaxFailures:    10,
		},
		Registry: Registry{
			Backend:    "memory",
			RedisAddr:  "localhost:6379",
			SQLitePath: "~/.local/share/schedmon/tasks.db",
		},
		Output: Output{
			ExportDir: ".",
			AudioDir:  ".",
		},
		Server: Server{
			Port:               "8080",
			SystemRefreshSec:   30,
			NotificationTTLSec: 3,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Level: "info",
			Env:   "production",
		},
	}
}
