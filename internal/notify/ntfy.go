package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const userAgent = "schedmon/0.1"

// Ntfy pushes success, warning and error notifications to an ntfy topic URL.
// Info-level messages stay local.
type Ntfy struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewNtfy returns nil when topic is empty so callers can skip it in a Fanout.
func NewNtfy(topic string, timeout time.Duration, logger zerolog.Logger) *Ntfy {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "ntfy").Logger(),
	}
}

func (n *Ntfy) Notify(ctx context.Context, level Level, message string) {
	if n == nil || level == LevelInfo {
		return
	}
	if err := n.send(ctx, level, message); err != nil {
		n.logger.Warn().Err(err).Msg("ntfy delivery failed")
	}
}

func (n *Ntfy) send(ctx context.Context, level Level, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", "Scheduler Monitor")
	req.Header.Set("Tags", strings.Join([]string{"schedmon", string(level)}, ","))
	if level == LevelError {
		req.Header.Set("Priority", "high")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
