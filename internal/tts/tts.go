// Package tts calls the text-to-speech endpoint and stores the returned audio.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/podushkina/schedmon/internal/remote"
)

const (
	DefaultEndpoint = "https://api.zzcreation.com/web/custom_tts"
	DefaultReferer  = "http://localhost:8000/"

	maxAudioSize = 64 << 20
)

type Provider string

const (
	ProviderDoubao  Provider = "doubao"
	ProviderAzure   Provider = "azure"
	ProviderMinimax Provider = "minimax"
)

var (
	doubaoEmotions  = []string{"happy", "sad", "angry", "surprised", "fear", "hate", "excited", "coldness", "neutral"}
	minimaxEmotions = []string{"happy", "sad", "angry", "fearful", "disgusted", "surprised", "calm"}
)

// Emotions lists the emotions a provider accepts. Azure takes none.
func Emotions(p Provider) []string {
	switch p {
	case ProviderDoubao:
		return slices.Clone(doubaoEmotions)
	case ProviderMinimax:
		return slices.Clone(minimaxEmotions)
	}
	return nil
}

type Request struct {
	Text          string
	Provider      Provider
	VoiceType     string
	Emotion       string
	EnableEmotion bool
}

type doubaoConfig struct {
	Emotion       string `json:"emotion"`
	EnableEmotion bool   `json:"enable_emotion"`
}

type minimaxConfig struct {
	VoiceSetting struct {
		Emotion string `json:"emotion"`
	} `json:"voice_setting"`
}

type requestBody struct {
	Text      string         `json:"text"`
	APIType   Provider       `json:"api_type"`
	VoiceType string         `json:"voice_type,omitempty"`
	Doubao    *doubaoConfig  `json:"doubao_audio_extra_config,omitempty"`
	Minimax   *minimaxConfig `json:"minimax_extra_config,omitempty"`
}

// Audio is a synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
	Ext         string
}

type Client struct {
	http   *remote.Client
	path   string
	logger zerolog.Logger
}

type Options struct {
	Endpoint string
	APIKey   string
	Referer  string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

func New(opts Options) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	referer := opts.Referer
	if referer == "" {
		referer = DefaultReferer
	}

	base, path := endpoint, ""
	if i := strings.LastIndex(endpoint, "/"); i > len("https://") {
		base, path = endpoint[:i], endpoint[i:]
	}

	return &Client{
		http: remote.New(remote.Options{
			BaseURL: base,
			APIKey:  opts.APIKey,
			Referer: referer,
			Timeout: opts.Timeout,
			Logger:  opts.Logger,
		}),
		path:   path,
		logger: opts.Logger.With().Str("component", "tts").Logger(),
	}
}

// Validate checks a request without sending it.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return remote.Invalid("text", "please enter text to synthesize")
	}
	switch r.Provider {
	case ProviderDoubao, ProviderMinimax:
		if r.Emotion != "" && !slices.Contains(Emotions(r.Provider), r.Emotion) {
			return remote.Invalid("emotion", "%q is not supported by %s", r.Emotion, r.Provider)
		}
	case ProviderAzure:
	default:
		return remote.Invalid("api_type", "unknown provider %q", r.Provider)
	}
	return nil
}

func (r Request) body() requestBody {
	body := requestBody{Text: r.Text, APIType: r.Provider, VoiceType: r.VoiceType}
	switch r.Provider {
	case ProviderDoubao:
		if r.Emotion != "" {
			body.Doubao = &doubaoConfig{Emotion: r.Emotion, EnableEmotion: r.EnableEmotion}
		}
	case ProviderMinimax:
		if r.Emotion != "" {
			body.Minimax = &minimaxConfig{}
			body.Minimax.VoiceSetting.Emotion = r.Emotion
		}
	}
	return body
}

// Synthesize sends req and returns the audio. A JSON reply is treated as an
// error message from the service.
func (c *Client) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if req.Provider == "" {
		req.Provider = ProviderDoubao
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req.body())
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}
	httpReq, err := c.http.NewRequest(ctx, http.MethodPost, c.path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, &remote.NetworkError{Op: "read tts response", Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	ext, err := extension(contentType)
	if err != nil {
		if msg := remote.ErrorMessage(data); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}

	c.logger.Info().Str("provider", string(req.Provider)).Int("bytes", len(data)).Msg("speech synthesized")
	return &Audio{Data: data, ContentType: contentType, Ext: ext}, nil
}

func extension(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("response is not audio (content type %q)", contentType)
	}
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return "mp3", nil
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav", nil
	}
	return "", fmt.Errorf("response is not audio (content type %q)", mediaType)
}

// Save writes the clip to dir as tts-<unix ms>.<ext> and returns the path.
func Save(dir string, audio *Audio, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("tts-%d.%s", now.UnixMilli(), audio.Ext))
	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}
