package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podushkina/schedmon/internal/remote"
)

type captured struct {
	path    string
	apiKey  string
	referer string
	body    map[string]any
}

func setupTest(t *testing.T, contentType string, reply []byte) (*Client, *captured) {
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.apiKey = r.Header.Get("x-api-key")
		got.referer = r.Header.Get("Referer")
		_ = json.NewDecoder(r.Body).Decode(&got.body)

		w.Header().Set("Content-Type", contentType)
		w.Write(reply)
	}))
	t.Cleanup(srv.Close)

	c := New(Options{Endpoint: srv.URL + "/web/custom_tts", APIKey: "zzc-test", Logger: zerolog.Nop()})
	return c, got
}

func TestSynthesize_Doubao(t *testing.T) {
	c, got := setupTest(t, "audio/mpeg", []byte("ID3"))

	audio, err := c.Synthesize(context.Background(), Request{
		Text:          "hello there",
		VoiceType:     "zh_female_1",
		Emotion:       "happy",
		EnableEmotion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "mp3", audio.Ext)
	assert.Equal(t, []byte("ID3"), audio.Data)

	assert.Equal(t, "/web/custom_tts", got.path)
	assert.Equal(t, "zzc-test", got.apiKey)
	assert.Equal(t, DefaultReferer, got.referer)
	assert.Equal(t, "doubao", got.body["api_type"])
	assert.Equal(t, "zh_female_1", got.body["voice_type"])
	assert.Equal(t, map[string]any{"emotion": "happy", "enable_emotion": true}, got.body["doubao_audio_extra_config"])
	assert.NotContains(t, got.body, "minimax_extra_config")
}

func TestSynthesize_Minimax(t *testing.T) {
	c, got := setupTest(t, "audio/wav", []byte("RIFF"))

	audio, err := c.Synthesize(context.Background(), Request{Text: "hello", Provider: ProviderMinimax, Emotion: "calm"})
	require.NoError(t, err)
	assert.Equal(t, "wav", audio.Ext)

	assert.Equal(t, map[string]any{"voice_setting": map[string]any{"emotion": "calm"}}, got.body["minimax_extra_config"])
	assert.NotContains(t, got.body, "doubao_audio_extra_config")
}

func TestSynthesize_JSONReplyIsError(t *testing.T) {
	c, _ := setupTest(t, "application/json", []byte(`{"error":"voice not found"}`))

	_, err := c.Synthesize(context.Background(), Request{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not audio")
	assert.Contains(t, err.Error(), "voice not found")
}

func TestSynthesize_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Options{Endpoint: srv.URL + "/custom_tts"})
	_, err := c.Synthesize(context.Background(), Request{Text: "hello"})
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode(err))
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"empty text", Request{Text: "  ", Provider: ProviderDoubao}, "text"},
		{"unknown provider", Request{Text: "x", Provider: "polly"}, "api_type"},
		{"doubao rejects minimax emotion", Request{Text: "x", Provider: ProviderDoubao, Emotion: "calm"}, "emotion"},
		{"minimax rejects doubao emotion", Request{Text: "x", Provider: ProviderMinimax, Emotion: "coldness"}, "emotion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			var v *remote.ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
		})
	}

	assert.NoError(t, Request{Text: "x", Provider: ProviderAzure}.Validate())
	assert.NoError(t, Request{Text: "x", Provider: ProviderDoubao, Emotion: "neutral"}.Validate())
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	now := time.UnixMilli(1760000000123)

	path, err := Save(dir, &Audio{Data: []byte("ID3"), Ext: "mp3"}, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tts-1760000000123.mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), data)
}
