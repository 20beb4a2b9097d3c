// Package remote holds the HTTP plumbing shared by the scheduler, generation
// and speech clients, and the error taxonomy every action reports with.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	headerAPIKey    = "x-api-key"
	headerRequestID = "X-Request-ID"
	maxErrorBody    = 4 << 10
)

type Options struct {
	BaseURL    string
	APIKey     string
	Referer    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client issues requests against one base URL.
type Client struct {
	baseURL    string
	apiKey     string
	referer    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Attachment is a file sent as one multipart form field.
type Attachment struct {
	Field string
	Path  string
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		referer:    strings.TrimSpace(opts.Referer),
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.URL(path, query), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// PostJSON encodes in as the request body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.URL(path, nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

// PostMultipart streams the attachments as a multipart form.
func (c *Client) PostMultipart(ctx context.Context, path string, files []Attachment, out any) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(form, files))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.URL(path, nil), pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.doJSON(req, out)
}

func writeForm(form *multipart.Writer, files []Attachment) error {
	for _, f := range files {
		part, err := form.CreateFormFile(f.Field, filepath.Base(f.Path))
		if err != nil {
			return err
		}
		src, err := os.Open(f.Path)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return err
		}
	}
	return form.Close()
}

// Do sends req and returns the response when the status is 2xx. The caller
// owns the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("request failed")
		return nil, &NetworkError{Op: req.Method + " " + req.URL.Path, Err: err}
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RequestFailedError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    ErrorMessage(data),
		}
	}
	return resp, nil
}

// NewRequest builds a request carrying the client's credentials.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return c.newRequest(ctx, method, c.URL(path, nil), body)
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set(headerAPIKey, c.apiKey)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: "decode response", Err: err}
	}
	return nil
}

// ErrorMessage pulls a readable message out of an error body.
func ErrorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		for _, s := range []string{payload.Error, payload.Message, payload.Detail} {
			if s != "" {
				return s
			}
		}
	}
	text := string(body)
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
