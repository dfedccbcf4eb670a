package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recipecast/internal/config"
	"recipecast/internal/services"
)

// Client posts video files to the publish server.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	interval   time.Duration
}

// ClientOption configures the upload client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithProgressInterval overrides the minimum delay between progress callbacks.
func WithProgressInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// NewClient builds an upload client from application config.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:   strings.TrimRight(cfg.Server.BaseURL, "/"),
		authToken: cfg.Server.AuthToken,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Server.UploadTimeout) * time.Second,
		},
		interval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// UploadVideo streams the file at path to the server and returns the hosted
// video URL. The response is parsed fail-closed: a 2xx status without a url
// field is still an error.
func (c *Client) UploadVideo(ctx context.Context, path string, progress func(ProgressUpdate)) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "upload", "open", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "upload", "stat", fmt.Sprintf("stat %s", path), err)
	}

	bodyReader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	counted := newProgressReader(file, info.Size(), c.interval, progress)

	go func() {
		part, formErr := form.CreateFormFile("file", filepath.Base(path))
		if formErr != nil {
			_ = writer.CloseWithError(formErr)
			return
		}
		if _, copyErr := io.Copy(part, counted); copyErr != nil {
			_ = writer.CloseWithError(copyErr)
			return
		}
		_ = writer.CloseWithError(form.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-video", bodyReader)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "upload", "request", "build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "post", "send video", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "read response", "read server response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode, payload)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", services.Wrap(services.ErrTransient, "upload", "parse response", "decode server response", err)
	}
	url := strings.TrimSpace(parsed.URL)
	if url == "" {
		return "", services.Wrap(services.ErrTransient, "upload", "parse response", "server response missing url", nil)
	}
	return url, nil
}

// statusError classifies non-2xx responses. 413 means the server refused the
// file outright and the submission should not be retried as-is.
func statusError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	message := fmt.Sprintf("server returned %d", status)
	if detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return services.Wrap(services.ErrRejected, "upload", "post", message, nil)
	case status >= 400 && status < 500:
		return services.Wrap(services.ErrValidation, "upload", "post", message, nil)
	default:
		return services.Wrap(services.ErrTransient, "upload", "post", message, nil)
	}
}
