package recipes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recipecast/internal/config"
	"recipecast/internal/services"
)

// Client submits recipe metadata to the publish server.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// ClientOption configures the metadata client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a metadata client from application config.
func NewClient(cfg *config.Config, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:   strings.TrimRight(cfg.Server.BaseURL, "/"),
		authToken: cfg.Server.AuthToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Submit posts the draft. Any 2xx status counts as success.
func (c *Client) Submit(ctx context.Context, draft Draft) error {
	if err := draft.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "recipes", "validate", "incomplete recipe draft", err)
	}
	if strings.TrimSpace(draft.VideoURL) == "" {
		return services.Wrap(services.ErrValidation, "recipes", "validate", "draft is missing the hosted video url", nil)
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return services.Wrap(services.ErrValidation, "recipes", "marshal", "encode recipe draft", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "recipes", "request", "build submit request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "recipes", "post", "submit recipe metadata", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(body))
	message := fmt.Sprintf("server returned %d", resp.StatusCode)
	if detail != "" {
		message = fmt.Sprintf("%s: %s", message, detail)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return services.Wrap(services.ErrValidation, "recipes", "post", message, nil)
	}
	return services.Wrap(services.ErrTransient, "recipes", "post", message, nil)
}
