package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recipecast/internal/config"
)

const userAgent = "Recipecast/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifySubmissionQueued(ctx context.Context, title string) error
	NotifyPublished(ctx context.Context, title, videoURL string) error
	NotifyRejected(ctx context.Context, title, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		sendPublishes: cfg.Notifications.Publish,
		sendErrors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	sendPublishes bool
	sendErrors    bool
}

func (n *ntfyService) NotifySubmissionQueued(ctx context.Context, title string) error {
	if !n.sendPublishes {
		return nil
	}
	data := payload{
		title:   "Recipecast - Queued",
		message: fmt.Sprintf("Queued for publishing: %s", strings.TrimSpace(title)),
		tags:    []string{"recipecast", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublished(ctx context.Context, title, videoURL string) error {
	if !n.sendPublishes {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Published: %s", title)
	if url := strings.TrimSpace(videoURL); url != "" {
		message = fmt.Sprintf("%s\nVideo: %s", message, url)
	}
	data := payload{
		title:    "Recipecast - Published",
		message:  message,
		tags:     []string{"recipecast", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRejected(ctx context.Context, title, reason string) error {
	if !n.sendErrors {
		return nil
	}
	data := payload{
		title:   "Recipecast - Rejected",
		message: fmt.Sprintf("Rejected: %s\n%s", strings.TrimSpace(title), strings.TrimSpace(reason)),
		tags:    []string{"recipecast", "rejected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.sendErrors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Recipecast - Error",
		message:  builder.String(),
		tags:     []string{"recipecast", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Recipecast - Test",
		message:  "Notification system test",
		tags:     []string{"recipecast", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

type noopService struct{}

func (noopService) NotifySubmissionQueued(context.Context, string) error  { return nil }
func (noopService) NotifyPublished(context.Context, string, string) error { return nil }
func (noopService) NotifyRejected(context.Context, string, string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error      { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
