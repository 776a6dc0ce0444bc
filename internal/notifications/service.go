package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fetchd/internal/config"
)

const userAgent = "Fetchd/0.1.0"

// Service defines the push notification surface exposed to the executor.
type Service interface {
	NotifyJobCompleted(ctx context.Context, title string, byteSize int64) error
	NotifyJobFailed(ctx context.Context, sourceURL, detail string) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title string, byteSize int64) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Download complete: %s", title)
	if byteSize > 0 {
		message = fmt.Sprintf("%s (%s)", message, formatBytes(byteSize))
	}
	data := payload{
		title:   "Fetchd - Complete",
		message: message,
		tags:    []string{"fetchd", "download", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, sourceURL, detail string) error {
	sourceURL = strings.TrimSpace(sourceURL)
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = "unknown"
	}
	data := payload{
		title:    "Fetchd - Failed",
		message:  fmt.Sprintf("Download failed: %s\n%s", sourceURL, detail),
		tags:     []string{"fetchd", "download", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Fetchd - Test",
		message:  "Notification system test",
		tags:     []string{"fetchd", "test"},
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

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, int64) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error   { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
