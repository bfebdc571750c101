// Package notifications publishes conversion progress over ntfy. When no
// topic is configured every notification is a no-op.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clef/internal/config"
)

const userAgent = "Clef/0.1.0"

// Service defines the notification surface exposed to the pipeline and
// queue processor.
type Service interface {
	NotifyConversionStarted(ctx context.Context, projectID, source string) error
	NotifyConversionCompleted(ctx context.Context, projectID string, score float64) error
	NotifyRefinementSkipped(ctx context.Context, projectID, reason string) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
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
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		conversions: cfg.Notifications.Conversions,
		queue:       cfg.Notifications.Queue,
		errors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	conversions bool
	queue       bool
	errors      bool
}

func (n *ntfyService) NotifyConversionStarted(ctx context.Context, projectID, source string) error {
	if !n.conversions {
		return nil
	}
	data := payload{
		title:   "Clef - Conversion Started",
		message: fmt.Sprintf("Converting %s (%s)", strings.TrimSpace(source), projectID),
		tags:    []string{"clef", "conversion", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyConversionCompleted(ctx context.Context, projectID string, score float64) error {
	if !n.conversions {
		return nil
	}
	data := payload{
		title:    "Clef - Conversion Complete",
		message:  fmt.Sprintf("Score ready: %s (quality %.2f)", projectID, score),
		tags:     []string{"clef", "conversion", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRefinementSkipped(ctx context.Context, projectID, reason string) error {
	if !n.conversions {
		return nil
	}
	data := payload{
		title:   "Clef - Refinement Skipped",
		message: fmt.Sprintf("Exported %s without refinement: %s", projectID, strings.TrimSpace(reason)),
		tags:    []string{"clef", "refinement", "skipped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	if !n.queue {
		return nil
	}
	data := payload{
		title:   "Clef - Queue Started",
		message: fmt.Sprintf("Started processing queue with %d projects", count),
		tags:    []string{"clef", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.queue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()

	var title, message string
	if failed == 0 {
		title = "Clef - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d projects in %s", processed, durationText)
	} else {
		title = "Clef - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"clef", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Clef - Error",
		message:  builder.String(),
		tags:     []string{"clef", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Clef - Test",
		message:  "Notification system test",
		tags:     []string{"clef", "test"},
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

func (noopService) NotifyConversionStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyConversionCompleted(context.Context, string, float64) error {
	return nil
}
func (noopService) NotifyRefinementSkipped(context.Context, string, string) error { return nil }
func (noopService) NotifyQueueStarted(context.Context, int) error                 { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
