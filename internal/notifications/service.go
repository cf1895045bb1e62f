package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"datamart/internal/config"
	"datamart/internal/fulfillment"
)

const userAgent = "datamart/0.1"

// Service is the notification surface used by the tracker and daemon.
type Service interface {
	NotifyCompleted(ctx context.Context, kind fulfillment.Kind, ref int64) error
	NotifyFailed(ctx context.Context, kind fulfillment.Kind, ref int64, err error) error
	TestNotification(ctx context.Context) error
	// Enabled reports whether notifications are delivered anywhere.
	Enabled() bool
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:        topic,
		client:          &http.Client{Timeout: timeout},
		notifyCompleted: cfg.Notifications.NotifyCompleted,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint        string
	client          *http.Client
	notifyCompleted bool
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) NotifyCompleted(ctx context.Context, kind fulfillment.Kind, ref int64) error {
	if !n.notifyCompleted {
		return nil
	}
	data := payload{
		title:   "datamart - " + kind.Title() + " complete",
		message: fmt.Sprintf("✅ %s #%d fulfilled", kind.Title(), ref),
		tags:    []string{"datamart", string(kind), "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyFailed(ctx context.Context, kind fulfillment.Kind, ref int64, err error) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ %s #%d failed", kind.Title(), ref)

	var failure *fulfillment.WorkFailure
	if errors.As(err, &failure) {
		fmt.Fprintf(&builder, " in %s (%s lane)", failure.PhaseName, fulfillment.SlotName(failure.Lane))
		err = failure.Err
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "datamart - " + kind.Title() + " failed",
		message:  builder.String(),
		tags:     []string{"datamart", string(kind), "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "datamart - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"datamart", "test"},
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

func (noopService) NotifyCompleted(context.Context, fulfillment.Kind, int64) error     { return nil }
func (noopService) NotifyFailed(context.Context, fulfillment.Kind, int64, error) error { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
func (noopService) Enabled() bool                                                      { return false }
