// File: internal/notify/webhook.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"botforge/internal/observability"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ===============================
// CHAT WEBHOOK CHANNEL
// ===============================

// webhookMaxRetries bounds transient-failure retries inside the
// dispatcher's per-call timeout.
const webhookMaxRetries = 2

// WebhookChannel posts alert notifications to a Slack-compatible incoming
// webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookChannel creates a chat webhook channel.
func NewWebhookChannel(url string, logger *zap.Logger) (*WebhookChannel, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookChannel{
		url:    url,
		client: &http.Client{},
		logger: logger,
	}, nil
}

// Name implements observability.Channel.
func (c *WebhookChannel) Name() string { return "webhook" }

// webhookPayload is the Slack-style message shape.
type webhookPayload struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments"`
}

type webhookAttachment struct {
	Color  string         `json:"color"`
	Title  string         `json:"title"`
	Text   string         `json:"text"`
	Fields []webhookField `json:"fields"`
	TS     int64          `json:"ts"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Deliver posts the notification, retrying transient failures with
// exponential backoff until ctx expires.
func (c *WebhookChannel) Deliver(ctx context.Context, n observability.Notification) error {
	body, err := json.Marshal(webhookPayload{
		Text: fmt.Sprintf(":rotating_light: %s", n.Title),
		Attachments: []webhookAttachment{{
			Color: severityColor(n.Severity),
			Title: n.Title,
			Text:  n.Message,
			Fields: []webhookField{
				{Title: "Severity", Value: string(n.Severity), Short: true},
				{Title: "Type", Value: n.Type, Short: true},
			},
			TS: n.Timestamp.Unix(),
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors will not heal on retry.
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newWebhookBackoff(), webhookMaxRetries),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

func newWebhookBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = time.Second
	return bo
}

func severityColor(s observability.Severity) string {
	switch s {
	case observability.SeverityCritical:
		return "#d00000"
	case observability.SeverityHigh:
		return "#e85d04"
	case observability.SeverityMedium:
		return "#ffba08"
	default:
		return "#4895ef"
	}
}
