// File: internal/notify/pager.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"botforge/internal/observability"

	"go.uber.org/zap"
)

// ===============================
// PAGER CHANNEL
// ===============================

// DefaultPagerEndpoint is the PagerDuty Events API v2 endpoint.
const DefaultPagerEndpoint = "https://events.pagerduty.com/v2/enqueue"

// PagerChannel pages on-call via the PagerDuty Events API. The dispatcher
// binds it to critical severity only.
type PagerChannel struct {
	endpoint   string
	routingKey string
	client     *http.Client
	logger     *zap.Logger
}

// NewPagerChannel creates a pager channel. An empty endpoint selects the
// default Events API endpoint.
func NewPagerChannel(endpoint, routingKey string, logger *zap.Logger) (*PagerChannel, error) {
	if routingKey == "" {
		return nil, fmt.Errorf("pager routing key is required")
	}
	if endpoint == "" {
		endpoint = DefaultPagerEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PagerChannel{
		endpoint:   endpoint,
		routingKey: routingKey,
		client:     &http.Client{},
		logger:     logger,
	}, nil
}

// Name implements observability.Channel.
func (c *PagerChannel) Name() string { return "pager" }

type pagerEvent struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	Payload     pagerPayload `json:"payload"`
}

type pagerPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	Timestamp     string            `json:"timestamp"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

// Deliver triggers a pager event for the notification.
func (c *PagerChannel) Deliver(ctx context.Context, n observability.Notification) error {
	body, err := json.Marshal(pagerEvent{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		Payload: pagerPayload{
			Summary:   fmt.Sprintf("%s: %s", n.Title, n.Message),
			Source:    "botforge",
			Severity:  pagerSeverity(n.Severity),
			Timestamp: n.Timestamp.Format(time.RFC3339),
			CustomDetails: map[string]string{
				"alert_type": n.Type,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal pager event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build pager request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger pager event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pager returned status %d", resp.StatusCode)
	}
	return nil
}

// pagerSeverity maps alert severity onto the Events API vocabulary.
func pagerSeverity(s observability.Severity) string {
	switch s {
	case observability.SeverityCritical:
		return "critical"
	case observability.SeverityHigh:
		return "error"
	case observability.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}
