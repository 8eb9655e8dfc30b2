// File: internal/observability/dispatch.go
package observability

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ===============================
// NOTIFICATION CHANNELS
// ===============================

// Notification is the channel-independent outbound payload. Adapters may
// reformat it into their native shape but must not alter its content.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Channel delivers an alert notification to an external sink (chat webhook,
// email, pager). Deliver must honor ctx cancellation.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// boundChannel pairs a channel with the minimum severity it receives.
type boundChannel struct {
	channel Channel
	min     Severity
}

// ===============================
// ALERT DISPATCHER
// ===============================

// DefaultDispatchTimeout bounds each channel delivery attempt.
const DefaultDispatchTimeout = 5 * time.Second

// Dispatcher routes alerts: every alert is logged and persisted; high and
// critical alerts additionally fan out to the configured channels. Each
// channel attempt runs on its own goroutine with its own timeout and
// recover boundary, so one broken channel never delays or prevents the
// others, and Dispatch never propagates a failure to its caller.
type Dispatcher struct {
	store   *AlertStore
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.RWMutex
	channels []boundChannel

	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher persisting through the given store.
// A timeout <= 0 selects DefaultDispatchTimeout.
func NewDispatcher(store *AlertStore, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:   store,
		logger:  logger,
		timeout: timeout,
	}
}

// AddChannel registers a channel receiving alerts of at least min severity.
func (d *Dispatcher) AddChannel(ch Channel, min Severity) {
	d.mu.Lock()
	d.channels = append(d.channels, boundChannel{channel: ch, min: min})
	d.mu.Unlock()
	d.logger.Info("alert channel registered",
		zap.String("channel", ch.Name()),
		zap.String("min_severity", string(min)),
	)
}

// Dispatch logs the alert, persists it, and fans it out to eligible
// channels. It never returns an error or panics into the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("alert dispatch failed",
				zap.String("alert_id", alert.ID),
				zap.Any("panic", rec),
			)
		}
	}()

	d.logAlert(alert)

	if err := d.store.Append(ctx, alert); err != nil {
		d.logger.Error("failed to persist alert",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
	}

	// External dispatch is reserved for high and critical severities.
	if !alert.Severity.AtLeast(SeverityHigh) {
		return
	}

	notification := Notification{
		Title:     alert.Title,
		Message:   alert.Message,
		Severity:  alert.Severity,
		Type:      alert.Type,
		Timestamp: alert.Timestamp,
	}

	d.mu.RLock()
	channels := append([]boundChannel(nil), d.channels...)
	d.mu.RUnlock()

	for _, bound := range channels {
		if !alert.Severity.AtLeast(bound.min) {
			continue
		}
		d.inflight.Add(1)
		go d.deliver(bound.channel, notification)
	}
}

// deliver runs one channel attempt with its own timeout and recover
// boundary.
func (d *Dispatcher) deliver(ch Channel, n Notification) {
	defer d.inflight.Done()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("alert channel panicked",
				zap.String("channel", ch.Name()),
				zap.Any("panic", rec),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := ch.Deliver(ctx, n); err != nil {
		d.logger.Error("alert channel delivery failed",
			zap.String("channel", ch.Name()),
			zap.String("alert_type", n.Type),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("alert delivered",
		zap.String("channel", ch.Name()),
		zap.String("alert_type", n.Type),
	)
}

// Flush waits for in-flight channel deliveries; used at shutdown and in
// tests.
func (d *Dispatcher) Flush() {
	d.inflight.Wait()
}

func (d *Dispatcher) logAlert(alert Alert) {
	if ce := d.logger.Check(alert.Severity.LogLevel(), "alert"); ce != nil {
		ce.Write(
			zap.String("alert_id", alert.ID),
			zap.String("type", alert.Type),
			zap.String("severity", string(alert.Severity)),
			zap.String("title", alert.Title),
			zap.String("message", alert.Message),
		)
	}
}
