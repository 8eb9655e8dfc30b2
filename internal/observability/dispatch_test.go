// File: internal/observability/dispatch_test.go
package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingChannel is a test channel that can fail, panic, or succeed.
type recordingChannel struct {
	name string
	err  error
	bomb bool

	mu       sync.Mutex
	attempts []Notification
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(ctx context.Context, n Notification) error {
	c.mu.Lock()
	c.attempts = append(c.attempts, n)
	c.mu.Unlock()
	if c.bomb {
		panic("channel exploded")
	}
	return c.err
}

func (c *recordingChannel) Attempts() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.attempts...)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *AlertStore) {
	t.Helper()
	store := NewAlertStore(newStubCache(), 0, nil)
	return NewDispatcher(store, time.Second, nil), store
}

func TestDispatchPersistsAndFansOut(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)
	webhook := &recordingChannel{name: "webhook"}
	email := &recordingChannel{name: "email"}
	dispatcher.AddChannel(webhook, SeverityHigh)
	dispatcher.AddChannel(email, SeverityHigh)

	alert := newTestAlert("a1", SeverityCritical)
	dispatcher.Dispatch(context.Background(), alert)
	dispatcher.Flush()

	assert.Len(t, store.Recent(0), 1)
	require.Len(t, webhook.Attempts(), 1)
	require.Len(t, email.Attempts(), 1)
	assert.Equal(t, alert.Title, webhook.Attempts()[0].Title)
	assert.Equal(t, alert.Type, email.Attempts()[0].Type)
}

func TestDispatchChannelFailureIsolation(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)
	webhook := &recordingChannel{name: "webhook", err: errors.New("endpoint down")}
	email := &recordingChannel{name: "email"}
	dispatcher.AddChannel(webhook, SeverityHigh)
	dispatcher.AddChannel(email, SeverityHigh)

	assert.NotPanics(t, func() {
		dispatcher.Dispatch(context.Background(), newTestAlert("a1", SeverityCritical))
	})
	dispatcher.Flush()

	// The alert is persisted and the healthy channel was attempted despite
	// the broken one.
	assert.Len(t, store.Recent(0), 1)
	assert.Len(t, webhook.Attempts(), 1)
	assert.Len(t, email.Attempts(), 1)
}

func TestDispatchChannelPanicIsolation(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)
	bomb := &recordingChannel{name: "bomb", bomb: true}
	email := &recordingChannel{name: "email"}
	dispatcher.AddChannel(bomb, SeverityHigh)
	dispatcher.AddChannel(email, SeverityHigh)

	assert.NotPanics(t, func() {
		dispatcher.Dispatch(context.Background(), newTestAlert("a1", SeverityHigh))
	})
	dispatcher.Flush()

	assert.Len(t, store.Recent(0), 1)
	assert.Len(t, email.Attempts(), 1)
}

func TestDispatchSeverityGating(t *testing.T) {
	dispatcher, store := newTestDispatcher(t)
	webhook := &recordingChannel{name: "webhook"}
	dispatcher.AddChannel(webhook, SeverityHigh)

	// Low and medium alerts are logged and persisted but never leave the
	// process.
	dispatcher.Dispatch(context.Background(), newTestAlert("low", SeverityLow))
	dispatcher.Dispatch(context.Background(), newTestAlert("med", SeverityMedium))
	dispatcher.Flush()

	assert.Len(t, store.Recent(0), 2)
	assert.Empty(t, webhook.Attempts())
}

func TestDispatchPerChannelMinimumSeverity(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)
	webhook := &recordingChannel{name: "webhook"}
	pager := &recordingChannel{name: "pager"}
	dispatcher.AddChannel(webhook, SeverityHigh)
	dispatcher.AddChannel(pager, SeverityCritical)

	dispatcher.Dispatch(context.Background(), newTestAlert("h", SeverityHigh))
	dispatcher.Flush()

	// High reaches the webhook but not the critical-only pager.
	assert.Len(t, webhook.Attempts(), 1)
	assert.Empty(t, pager.Attempts())

	dispatcher.Dispatch(context.Background(), newTestAlert("c", SeverityCritical))
	dispatcher.Flush()

	assert.Len(t, webhook.Attempts(), 2)
	assert.Len(t, pager.Attempts(), 1)
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	// Unknown severities rank lowest and never reach High-gated dispatch.
	assert.False(t, Severity("bogus").AtLeast(SeverityHigh))

	assert.True(t, SeverityLow.Valid())
	assert.False(t, Severity("bogus").Valid())
}

func TestNewAlertGeneratesID(t *testing.T) {
	a := NewAlert("t", SeverityLow, "title", "msg", nil, time.Now())
	b := NewAlert("t", SeverityLow, "title", "msg", nil, time.Now())
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Resolved)
	assert.Nil(t, a.ResolvedAt)
}
