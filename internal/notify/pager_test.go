// File: internal/notify/pager_test.go
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"botforge/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagerChannelRequiresRoutingKey(t *testing.T) {
	_, err := NewPagerChannel("", "", nil)
	assert.Error(t, err)

	ch, err := NewPagerChannel("", "rk-123", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPagerEndpoint, ch.endpoint)
}

func TestPagerDeliver(t *testing.T) {
	var received pagerEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	ch, err := NewPagerChannel(server.URL, "rk-123", nil)
	require.NoError(t, err)

	require.NoError(t, ch.Deliver(context.Background(), testNotification(observability.SeverityCritical)))

	assert.Equal(t, "rk-123", received.RoutingKey)
	assert.Equal(t, "trigger", received.EventAction)
	assert.Equal(t, "critical", received.Payload.Severity)
	assert.Equal(t, "botforge", received.Payload.Source)
	assert.Equal(t, "High error rate detected: Error rate is 10.00%", received.Payload.Summary)
	assert.Equal(t, "high_error_rate", received.Payload.CustomDetails["alert_type"])
}

func TestPagerDeliverErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	ch, err := NewPagerChannel(server.URL, "rk-123", nil)
	require.NoError(t, err)

	assert.Error(t, ch.Deliver(context.Background(), testNotification(observability.SeverityCritical)))
}

func TestPagerSeverityMapping(t *testing.T) {
	assert.Equal(t, "critical", pagerSeverity(observability.SeverityCritical))
	assert.Equal(t, "error", pagerSeverity(observability.SeverityHigh))
	assert.Equal(t, "warning", pagerSeverity(observability.SeverityMedium))
	assert.Equal(t, "info", pagerSeverity(observability.SeverityLow))
}
