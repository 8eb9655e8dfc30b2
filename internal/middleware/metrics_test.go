// File: internal/middleware/metrics_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"botforge/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMetricsRecordsCompletedRequest(t *testing.T) {
	recorder := observability.NewRecorder(0, nil)

	handler := RequestMetrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/chatbots/42/messages", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	agg := recorder.Aggregate()
	assert.Equal(t, int64(1), agg.TotalRequests)
	assert.Equal(t, int64(1), agg.SuccessfulRequests)
	assert.Equal(t, int64(1), agg.RequestsByEndpoint["/chatbots/:id/messages"])
	assert.Equal(t, int64(1), agg.RequestsByMethod["POST"])
	require.Len(t, recorder.Durations(), 1)
}

func TestRequestMetricsRecordsErrorStatus(t *testing.T) {
	recorder := observability.NewRecorder(0, nil)

	handler := RequestMetrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/broken", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	agg := recorder.Aggregate()
	assert.Equal(t, int64(1), agg.FailedRequests)
	assert.Equal(t, int64(1), agg.ErrorsByType["5xx_server_errors"])
}

func TestRequestMetricsDefaultsToOK(t *testing.T) {
	recorder := observability.NewRecorder(0, nil)

	// Handler never calls WriteHeader explicitly.
	handler := RequestMetrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("implicit 200"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, int64(1), recorder.Aggregate().SuccessfulRequests)
}

func TestMetricsResponseWriterIgnoresDuplicateWriteHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	w := &MetricsResponseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusTeapot, w.StatusCode())
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
