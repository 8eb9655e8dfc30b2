// File: internal/observability/metrics_test.go
package observability

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecorderAggregateCounts(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	rec := NewRecorder(DefaultWindowCapacity, logger)

	// 90 successful and 10 failing requests
	for i := 0; i < 90; i++ {
		rec.Record(RequestSample{
			Method:     "GET",
			Path:       "/chatbots",
			StatusCode: 200,
			Duration:   100 * time.Millisecond,
		})
	}
	for i := 0; i < 10; i++ {
		rec.Record(RequestSample{
			Method:     "GET",
			Path:       "/chatbots",
			StatusCode: 500,
			Duration:   100 * time.Millisecond,
		})
	}

	agg := rec.Aggregate()
	assert.Equal(t, int64(100), agg.TotalRequests)
	assert.Equal(t, int64(90), agg.SuccessfulRequests)
	assert.Equal(t, int64(10), agg.FailedRequests)
	assert.Equal(t, int64(10), agg.ErrorsByType[ErrorTypeServer])
	assert.Equal(t, int64(100), agg.RequestsByEndpoint["/chatbots"])
	assert.Equal(t, int64(100), agg.RequestsByMethod["GET"])
}

func TestRecorderErrorClassification(t *testing.T) {
	rec := NewRecorder(0, nil)

	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 404, Duration: time.Millisecond})
	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 503, Duration: time.Millisecond})
	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 301, Duration: time.Millisecond})

	agg := rec.Aggregate()
	assert.Equal(t, int64(1), agg.ErrorsByType[ErrorTypeClient])
	assert.Equal(t, int64(1), agg.ErrorsByType[ErrorTypeServer])
	// Redirects count as success
	assert.Equal(t, int64(1), agg.SuccessfulRequests)
	assert.Equal(t, int64(2), agg.FailedRequests)
}

func TestRecorderRunningAverage(t *testing.T) {
	rec := NewRecorder(0, nil)

	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 200, Duration: 100 * time.Millisecond})
	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 200, Duration: 300 * time.Millisecond})

	agg := rec.Aggregate()
	assert.InDelta(t, 200.0, agg.AverageResponseTime, 0.001)
}

func TestRingBufferOverflow(t *testing.T) {
	rec := NewRecorder(1000, nil)

	// Insert 1500 samples with distinguishable durations.
	for i := 1; i <= 1500; i++ {
		rec.Record(RequestSample{
			Method:     "GET",
			Path:       "/load",
			StatusCode: 200,
			Duration:   time.Duration(i) * time.Millisecond,
		})
	}

	window := rec.Durations()
	require.Len(t, window, 1000)

	// The window holds exactly samples 501..1500, oldest first.
	assert.Equal(t, float64(501), window[0])
	assert.Equal(t, float64(1500), window[999])
	for i, v := range window {
		require.Equal(t, float64(501+i), v, "sample at index %d", i)
	}
}

func TestRecorderDatabaseErrors(t *testing.T) {
	rec := NewRecorder(0, nil)

	rec.RecordDatabaseError()
	rec.RecordDatabaseError()

	assert.Equal(t, int64(2), rec.Aggregate().DatabaseErrors)
}

func TestRecorderReset(t *testing.T) {
	rec := NewRecorder(0, nil)

	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 200, Duration: time.Millisecond})
	rec.RecordDatabaseError()
	rec.Reset()

	agg := rec.Aggregate()
	assert.Zero(t, agg.TotalRequests)
	assert.Zero(t, agg.DatabaseErrors)
	assert.Zero(t, agg.AverageResponseTime)
	assert.Empty(t, agg.RequestsByEndpoint)
	assert.Empty(t, rec.Durations())
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/users/42", "/users/:id"},
		{"/chatbots/3fa85f64-5717-4562-b3fc-2c963f66afa6", "/chatbots/:uuid"},
		{"/sessions/507f1f77bcf86cd799439011", "/sessions/:objectId"},
		{"/health", "/health"},
		{"/", "/"},
		{"", ""},
		{"/users/42/chatbots/7", "/users/:id/chatbots/:id"},
		{"/users/42abc", "/users/42abc"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q", tc.in), func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePath(tc.in))
		})
	}
}

func TestAggregateCloneIsIndependent(t *testing.T) {
	rec := NewRecorder(0, nil)
	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 200, Duration: time.Millisecond})

	agg := rec.Aggregate()
	agg.RequestsByEndpoint["/a"] = 999

	assert.Equal(t, int64(1), rec.Aggregate().RequestsByEndpoint["/a"])
}
