// File: internal/observability/metrics.go
package observability

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ===============================
// METRICS DATA STRUCTURES
// ===============================

// DefaultWindowCapacity is the size of the sliding duration window.
const DefaultWindowCapacity = 1000

// Error classification buckets for failed requests.
const (
	ErrorTypeClient = "4xx_client_errors"
	ErrorTypeServer = "5xx_server_errors"
)

// RequestSample describes a single completed HTTP request.
type RequestSample struct {
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
}

// AggregateMetrics holds request counters accumulated since process start
// (or the last administrative reset).
type AggregateMetrics struct {
	TotalRequests       int64            `json:"total_requests"`
	SuccessfulRequests  int64            `json:"successful_requests"`
	FailedRequests      int64            `json:"failed_requests"`
	AverageResponseTime float64          `json:"average_response_time_ms"`
	RequestsByEndpoint  map[string]int64 `json:"requests_by_endpoint"`
	RequestsByMethod    map[string]int64 `json:"requests_by_method"`
	ErrorsByType        map[string]int64 `json:"errors_by_type"`
	DatabaseErrors      int64            `json:"database_errors"`
	LastUpdated         time.Time        `json:"last_updated"`
}

func newAggregateMetrics() AggregateMetrics {
	return AggregateMetrics{
		RequestsByEndpoint: make(map[string]int64),
		RequestsByMethod:   make(map[string]int64),
		ErrorsByType:       make(map[string]int64),
	}
}

// clone returns a deep copy safe to hand to readers.
func (m *AggregateMetrics) clone() AggregateMetrics {
	out := *m
	out.RequestsByEndpoint = make(map[string]int64, len(m.RequestsByEndpoint))
	for k, v := range m.RequestsByEndpoint {
		out.RequestsByEndpoint[k] = v
	}
	out.RequestsByMethod = make(map[string]int64, len(m.RequestsByMethod))
	for k, v := range m.RequestsByMethod {
		out.RequestsByMethod[k] = v
	}
	out.ErrorsByType = make(map[string]int64, len(m.ErrorsByType))
	for k, v := range m.ErrorsByType {
		out.ErrorsByType[k] = v
	}
	return out
}

// ===============================
// RING BUFFER
// ===============================

// ringBuffer is a fixed-capacity FIFO window of duration samples. Insertion
// past capacity evicts the oldest sample.
type ringBuffer struct {
	samples []float64
	head    int
	size    int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &ringBuffer{samples: make([]float64, capacity)}
}

func (b *ringBuffer) push(v float64) {
	b.samples[b.head] = v
	b.head = (b.head + 1) % len(b.samples)
	if b.size < len(b.samples) {
		b.size++
	}
}

func (b *ringBuffer) len() int { return b.size }

// values returns the window contents oldest-first.
func (b *ringBuffer) values() []float64 {
	out := make([]float64, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += len(b.samples)
	}
	for i := 0; i < b.size; i++ {
		out = append(out, b.samples[(start+i)%len(b.samples)])
	}
	return out
}

func (b *ringBuffer) reset() {
	b.head = 0
	b.size = 0
}

// ===============================
// REQUEST METRICS RECORDER
// ===============================

// Recorder observes completed requests, updating the aggregate counters and
// the sliding duration window. It is the single writer for both; readers get
// copies. A Recorder must never break the request path: every entry point
// recovers internally and logs instead of propagating.
type Recorder struct {
	mu      sync.Mutex
	metrics AggregateMetrics
	window  *ringBuffer
	logger  *zap.Logger
}

// NewRecorder creates a request metrics recorder with the given window
// capacity (<= 0 selects DefaultWindowCapacity).
func NewRecorder(windowCapacity int, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		metrics: newAggregateMetrics(),
		window:  newRingBuffer(windowCapacity),
		logger:  logger,
	}
}

// Record updates the aggregate counters and the duration window for one
// completed request.
func (r *Recorder) Record(s RequestSample) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("metrics recording failed",
				zap.Any("panic", rec),
				zap.String("path", s.Path),
			)
		}
	}()

	ms := float64(s.Duration) / float64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.TotalRequests++
	if s.StatusCode >= 200 && s.StatusCode < 400 {
		r.metrics.SuccessfulRequests++
	} else {
		r.metrics.FailedRequests++
		r.metrics.ErrorsByType[classifyStatus(s.StatusCode)]++
	}

	// Running mean over all durations, not just the window.
	r.metrics.AverageResponseTime += (ms - r.metrics.AverageResponseTime) / float64(r.metrics.TotalRequests)

	r.metrics.RequestsByEndpoint[NormalizePath(s.Path)]++
	r.metrics.RequestsByMethod[s.Method]++
	r.metrics.LastUpdated = time.Now()

	r.window.push(ms)
}

// RecordDatabaseError counts a database failure reported by the surrounding
// application; the rule engine alerts on new occurrences.
func (r *Recorder) RecordDatabaseError() {
	r.mu.Lock()
	r.metrics.DatabaseErrors++
	r.metrics.LastUpdated = time.Now()
	r.mu.Unlock()
}

// Aggregate returns a copy of the current aggregate metrics.
func (r *Recorder) Aggregate() AggregateMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics.clone()
}

// Durations returns a copy of the sliding window, oldest-first, in
// milliseconds.
func (r *Recorder) Durations() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window.values()
}

// Stats computes performance statistics over the current window.
func (r *Recorder) Stats() PerformanceStats {
	return ComputeStats(r.Durations())
}

// Reset clears the aggregate counters and the duration window. This is the
// administrative reset operation; nothing else ever clears the counters.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.metrics = newAggregateMetrics()
	r.window.reset()
	r.mu.Unlock()
	r.logger.Info("request metrics reset")
}

func classifyStatus(code int) string {
	if code >= 400 && code < 500 {
		return ErrorTypeClient
	}
	return ErrorTypeServer
}

// ===============================
// ENDPOINT NORMALIZATION
// ===============================

var (
	numericSegment  = regexp.MustCompile(`^\d+$`)
	uuidSegment     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	objectIDSegment = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// NormalizePath collapses variable path segments so endpoint counters group
// by route rather than by resource: numeric segments become ":id", UUIDs
// ":uuid", and 24-character hex identifiers ":objectId". The function is
// pure and deterministic.
func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return path
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		switch {
		case seg == "":
		case numericSegment.MatchString(seg):
			segments[i] = ":id"
		case uuidSegment.MatchString(seg):
			segments[i] = ":uuid"
		case objectIDSegment.MatchString(seg):
			segments[i] = ":objectId"
		}
	}
	return strings.Join(segments, "/")
}
