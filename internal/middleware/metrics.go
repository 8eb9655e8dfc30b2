// File: internal/middleware/metrics.go
package middleware

import (
	"net/http"
	"time"

	"botforge/internal/observability"

	"go.uber.org/zap"
)

// SlowRequestThreshold marks requests worth a warning log.
const SlowRequestThreshold = 2 * time.Second

// ===============================
// METRICS MIDDLEWARE
// ===============================

// RequestMetrics records every completed request into the metrics recorder.
// It wraps the response writer so the final status code and body size are
// known once the handler returns.
func RequestMetrics(recorder *observability.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			writer := &MetricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(writer, r)

			duration := time.Since(start)

			recorder.Record(observability.RequestSample{
				Method:     r.Method,
				Path:       observability.NormalizePath(r.URL.Path),
				StatusCode: writer.statusCode,
				Duration:   duration,
			})

			if duration > SlowRequestThreshold {
				GetRequestLogger(r.Context()).Warn("Slow request detected",
					zap.Duration("duration", duration),
					zap.String("endpoint", r.Method+" "+r.URL.Path),
					zap.Int("status", writer.statusCode),
					zap.Int64("bytes_written", writer.bytesWritten),
				)
			}
		})
	}
}

// ===============================
// METRICS RESPONSE WRITER
// ===============================

// MetricsResponseWriter wraps http.ResponseWriter to capture the status code
// and response size for metrics recording.
type MetricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	headersSent  bool
}

func (w *MetricsResponseWriter) WriteHeader(code int) {
	if !w.headersSent {
		w.statusCode = code
		w.headersSent = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *MetricsResponseWriter) Write(data []byte) (int, error) {
	if !w.headersSent {
		w.WriteHeader(http.StatusOK)
	}
	written, err := w.ResponseWriter.Write(data)
	w.bytesWritten += int64(written)
	return written, err
}

// StatusCode returns the status code written to the client.
func (w *MetricsResponseWriter) StatusCode() int { return w.statusCode }
