// File: internal/router/router.go
package router

import (
	"net/http"

	"botforge/internal/middleware"
	"botforge/internal/monitoring"
	"botforge/internal/observability"

	"go.uber.org/zap"
)

// SetupRouter configures all HTTP routes and wraps them in the middleware
// chain. Method-prefixed patterns keep method dispatch in the mux instead
// of in each handler.
func SetupRouter(handlers *monitoring.Handler, recorder *observability.Recorder, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	// Public health endpoint
	mux.HandleFunc("GET /health", handlers.Health)

	// ===============================
	// INTERNAL MONITORING ENDPOINTS
	// ===============================

	mux.HandleFunc("GET /internal/metrics", handlers.Metrics)
	mux.HandleFunc("POST /internal/metrics/reset", handlers.ResetMetrics)
	mux.HandleFunc("GET /internal/metrics/live", handlers.LiveMetrics)

	mux.HandleFunc("GET /internal/alerts", handlers.Alerts)
	mux.HandleFunc("POST /internal/alerts/manual", handlers.ManualAlert)
	mux.HandleFunc("POST /internal/alerts/{id}/resolve", handlers.ResolveAlert)

	return setupMiddlewareChain(mux, recorder, logger)
}

// setupMiddlewareChain wraps the router in the shared middleware.
// Order matters: request ID first for tracing, then metrics so every
// request is measured, recovery last so a panic anywhere inside still
// produces a recorded, correlated 500.
func setupMiddlewareChain(baseHandler http.Handler, recorder *observability.Recorder, logger *zap.Logger) http.Handler {
	handler := baseHandler

	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestMetrics(recorder)(handler)
	handler = middleware.RequestID(logger)(handler)

	return handler
}
