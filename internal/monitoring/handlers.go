// File: internal/monitoring/handlers.go
package monitoring

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"botforge/internal/cache"
	"botforge/internal/middleware"
	"botforge/internal/observability"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ===============================
// MONITORING HANDLERS
// ===============================

// Handler exposes the operational API: metrics queries, alert listing and
// resolution, manual alerts, and admin resets.
type Handler struct {
	pipeline    *observability.Pipeline
	cache       cache.Cache
	logger      *zap.Logger
	validate    *validator.Validate
	startTime   time.Time
	version     string
	environment string
}

// NewHandler creates the monitoring handler set.
func NewHandler(pipeline *observability.Pipeline, c cache.Cache, logger *zap.Logger, version, environment string) *Handler {
	return &Handler{
		pipeline:    pipeline,
		cache:       c,
		logger:      logger,
		validate:    validator.New(),
		startTime:   time.Now(),
		version:     version,
		environment: environment,
	}
}

// ===============================
// METRICS
// ===============================

// Metrics returns the current aggregate counters, window percentiles, and
// rule-engine snapshot.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.pipeline.Report())
}

// ResetMetrics zeroes all counters and the response-time window. Intended
// for admin use between load-test runs.
func (h *Handler) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Recorder().Reset()

	middleware.GetRequestLogger(r.Context()).Info("Metrics reset")

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "metrics reset",
	})
}

// ===============================
// ALERTS
// ===============================

// alertListResponse wraps the alert listing with its query echo.
type alertListResponse struct {
	Alerts   []observability.Alert `json:"alerts"`
	Count    int                   `json:"count"`
	Limit    int                   `json:"limit"`
	Severity string                `json:"severity,omitempty"`
}

// Alerts lists recent alerts, newest first. Supports ?limit= and
// ?severity= filters.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit := observability.DefaultRecentAlertCap
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	severity := observability.Severity(r.URL.Query().Get("severity"))
	if severity != "" && !severity.Valid() {
		h.writeError(w, http.StatusBadRequest, "unknown severity")
		return
	}

	alerts := h.pipeline.Alerts().Recent(limit)
	if severity != "" {
		filtered := alerts[:0]
		for _, a := range alerts {
			if a.Severity == severity {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}

	h.writeJSON(w, http.StatusOK, alertListResponse{
		Alerts:   alerts,
		Count:    len(alerts),
		Limit:    limit,
		Severity: string(severity),
	})
}

// manualAlertRequest is the body for operator-raised alerts.
type manualAlertRequest struct {
	Type     string            `json:"type" validate:"required,min=1,max=100"`
	Severity string            `json:"severity" validate:"required,oneof=low medium high critical"`
	Title    string            `json:"title" validate:"required,min=1,max=200"`
	Message  string            `json:"message" validate:"required,min=1,max=2000"`
	Metadata map[string]string `json:"metadata" validate:"omitempty,max=20"`
}

// ManualAlert raises an alert directly, bypassing rule evaluation and
// cooldowns. It flows through the same dispatcher as rule-fired alerts.
func (h *Handler) ManualAlert(w http.ResponseWriter, r *http.Request) {
	var req manualAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	alert := observability.NewAlert(
		req.Type,
		observability.Severity(req.Severity),
		req.Title,
		req.Message,
		req.Metadata,
		time.Now(),
	)
	h.pipeline.Dispatcher().Dispatch(r.Context(), alert)

	middleware.GetRequestLogger(r.Context()).Info("Manual alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("type", alert.Type),
		zap.String("severity", string(alert.Severity)),
	)

	h.writeJSON(w, http.StatusAccepted, alert)
}

// resolveResponse reports whether a resolve call changed state.
type resolveResponse struct {
	ID       string `json:"id"`
	Resolved bool   `json:"resolved"`
}

// ResolveAlert marks an alert resolved. The response reports whether the
// call actually changed state; resolving an unknown or already-resolved
// alert is a harmless no-op.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing alert id")
		return
	}

	resolved := h.pipeline.Alerts().Resolve(r.Context(), id)
	if resolved {
		middleware.GetRequestLogger(r.Context()).Info("Alert resolved",
			zap.String("alert_id", id),
		)
	}

	h.writeJSON(w, http.StatusOK, resolveResponse{ID: id, Resolved: resolved})
}

// ===============================
// HEALTH
// ===============================

// healthResponse reports process and dependency health.
type healthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Components  map[string]string `json:"components"`
}

// Health reports liveness plus cache connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Version:     h.version,
		Environment: h.environment,
		Components:  map[string]string{},
	}

	status := http.StatusOK
	if err := h.cache.Health(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Components["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp.Components["cache"] = "healthy"
	}

	h.writeJSON(w, status, resp)
}

// ===============================
// RESPONSE HELPERS
// ===============================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
