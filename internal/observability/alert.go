// File: internal/observability/alert.go
package observability

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap/zapcore"
)

// ===============================
// SEVERITY
// ===============================

// Severity classifies alerts; ordering controls log level and whether
// external dispatch occurs.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is at least as severe as other. Unknown
// severities rank lowest.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// LogLevel maps a severity to the zap level alerts of that severity are
// logged at.
func (s Severity) LogLevel() zapcore.Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return zapcore.ErrorLevel
	case SeverityMedium:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// ===============================
// ALERT
// ===============================

// Alert is the record produced when a rule's condition holds and its
// cooldown has elapsed, or when an operator raises one manually. It is
// immutable after creation except for the resolution fields, which
// transition exactly once through AlertStore.Resolve.
type Alert struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Severity   Severity          `json:"severity"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Resolved   bool              `json:"resolved"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

// NewAlert builds an alert record with a fresh id.
func NewAlert(alertType string, severity Severity, title, message string, metadata map[string]string, at time.Time) Alert {
	return Alert{
		ID:        newAlertID(at),
		Type:      alertType,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: at,
		Metadata:  metadata,
	}
}

func newAlertID(at time.Time) string {
	if id, err := uuid.NewV4(); err == nil {
		return id.String()
	}
	// Fallback to a timestamp-based id
	return fmt.Sprintf("alert-%d", at.UnixNano())
}
