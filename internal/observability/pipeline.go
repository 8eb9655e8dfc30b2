// File: internal/observability/pipeline.go
package observability

import (
	"time"

	"botforge/internal/cache"

	"go.uber.org/zap"
)

// ===============================
// PIPELINE CONFIGURATION
// ===============================

// Config holds observability pipeline configuration.
type Config struct {
	WindowCapacity     int           `json:"window_capacity"`
	RecentAlertCap     int           `json:"recent_alert_cap"`
	EvaluationInterval time.Duration `json:"evaluation_interval"`
	SnapshotInterval   time.Duration `json:"snapshot_interval"`
	DispatchTimeout    time.Duration `json:"dispatch_timeout"`
}

// DefaultPipelineConfig returns production defaults.
func DefaultPipelineConfig() *Config {
	return &Config{
		WindowCapacity:     DefaultWindowCapacity,
		RecentAlertCap:     DefaultRecentAlertCap,
		EvaluationInterval: DefaultEvaluationInterval,
		SnapshotInterval:   DefaultSnapshotInterval,
		DispatchTimeout:    DefaultDispatchTimeout,
	}
}

// ===============================
// PIPELINE
// ===============================

// MetricsReport is the full read surface returned by the metrics query API:
// aggregate counters, window percentiles, and the current rule-engine
// snapshot.
type MetricsReport struct {
	Aggregate   AggregateMetrics `json:"aggregate"`
	Performance PerformanceStats `json:"performance"`
	System      Snapshot         `json:"system"`
}

// Pipeline is the process-wide observability context: recorder, rule
// registry and engine, dispatcher, alert store, and snapshot persistence,
// constructed once at startup and injected where needed. Tests build
// isolated instances instead of sharing a global.
type Pipeline struct {
	recorder   *Recorder
	registry   *Registry
	engine     *Engine
	dispatcher *Dispatcher
	alerts     *AlertStore
	snapshots  *SnapshotStore
	system     *SystemReader
	logger     *zap.Logger
}

// NewPipeline wires the full pipeline over the given cache. The default
// rule set is registered; more rules can be added through Registry.
func NewPipeline(cfg *Config, c cache.Cache, logger *zap.Logger) *Pipeline {
	if cfg == nil {
		cfg = DefaultPipelineConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	recorder := NewRecorder(cfg.WindowCapacity, logger.Named("recorder"))
	system := NewSystemReader()
	registry := NewRegistry()
	alerts := NewAlertStore(c, cfg.RecentAlertCap, logger.Named("alerts"))
	dispatcher := NewDispatcher(alerts, cfg.DispatchTimeout, logger.Named("dispatch"))
	engine := NewEngine(registry, dispatcher, recorder, system, cfg.EvaluationInterval, logger.Named("rules"))
	snapshots := NewSnapshotStore(recorder, c, cfg.SnapshotInterval, logger.Named("snapshot"))

	for _, rule := range DefaultRules() {
		if err := registry.Register(rule); err != nil {
			logger.Error("failed to register default rule",
				zap.String("rule_type", rule.Type),
				zap.Error(err),
			)
		}
	}

	return &Pipeline{
		recorder:   recorder,
		registry:   registry,
		engine:     engine,
		dispatcher: dispatcher,
		alerts:     alerts,
		snapshots:  snapshots,
		system:     system,
		logger:     logger,
	}
}

// Start launches the background evaluation and persistence loops.
func (p *Pipeline) Start() {
	p.engine.Start()
	p.snapshots.Start()
	p.logger.Info("observability pipeline started")
}

// Stop cancels the background loops and waits for in-flight channel
// deliveries to finish.
func (p *Pipeline) Stop() {
	p.engine.Stop()
	p.snapshots.Stop()
	p.dispatcher.Flush()
	p.logger.Info("observability pipeline stopped")
}

// Recorder returns the request metrics recorder for the middleware.
func (p *Pipeline) Recorder() *Recorder { return p.recorder }

// Registry returns the mutable rule registry.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Engine returns the alert rule engine.
func (p *Pipeline) Engine() *Engine { return p.engine }

// Dispatcher returns the alert dispatcher; manual alerts go through it the
// same way rule-fired alerts do.
func (p *Pipeline) Dispatcher() *Dispatcher { return p.dispatcher }

// Alerts returns the alert store.
func (p *Pipeline) Alerts() *AlertStore { return p.alerts }

// System returns the system resource reader.
func (p *Pipeline) System() *SystemReader { return p.system }

// Report assembles the metrics query payload.
func (p *Pipeline) Report() MetricsReport {
	return MetricsReport{
		Aggregate:   p.recorder.Aggregate(),
		Performance: p.recorder.Stats(),
		System:      p.engine.Snapshot(),
	}
}
