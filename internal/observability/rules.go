// File: internal/observability/rules.go
package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ===============================
// SNAPSHOT
// ===============================

// Snapshot is the rule-engine input, assembled fresh at each evaluation
// tick. Every rule in a tick evaluates against the same snapshot.
type Snapshot struct {
	ErrorRate           float64 `json:"error_rate"`
	AverageResponseTime float64 `json:"average_response_time_ms"`
	MemoryUsagePercent  float64 `json:"memory_usage_percent"`
	DatabaseErrors      int64   `json:"database_errors"`
	TimeWindowMinutes   float64 `json:"time_window_minutes"`
}

// TemplateData exposes the snapshot's fields for message-template
// interpolation.
func (s Snapshot) TemplateData() map[string]string {
	return map[string]string{
		"errorRate":           strconv.FormatFloat(s.ErrorRate, 'f', 2, 64),
		"averageResponseTime": strconv.FormatFloat(s.AverageResponseTime, 'f', 0, 64),
		"memoryUsagePercent":  strconv.FormatFloat(s.MemoryUsagePercent, 'f', 1, 64),
		"databaseErrors":      strconv.FormatInt(s.DatabaseErrors, 10),
		"timeWindowMinutes":   strconv.FormatFloat(s.TimeWindowMinutes, 'f', 0, 64),
	}
}

// ===============================
// RULES
// ===============================

// Condition is a pure predicate over a snapshot. Conditions must not mutate
// shared state.
type Condition func(Snapshot) bool

// Rule is a threshold alert definition. Rules are data: new kinds are added
// by registering a new predicate, not by changing the engine.
type Rule struct {
	Type            string
	Severity        Severity
	Title           string
	MessageTemplate string
	Condition       Condition
	Cooldown        time.Duration
}

// Registry holds rule definitions keyed by type, preserving registration
// order for evaluation. Additions and removals are runtime operations.
type Registry struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a rule, or replaces an existing rule of the same type in
// place (keeping its evaluation position).
func (r *Registry) Register(rule Rule) error {
	if rule.Type == "" {
		return fmt.Errorf("rule type is required")
	}
	if rule.Condition == nil {
		return fmt.Errorf("rule %q has no condition", rule.Type)
	}
	if !rule.Severity.Valid() {
		return fmt.Errorf("rule %q has unknown severity %q", rule.Type, rule.Severity)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].Type == rule.Type {
			r.rules[i] = rule
			return nil
		}
	}
	r.rules = append(r.rules, rule)
	return nil
}

// Deregister removes the rule of the given type, reporting whether it
// existed.
func (r *Registry) Deregister(ruleType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].Type == ruleType {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules...)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// ===============================
// COOLDOWN TRACKER
// ===============================

// CooldownTracker remembers when each rule type last produced an alert and
// suppresses refiring inside the rule's cooldown. The clock reference is the
// last successful firing, not the last evaluation attempt.
type CooldownTracker struct {
	mu        sync.Mutex
	lastFired map[string]time.Time
}

// NewCooldownTracker creates an empty tracker.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{lastFired: make(map[string]time.Time)}
}

// Allow reports whether a rule of the given type may fire at now.
func (c *CooldownTracker) Allow(ruleType string, cooldown time.Duration, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastFired[ruleType]
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}

// MarkFired records that a rule of the given type produced an alert at now.
// Call it only when an alert was actually created.
func (c *CooldownTracker) MarkFired(ruleType string, now time.Time) {
	c.mu.Lock()
	c.lastFired[ruleType] = now
	c.mu.Unlock()
}

// LastFired returns when the rule type last fired, if ever.
func (c *CooldownTracker) LastFired(ruleType string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastFired[ruleType]
	return last, ok
}

// ===============================
// ALERT RULE ENGINE
// ===============================

// Engine periodically assembles a snapshot and evaluates every registered
// rule against it. A failure in one rule is contained to that rule; the
// remaining rules in the tick still run.
type Engine struct {
	registry   *Registry
	cooldowns  *CooldownTracker
	dispatcher *Dispatcher
	recorder   *Recorder
	system     *SystemReader
	interval   time.Duration
	logger     *zap.Logger

	now func() time.Time

	// database_error fires on new occurrences since the previous tick, not
	// on the cumulative counter.
	dbMu               sync.Mutex
	lastDatabaseErrors int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// DefaultEvaluationInterval is how often rules are evaluated unless
// configured otherwise.
const DefaultEvaluationInterval = time.Minute

// NewEngine creates a rule engine. An interval <= 0 selects
// DefaultEvaluationInterval.
func NewEngine(registry *Registry, dispatcher *Dispatcher, recorder *Recorder, system *SystemReader, interval time.Duration, logger *zap.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultEvaluationInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:   registry,
		cooldowns:  NewCooldownTracker(),
		dispatcher: dispatcher,
		recorder:   recorder,
		system:     system,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Cooldowns exposes the tracker for inspection.
func (e *Engine) Cooldowns() *CooldownTracker { return e.cooldowns }

// Start launches the periodic evaluation loop.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.EvaluateOnce(context.Background())
			case <-e.stopCh:
				return
			}
		}
	}()
	e.logger.Info("alert rule engine started", zap.Duration("interval", e.interval))
}

// Stop cancels the evaluation loop and waits for it to exit.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// EvaluateOnce assembles a snapshot and runs a single evaluation tick over
// all registered rules in registration order. All rules in the tick see the
// same snapshot.
func (e *Engine) EvaluateOnce(ctx context.Context) {
	snapshot := e.buildSnapshot(true)
	for _, rule := range e.registry.Rules() {
		e.evaluateRule(ctx, rule, snapshot)
	}
}

// Snapshot assembles the current rule-engine input for read-only consumers.
// It does not consume the database-error delta the evaluation loop tracks.
func (e *Engine) Snapshot() Snapshot {
	return e.buildSnapshot(false)
}

func (e *Engine) buildSnapshot(consumeDelta bool) Snapshot {
	agg := e.recorder.Aggregate()

	var errorRate float64
	if agg.TotalRequests > 0 {
		errorRate = float64(agg.FailedRequests) / float64(agg.TotalRequests) * 100
	}

	e.dbMu.Lock()
	dbErrors := agg.DatabaseErrors - e.lastDatabaseErrors
	if dbErrors < 0 {
		// Counter went backwards (administrative reset); treat as fresh.
		dbErrors = agg.DatabaseErrors
	}
	if consumeDelta {
		e.lastDatabaseErrors = agg.DatabaseErrors
	}
	e.dbMu.Unlock()

	return Snapshot{
		ErrorRate:           errorRate,
		AverageResponseTime: agg.AverageResponseTime,
		MemoryUsagePercent:  e.system.MemoryUsagePercent(),
		DatabaseErrors:      dbErrors,
		TimeWindowMinutes:   e.interval.Minutes(),
	}
}

// evaluateRule runs one rule against the snapshot: IDLE -> condition check
// -> fired or suppressed. Panics are contained to the rule.
func (e *Engine) evaluateRule(ctx context.Context, rule Rule, snapshot Snapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("rule evaluation failed",
				zap.String("rule_type", rule.Type),
				zap.Any("panic", rec),
			)
		}
	}()

	if !rule.Condition(snapshot) {
		return
	}

	now := e.now()
	if !e.cooldowns.Allow(rule.Type, rule.Cooldown, now) {
		e.logger.Debug("alert suppressed by cooldown",
			zap.String("rule_type", rule.Type),
			zap.Duration("cooldown", rule.Cooldown),
		)
		return
	}

	message := Interpolate(rule.MessageTemplate, snapshot.TemplateData())
	alert := NewAlert(rule.Type, rule.Severity, rule.Title, message, snapshot.TemplateData(), now)

	e.dispatcher.Dispatch(ctx, alert)
	e.cooldowns.MarkFired(rule.Type, now)
}

// ===============================
// DEFAULT RULE SET
// ===============================

// DefaultRules returns the built-in threshold rules. The registry accepts
// additional rules at runtime.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:            "high_error_rate",
			Severity:        SeverityHigh,
			Title:           "High error rate detected",
			MessageTemplate: "Error rate is {{errorRate}}% (threshold 5%)",
			Condition:       func(s Snapshot) bool { return s.ErrorRate > 5 },
			Cooldown:        15 * time.Minute,
		},
		{
			Type:            "performance_degradation",
			Severity:        SeverityMedium,
			Title:           "Performance degradation detected",
			MessageTemplate: "Average response time is {{averageResponseTime}}ms (threshold 2000ms)",
			Condition:       func(s Snapshot) bool { return s.AverageResponseTime > 2000 },
			Cooldown:        10 * time.Minute,
		},
		{
			Type:            "resource_exhaustion",
			Severity:        SeverityCritical,
			Title:           "Memory usage critical",
			MessageTemplate: "Memory usage is {{memoryUsagePercent}}% (threshold 90%)",
			Condition:       func(s Snapshot) bool { return s.MemoryUsagePercent > 90 },
			Cooldown:        5 * time.Minute,
		},
		{
			Type:            "database_error",
			Severity:        SeverityHigh,
			Title:           "Database errors detected",
			MessageTemplate: "{{databaseErrors}} database errors in the last {{timeWindowMinutes}} minutes",
			Condition:       func(s Snapshot) bool { return s.DatabaseErrors > 0 },
			Cooldown:        5 * time.Minute,
		},
	}
}
