// File: internal/observability/store.go
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"botforge/internal/cache"

	"go.uber.org/zap"
)

// Persisted cache layout.
const (
	SnapshotKey     = "metrics:snapshot"
	RecentAlertsKey = "alerts:recent"
	alertKeyPrefix  = "alerts:"

	// AlertTTL bounds how long a keyed alert record stays queryable.
	AlertTTL = 7 * 24 * time.Hour
	// SnapshotTTL keeps the persisted aggregate near-real-time: a stopped
	// process stops being visible within minutes.
	SnapshotTTL = 5 * time.Minute

	// DefaultRecentAlertCap bounds the most-recent-first alert list.
	DefaultRecentAlertCap = 1000
)

func alertKey(id string) string { return alertKeyPrefix + id }

// ===============================
// ALERT STORE
// ===============================

// AlertStore owns alert records after creation: a capped most-recent-first
// in-memory list mirrored to the cache, plus keyed, TTL'd records supporting
// resolution. The in-memory list is authoritative for the local process;
// cache write failures are logged and self-heal on the next write.
type AlertStore struct {
	mu     sync.Mutex
	recent []Alert // newest first
	cap    int

	cache  cache.Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewAlertStore creates an alert store backed by the given cache. A cap
// <= 0 selects DefaultRecentAlertCap.
func NewAlertStore(c cache.Cache, capacity int, logger *zap.Logger) *AlertStore {
	if capacity <= 0 {
		capacity = DefaultRecentAlertCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertStore{
		cap:    capacity,
		cache:  c,
		logger: logger,
		now:    time.Now,
	}
}

// Append records a new alert: prepends it to the capped recent list and
// persists a keyed record with a 7-day TTL. A persistence failure is
// returned for the caller to log; the in-memory list is updated regardless.
func (s *AlertStore) Append(ctx context.Context, alert Alert) error {
	s.mu.Lock()
	s.recent = append([]Alert{alert}, s.recent...)
	if len(s.recent) > s.cap {
		s.recent = s.recent[:s.cap]
	}
	recent := append([]Alert(nil), s.recent...)
	s.mu.Unlock()

	var firstErr error
	if err := s.persistAlert(ctx, alert); err != nil {
		firstErr = fmt.Errorf("persist alert %s: %w", alert.ID, err)
	}
	if err := s.persistRecent(ctx, recent); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("persist recent alerts: %w", err)
	}
	return firstErr
}

// Recent returns up to limit alerts, newest first. A limit <= 0 or beyond
// the stored count returns everything held.
func (s *AlertStore) Recent(limit int) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	return append([]Alert(nil), s.recent[:limit]...)
}

// Resolve marks the alert resolved, refreshing its TTL. It returns false
// with no effect when the id is unknown or the alert is already resolved,
// making repeated calls idempotent. The check-then-set runs under the store
// lock so two concurrent resolvers cannot both observe success.
func (s *AlertStore) Resolve(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, found := s.lookupLocked(ctx, id)
	if !found || alert.Resolved {
		return false
	}

	resolvedAt := s.now()
	alert.Resolved = true
	alert.ResolvedAt = &resolvedAt

	for i := range s.recent {
		if s.recent[i].ID == id {
			s.recent[i] = alert
			break
		}
	}

	if err := s.persistAlert(ctx, alert); err != nil {
		s.logger.Warn("failed to persist alert resolution",
			zap.String("alert_id", id),
			zap.Error(err),
		)
	}
	if err := s.persistRecent(ctx, append([]Alert(nil), s.recent...)); err != nil {
		s.logger.Warn("failed to persist recent alerts",
			zap.Error(err),
		)
	}
	return true
}

// lookupLocked reads the keyed record, falling back to the in-memory list
// when the cache is degraded. Caller holds the lock.
func (s *AlertStore) lookupLocked(ctx context.Context, id string) (Alert, bool) {
	if raw, ok := s.cache.Get(ctx, alertKey(id)); ok {
		var alert Alert
		if err := json.Unmarshal([]byte(raw), &alert); err == nil {
			return alert, true
		}
		s.logger.Warn("corrupt alert record in cache", zap.String("alert_id", id))
	}
	for i := range s.recent {
		if s.recent[i].ID == id {
			return s.recent[i], true
		}
	}
	return Alert{}, false
}

func (s *AlertStore) persistAlert(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, alertKey(alert.ID), string(data), AlertTTL)
}

// persistRecent mirrors the recent list to the cache for external readers.
func (s *AlertStore) persistRecent(ctx context.Context, recent []Alert) error {
	data, err := json.Marshal(recent)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, RecentAlertsKey, string(data), AlertTTL)
}

// ===============================
// METRICS SNAPSHOT STORE
// ===============================

// DefaultSnapshotInterval is how often the aggregate snapshot is persisted.
const DefaultSnapshotInterval = 10 * time.Second

// SnapshotStore periodically persists the aggregate metrics to the shared
// cache so dashboards and CLIs see near-real-time data even if the local
// process restarts. The in-memory metrics stay authoritative; a failed
// write is logged and the next successful one heals the divergence.
type SnapshotStore struct {
	recorder *Recorder
	cache    cache.Cache
	interval time.Duration
	logger   *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSnapshotStore creates a snapshot store. An interval <= 0 selects
// DefaultSnapshotInterval.
func NewSnapshotStore(recorder *Recorder, c cache.Cache, interval time.Duration, logger *zap.Logger) *SnapshotStore {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{
		recorder: recorder,
		cache:    c,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the periodic persistence loop.
func (s *SnapshotStore) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.PersistOnce(context.Background()); err != nil {
					s.logger.Warn("failed to persist metrics snapshot", zap.Error(err))
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop cancels the persistence loop and waits for it to exit.
func (s *SnapshotStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// PersistOnce serializes the current aggregate metrics and writes them to
// the snapshot key with a short TTL.
func (s *SnapshotStore) PersistOnce(ctx context.Context) error {
	data, err := json.Marshal(s.recorder.Aggregate())
	if err != nil {
		return fmt.Errorf("marshal aggregate metrics: %w", err)
	}
	if err := s.cache.Set(ctx, SnapshotKey, string(data), SnapshotTTL); err != nil {
		return fmt.Errorf("write %s: %w", SnapshotKey, err)
	}
	return nil
}
