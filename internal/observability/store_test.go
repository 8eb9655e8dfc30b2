// File: internal/observability/store_test.go
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCache is an in-memory Cache for tests, optionally failing all writes.
type stubCache struct {
	mu      sync.Mutex
	data    map[string]string
	failSet bool
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string]string)}
}

func (c *stubCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *stubCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return errors.New("cache unavailable")
	}
	c.data[key] = value
	return nil
}

func (c *stubCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *stubCache) Exists(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *stubCache) SetTTL(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (c *stubCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]string)
	return nil
}

func (c *stubCache) Health(ctx context.Context) error { return nil }
func (c *stubCache) Close() error                     { return nil }

func newTestAlert(id string, severity Severity) Alert {
	return Alert{
		ID:        id,
		Type:      "test_alert",
		Severity:  severity,
		Title:     "Test alert",
		Message:   "something happened",
		Timestamp: time.Now(),
	}
}

func TestAlertStoreAppendAndRecent(t *testing.T) {
	store := NewAlertStore(newStubCache(), 0, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newTestAlert("a1", SeverityLow)))
	require.NoError(t, store.Append(ctx, newTestAlert("a2", SeverityHigh)))
	require.NoError(t, store.Append(ctx, newTestAlert("a3", SeverityMedium)))

	recent := store.Recent(0)
	require.Len(t, recent, 3)
	// Newest first
	assert.Equal(t, "a3", recent[0].ID)
	assert.Equal(t, "a2", recent[1].ID)
	assert.Equal(t, "a1", recent[2].ID)

	limited := store.Recent(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "a3", limited[0].ID)
}

func TestAlertStoreCapEvictsOldest(t *testing.T) {
	store := NewAlertStore(newStubCache(), 5, nil)
	ctx := context.Background()

	for i := 1; i <= 8; i++ {
		require.NoError(t, store.Append(ctx, newTestAlert(fmt.Sprintf("a%d", i), SeverityLow)))
	}

	recent := store.Recent(0)
	require.Len(t, recent, 5)
	assert.Equal(t, "a8", recent[0].ID)
	assert.Equal(t, "a4", recent[4].ID)
}

func TestAlertStorePersistsKeyedRecord(t *testing.T) {
	c := newStubCache()
	store := NewAlertStore(c, 0, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newTestAlert("a1", SeverityHigh)))

	raw, ok := c.Get(ctx, "alerts:a1")
	require.True(t, ok)

	var persisted Alert
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, "a1", persisted.ID)
	assert.False(t, persisted.Resolved)

	// The recent list is mirrored too.
	assert.True(t, c.Exists(ctx, RecentAlertsKey))
}

func TestAlertStoreAppendSurvivesCacheFailure(t *testing.T) {
	c := newStubCache()
	c.failSet = true
	store := NewAlertStore(c, 0, nil)
	ctx := context.Background()

	err := store.Append(ctx, newTestAlert("a1", SeverityHigh))
	assert.Error(t, err)

	// In-memory list stays authoritative.
	recent := store.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "a1", recent[0].ID)
}

func TestAlertStoreResolve(t *testing.T) {
	c := newStubCache()
	store := NewAlertStore(c, 0, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newTestAlert("a1", SeverityHigh)))

	// First resolve changes state.
	assert.True(t, store.Resolve(ctx, "a1"))

	recent := store.Recent(0)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Resolved)
	require.NotNil(t, recent[0].ResolvedAt)
	firstResolvedAt := *recent[0].ResolvedAt

	// Second resolve is a no-op.
	assert.False(t, store.Resolve(ctx, "a1"))
	recent = store.Recent(0)
	require.NotNil(t, recent[0].ResolvedAt)
	assert.Equal(t, firstResolvedAt, *recent[0].ResolvedAt)

	// The keyed record reflects the resolution.
	raw, ok := c.Get(ctx, "alerts:a1")
	require.True(t, ok)
	var persisted Alert
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.True(t, persisted.Resolved)
}

func TestAlertStoreResolveUnknownID(t *testing.T) {
	store := NewAlertStore(newStubCache(), 0, nil)
	assert.False(t, store.Resolve(context.Background(), "missing"))
	assert.Empty(t, store.Recent(0))
}

func TestAlertStoreResolveFallsBackToMemory(t *testing.T) {
	c := newStubCache()
	store := NewAlertStore(c, 0, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newTestAlert("a1", SeverityHigh)))
	// Simulate the keyed record having expired from the cache.
	require.NoError(t, c.Delete(ctx, "alerts:a1"))

	assert.True(t, store.Resolve(ctx, "a1"))
	assert.True(t, store.Recent(0)[0].Resolved)
}

func TestSnapshotStorePersistOnce(t *testing.T) {
	c := newStubCache()
	rec := NewRecorder(0, nil)
	rec.Record(RequestSample{Method: "GET", Path: "/a", StatusCode: 200, Duration: 50 * time.Millisecond})

	store := NewSnapshotStore(rec, c, 0, nil)
	require.NoError(t, store.PersistOnce(context.Background()))

	raw, ok := c.Get(context.Background(), SnapshotKey)
	require.True(t, ok)

	var agg AggregateMetrics
	require.NoError(t, json.Unmarshal([]byte(raw), &agg))
	assert.Equal(t, int64(1), agg.TotalRequests)
}

func TestSnapshotStoreStartStop(t *testing.T) {
	c := newStubCache()
	rec := NewRecorder(0, nil)

	store := NewSnapshotStore(rec, c, 10*time.Millisecond, nil)
	store.Start()

	assert.Eventually(t, func() bool {
		return c.Exists(context.Background(), SnapshotKey)
	}, time.Second, 5*time.Millisecond)

	store.Stop()
	// Stop is safe to call twice.
	store.Stop()
}
