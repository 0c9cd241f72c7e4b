package services

import (
	"sync"
	"time"

	"raspimon/internal/models"
)

// SnapshotCache holds the most recent metrics snapshot with a TTL
type SnapshotCache struct {
	mu        sync.RWMutex
	snapshot  *models.MetricsSnapshot
	cacheTime time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewSnapshotCache builds a cache whose entry expires after ttl. A zero ttl never expires.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{ttl: ttl, now: time.Now}
}

// isCacheValid checks if cache is still valid
func (sc *SnapshotCache) isCacheValid() bool {
	return sc.snapshot != nil && (sc.ttl <= 0 || sc.now().Sub(sc.cacheTime) < sc.ttl)
}

// Store replaces the cached snapshot
func (sc *SnapshotCache) Store(s models.MetricsSnapshot) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snapshot = &s
	sc.cacheTime = sc.now()
}

// Latest returns the cached snapshot if it is still fresh
func (sc *SnapshotCache) Latest() (models.MetricsSnapshot, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if !sc.isCacheValid() {
		return models.MetricsSnapshot{}, false
	}
	return *sc.snapshot, true
}

// HandleEvent keeps the cache in step with "metrics" events
func (sc *SnapshotCache) HandleEvent(ev Event) {
	if ev.Topic != TopicMetrics {
		return
	}
	if s, ok := ev.Payload.(models.MetricsSnapshot); ok {
		sc.Store(s)
	}
}

// Clear drops the cached snapshot
func (sc *SnapshotCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snapshot = nil
}
