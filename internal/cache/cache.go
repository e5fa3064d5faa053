// Package cache stores fetched snapshots keyed by coordinates. Entries past
// their TTL are not served fresh but stay retrievable as a stale fallback
// when a remote fetch fails.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"weather-companion/internal/models"
)

// SnapshotCache is the snapshot cache contract. GetStale returns expired
// entries no older than maxStaleAge.
type SnapshotCache interface {
	Get(ctx context.Context, key string) (models.Snapshot, bool, error)
	GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.Snapshot, bool, error)
	Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error
}

// CoordinateKey builds a cache key from coordinates rounded to two decimals,
// matching the refresh policy's same-location tolerance.
func CoordinateKey(coords models.Coordinates) string {
	return fmt.Sprintf("%.2f,%.2f", coords.Latitude, coords.Longitude)
}

// InMemorySnapshotCache implements SnapshotCache with a map.
type InMemorySnapshotCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     models.Snapshot
	storedAt  time.Time
	expiresAt time.Time
}

// NewInMemorySnapshotCache creates an empty in-memory cache.
func NewInMemorySnapshotCache() *InMemorySnapshotCache {
	return &InMemorySnapshotCache{data: make(map[string]cacheEntry)}
}

// Get returns a fresh entry or reports a miss. Expired entries stay stored
// for GetStale.
func (c *InMemorySnapshotCache) Get(ctx context.Context, key string) (models.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return models.Snapshot{}, false, nil
	}
	return entry.value, true, nil
}

// GetStale returns an entry regardless of freshness as long as it is no
// older than maxStaleAge.
func (c *InMemorySnapshotCache) GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return models.Snapshot{}, false, nil
	}
	if time.Since(entry.storedAt) > maxStaleAge {
		delete(c.data, key)
		return models.Snapshot{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores value with the given TTL.
func (c *InMemorySnapshotCache) Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	return nil
}
