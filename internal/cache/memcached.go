package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"weather-companion/internal/models"
)

const keyPrefix = "snapshot:"

// maxStaleRetention is how long entries stay in memcached past their
// freshness TTL so GetStale can still serve them.
const maxStaleRetention = 24 * time.Hour

// envelope wraps a snapshot with its freshness bookkeeping, since memcached
// expiration alone cannot distinguish fresh from stale-but-usable.
type envelope struct {
	Snapshot models.Snapshot `json:"snapshot"`
	StoredAt time.Time       `json:"storedAt"`
	FreshFor time.Duration   `json:"freshFor"`
}

// MemcachedSnapshotCache implements SnapshotCache on memcached.
type MemcachedSnapshotCache struct {
	client *memcache.Client
}

// NewMemcachedSnapshotCache creates a cache client. addrs is a
// comma-separated server list; timeout and maxIdleConns use package defaults
// when zero.
func NewMemcachedSnapshotCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedSnapshotCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedSnapshotCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedSnapshotCache) key(k string) string {
	return keyPrefix + k
}

func (c *MemcachedSnapshotCache) fetch(ctx context.Context, key string) (envelope, bool, error) {
	if ctx.Err() != nil {
		return envelope{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return envelope{}, false, nil
		}
		return envelope{}, false, err
	}
	var env envelope
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return envelope{}, false, err
	}
	return env, true, nil
}

// Get returns a fresh entry or reports a miss.
func (c *MemcachedSnapshotCache) Get(ctx context.Context, key string) (models.Snapshot, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return models.Snapshot{}, false, err
	}
	if time.Since(env.StoredAt) > env.FreshFor {
		return models.Snapshot{}, false, nil
	}
	return env.Snapshot, true, nil
}

// GetStale returns an entry regardless of freshness if no older than
// maxStaleAge.
func (c *MemcachedSnapshotCache) GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.Snapshot, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return models.Snapshot{}, false, err
	}
	if time.Since(env.StoredAt) > maxStaleAge {
		return models.Snapshot{}, false, nil
	}
	return env.Snapshot, true, nil
}

// Set stores value. The memcached expiration is the stale retention window,
// not the freshness TTL, so stale entries remain retrievable.
func (c *MemcachedSnapshotCache) Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(envelope{
		Snapshot: value,
		StoredAt: time.Now(),
		FreshFor: ttl,
	})
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: int32(maxStaleRetention.Seconds()),
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedSnapshotCache) Ping() error {
	return c.client.Ping()
}

// Close closes client connections. Call during shutdown.
func (c *MemcachedSnapshotCache) Close() error {
	return c.client.Close()
}
