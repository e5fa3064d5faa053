// Package storage provides the durable key-value store backing user
// preferences and session state. Each key is independent; there are no
// transactions across keys.
package storage

import (
	"context"
	"sync"
)

// KV is an opaque key-value store. Get returns ok=false on a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// InMemoryKV implements KV with a map. Used in tests and as a fallback when
// no database path is configured.
type InMemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewInMemoryKV creates an empty in-memory store.
func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{data: make(map[string][]byte)}
}

// Get returns the stored value for key.
func (s *InMemoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *InMemoryKV) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	return nil
}

// Remove deletes key. Removing a missing key is a no-op.
func (s *InMemoryKV) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
