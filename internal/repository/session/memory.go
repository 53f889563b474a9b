package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/docfinder/internal/db"
)

// MemoryStore is a process-local KV store for single-instance deployments.
// Entries expire after the TTL given at construction; the least recently used
// entry is evicted when capacity is reached.
type MemoryStore struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: expirable.NewLRU[string, []byte](capacity, nil, ttl)}
}

// Get returns a copy of the stored value or db.ErrKeyNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// SetWithTTL stores a copy of value. The per-call ttl is ignored in favour of the store TTL.
func (m *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.cache.Add(key, append([]byte(nil), value...))
	return nil
}

// Del removes a key.
func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int { return m.cache.Len() }
