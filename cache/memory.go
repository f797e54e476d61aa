package cache

import (
	"context"
	"sync"
	"time"

	"github.com/warp/carbon-engine/engine"
)

// =============================================================================
// MEMORY CACHE - Process-local
// =============================================================================

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is a TTL cache guarded by a RWMutex. A zero TTL never expires.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*engine.Model, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}

	model, err := decode(e.data)
	if err != nil {
		return nil, false, err
	}
	return model, true, nil
}

func (m *Memory) Set(_ context.Context, key string, model *engine.Model) error {
	data, err := encode(model)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
