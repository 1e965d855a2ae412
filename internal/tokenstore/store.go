// Package tokenstore remembers which single-use token ids have been spent.
package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Store records consumed token ids until they would have expired anyway.
type Store interface {
	// Consume marks id as used and reports whether this call was the first to do so.
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
	// Used reports whether id has already been consumed.
	Used(ctx context.Context, id string) (bool, error)
	// Release forgets a consumed id so it can be spent again.
	Release(ctx context.Context, id string) error
}

// Memory is an in-process Store suitable for a single server.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evict(now)
	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.seen[id] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Used(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evict(m.now())
	_, ok := m.seen[id]
	return ok, nil
}

func (m *Memory) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
	return nil
}

func (m *Memory) evict(now time.Time) {
	for id, expires := range m.seen {
		if !now.Before(expires) {
			delete(m.seen, id)
		}
	}
}

var _ Store = (*Memory)(nil)
