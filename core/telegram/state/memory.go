package state

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	step    Step
	expires time.Time
}

// MemoryStore is an in-process Store with lazy expiry.
type MemoryStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	steps map[int64]memoryEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a MemoryStore; ttl <= 0 selects DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:   ttl,
		now:   time.Now,
		steps: make(map[int64]memoryEntry),
	}
}

// Get returns the stored step or StepIdle when missing or expired.
func (m *MemoryStore) Get(_ context.Context, chatID int64) (Step, error) {
	m.mu.RLock()
	e, ok := m.steps[chatID]
	m.mu.RUnlock()
	if !ok {
		return StepIdle, nil
	}
	if m.now().After(e.expires) {
		m.mu.Lock()
		if cur, ok := m.steps[chatID]; ok && cur.expires.Equal(e.expires) {
			delete(m.steps, chatID)
		}
		m.mu.Unlock()
		return StepIdle, nil
	}
	return e.step, nil
}

// Set stores step for chatID, refreshing its TTL. Setting StepIdle clears it.
func (m *MemoryStore) Set(ctx context.Context, chatID int64, step Step) error {
	if step == StepIdle {
		return m.Clear(ctx, chatID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[chatID] = memoryEntry{step: step, expires: m.now().Add(m.ttl)}
	return nil
}

// Clear removes the step for chatID.
func (m *MemoryStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.steps, chatID)
	return nil
}

// Len reports the number of stored entries, including expired ones not yet collected.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.steps)
}
