package subscriber

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps subscribers in process. It backs local runs without
// a database and package tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	now  func() time.Time
	rows map[int64]Subscriber
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now, rows: make(map[int64]Subscriber)}
}

// Create stores an unblocked subscriber or returns ErrDuplicate.
func (m *MemoryRepository) Create(_ context.Context, chatID int64, name string) (Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[chatID]; ok {
		return Subscriber{}, ErrDuplicate
	}
	s := Subscriber{ChatID: chatID, Name: name, CreatedAt: m.now().UTC()}
	m.rows[chatID] = s
	return s, nil
}

// FindByChatID returns the stored subscriber or ErrNotFound.
func (m *MemoryRepository) FindByChatID(_ context.Context, chatID int64) (Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[chatID]
	if !ok {
		return Subscriber{}, ErrNotFound
	}
	return s, nil
}

// SetBlocked flips the blocked flag of an existing subscriber.
func (m *MemoryRepository) SetBlocked(_ context.Context, chatID int64, blocked bool) (Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[chatID]
	if !ok {
		return Subscriber{}, ErrNotFound
	}
	s.Blocked = blocked
	m.rows[chatID] = s
	return s, nil
}

// Delete removes chatID and returns the removed record.
func (m *MemoryRepository) Delete(_ context.Context, chatID int64) (Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[chatID]
	if !ok {
		return Subscriber{}, ErrNotFound
	}
	delete(m.rows, chatID)
	return s, nil
}

// List returns a copy of every subscriber in registration order.
func (m *MemoryRepository) List(_ context.Context) ([]Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Subscriber, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ChatID < out[j].ChatID
	})
	return out, nil
}
