package subscription

import (
	"sort"
	"sync"
)

// ActiveSet is the in-memory set of chat ids believed to want updates.
type ActiveSet struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewActiveSet returns an empty set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{ids: make(map[int64]struct{})}
}

// Add inserts chatID; adding a member again is a no-op.
func (s *ActiveSet) Add(chatID int64) {
	s.mu.Lock()
	s.ids[chatID] = struct{}{}
	s.mu.Unlock()
}

// Remove deletes chatID if present.
func (s *ActiveSet) Remove(chatID int64) {
	s.mu.Lock()
	delete(s.ids, chatID)
	s.mu.Unlock()
}

// Has reports membership of chatID.
func (s *ActiveSet) Has(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[chatID]
	return ok
}

// Len returns the number of members.
func (s *ActiveSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Snapshot returns the members in ascending order.
func (s *ActiveSet) Snapshot() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear drops every member.
func (s *ActiveSet) Clear() {
	s.mu.Lock()
	s.ids = make(map[int64]struct{})
	s.mu.Unlock()
}
