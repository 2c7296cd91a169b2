package correlation

import (
	"context"
	"sync"
)

// MemoryStore is the default in-process Store. State does not survive a
// restart. Insertion order is tracked so FirstKey returns the oldest live
// entry, matching the single-outstanding-request fallback heuristic.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	order   []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// Put stores an entry under its key.
func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Key]; !exists {
		s.order = append(s.order, entry.Key)
	}
	s.entries[entry.Key] = entry
	return nil
}

// Get returns the entry for key, if live.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	return entry, ok, nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// FirstKey returns the oldest live key, if any.
func (s *MemoryStore) FirstKey(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return "", false, nil
	}
	return s.order[0], true, nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
