package audit

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore keeps the audit log in process memory. Used in development
// and in tests; production uses the postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if !filter.ActorID.IsNil() && e.ActorID != filter.ActorID {
			continue
		}
		if !filter.From.IsZero() && e.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Timestamp.After(filter.To) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return page(matched, filter.Start, filter.Count), nil
}

func page(entries []Entry, start, count int) []Entry {
	if start < 0 {
		start = 0
	}
	if start >= len(entries) {
		return nil
	}
	entries = entries[start:]
	if count > 0 && count < len(entries) {
		entries = entries[:count]
	}
	return entries
}
