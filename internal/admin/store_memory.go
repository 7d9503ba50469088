package admin

import (
	"context"
	"sync"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

// InMemoryStore keeps admins in a mutex-guarded map. Mutate runs under the
// write lock so a verification attempt and its challenge rotation are one
// atomic read-modify-write.
type InMemoryStore struct {
	mu     sync.RWMutex
	admins map[domain.AdminID]*Admin
	byName map[string]domain.AdminID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		admins: make(map[domain.AdminID]*Admin),
		byName: make(map[string]domain.AdminID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, a *Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[a.Name]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.admins[a.ID]; exists {
		return sentinel.ErrConflict
	}
	s.admins[a.ID] = cloneAdmin(a)
	s.byName[a.Name] = a.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.AdminID) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAdmin(a), nil
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAdmin(s.admins[id]), nil
}

func (s *InMemoryStore) Mutate(_ context.Context, id domain.AdminID, fn func(*Admin) error) (*Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	fnErr := fn(a)
	return cloneAdmin(a), fnErr
}

func cloneAdmin(a *Admin) *Admin {
	clone := *a
	clone.Secret = append([]byte(nil), a.Secret...)
	clone.Challenge = append([]byte(nil), a.Challenge...)
	clone.Grants = append([]string(nil), a.Grants...)
	return &clone
}
