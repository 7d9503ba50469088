package user

import (
	"context"
	"sync"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

// InMemoryStore keeps users in a mutex-guarded map with a name index.
// Mutate runs its closure under the write lock, which gives the per-row
// serialization the port demands.
type InMemoryStore struct {
	mu     sync.RWMutex
	users  map[domain.UserID]*User
	byName map[string]domain.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:  make(map[domain.UserID]*User),
		byName: make(map[string]domain.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[u.Name]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.users[u.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := cloneUser(u)
	s.users[u.ID] = clone
	s.byName[u.Name] = u.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *InMemoryStore) Mutate(_ context.Context, id domain.UserID, fn func(*User) error) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	oldName := u.Name
	fnErr := fn(u)
	if u.Name != oldName {
		delete(s.byName, oldName)
		s.byName[u.Name] = id
	}
	return cloneUser(u), fnErr
}

func cloneUser(u *User) *User {
	clone := *u
	clone.Secret = append([]byte(nil), u.Secret...)
	clone.Salt = append([]byte(nil), u.Salt...)
	return &clone
}
