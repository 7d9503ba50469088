package keyring

import (
	"context"
	"sort"
	"sync"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

// InMemoryStore keeps published keys in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	keys map[domain.KeyID]*Key
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{keys: make(map[domain.KeyID]*Key)}
}

func (s *InMemoryStore) Create(_ context.Context, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; ok {
		return sentinel.ErrConflict
	}
	s.keys[key.ID] = cloneKey(key)
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id domain.KeyID) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneKey(key), nil
}

func (s *InMemoryStore) ListForOwner(_ context.Context, ownerID domain.UserID, start, count int) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []Info
	for _, key := range s.keys {
		if key.OwnerID == ownerID {
			infos = append(infos, Info{ID: key.ID, PublishTime: key.PublishTime})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].PublishTime.After(infos[j].PublishTime)
	})
	if start >= len(infos) {
		return nil, nil
	}
	end := start + count
	if end > len(infos) {
		end = len(infos)
	}
	return infos[start:end], nil
}

func cloneKey(key *Key) *Key {
	clone := *key
	clone.Data = append([]byte(nil), key.Data...)
	return &clone
}
