package social

import (
	"context"
	"sort"
	"sync"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

type pairKey struct {
	owner domain.UserID
	other domain.UserID
}

// InMemoryStore keeps relationship records in process memory. Listings
// are ordered by the counterpart's ID so pagination is stable.
type InMemoryStore struct {
	mu       sync.RWMutex
	friends  map[pairKey]struct{}
	blocks   map[pairKey]struct{}
	requests map[pairKey]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		friends:  make(map[pairKey]struct{}),
		blocks:   make(map[pairKey]struct{}),
		requests: make(map[pairKey]struct{}),
	}
}

func (s *InMemoryStore) AddFriend(_ context.Context, ownerID, friendID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{ownerID, friendID}
	if _, ok := s.friends[key]; ok {
		return sentinel.ErrConflict
	}
	s.friends[key] = struct{}{}
	return nil
}

func (s *InMemoryStore) RemoveFriend(_ context.Context, ownerID, friendID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{ownerID, friendID}
	if _, ok := s.friends[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.friends, key)
	return nil
}

func (s *InMemoryStore) IsFriend(_ context.Context, ownerID, friendID domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.friends[pairKey{ownerID, friendID}]
	return ok, nil
}

func (s *InMemoryStore) ListFriends(_ context.Context, ownerID domain.UserID, start, count int) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageOthers(s.friends, ownerID, start, count), nil
}

func (s *InMemoryStore) AddBlock(_ context.Context, ownerID, blockedID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{ownerID, blockedID}
	if _, ok := s.blocks[key]; ok {
		return sentinel.ErrConflict
	}
	s.blocks[key] = struct{}{}
	return nil
}

func (s *InMemoryStore) RemoveBlock(_ context.Context, ownerID, blockedID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{ownerID, blockedID}
	if _, ok := s.blocks[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.blocks, key)
	return nil
}

func (s *InMemoryStore) IsBlocked(_ context.Context, ownerID, blockedID domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[pairKey{ownerID, blockedID}]
	return ok, nil
}

func (s *InMemoryStore) ListBlocked(_ context.Context, ownerID domain.UserID, start, count int) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageOthers(s.blocks, ownerID, start, count), nil
}

func (s *InMemoryStore) AddRequest(_ context.Context, senderID, recipientID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{senderID, recipientID}
	if _, ok := s.requests[key]; ok {
		return sentinel.ErrConflict
	}
	s.requests[key] = struct{}{}
	return nil
}

func (s *InMemoryStore) RemoveRequest(_ context.Context, senderID, recipientID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{senderID, recipientID}
	if _, ok := s.requests[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.requests, key)
	return nil
}

func (s *InMemoryStore) HasRequest(_ context.Context, senderID, recipientID domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.requests[pairKey{senderID, recipientID}]
	return ok, nil
}

func (s *InMemoryStore) ListRequests(_ context.Context, recipientID domain.UserID, start, count int) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var requests []Request
	for key := range s.requests {
		if key.other == recipientID {
			requests = append(requests, Request{SenderID: key.owner, RecipientID: key.other})
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].SenderID.String() < requests[j].SenderID.String()
	})
	if start >= len(requests) {
		return nil, nil
	}
	end := start + count
	if end > len(requests) {
		end = len(requests)
	}
	return requests[start:end], nil
}

func pageOthers(records map[pairKey]struct{}, ownerID domain.UserID, start, count int) []domain.UserID {
	var ids []domain.UserID
	for key := range records {
		if key.owner == ownerID {
			ids = append(ids, key.other)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if start >= len(ids) {
		return nil
	}
	end := start + count
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}
