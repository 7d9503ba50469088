package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a mutex-guarded map. Renew runs entirely
// under the write lock, which is what makes it atomic with respect to
// concurrent renewals and expiry deletions.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[domain.SessionID]*Session)}
}

func (s *InMemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *sess
	s.sessions[sess.ID] = &clone
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id domain.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *sess
	return &clone, nil
}

func (s *InMemoryStore) Renew(_ context.Context, id domain.SessionID, now, cutoff time.Time) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if sess.LastRenewal.Before(cutoff) {
		return nil, sentinel.ErrExpired
	}
	if now.After(sess.LastRenewal) {
		sess.LastRenewal = now
	}
	clone := *sess
	return &clone, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) CountLive(_ context.Context, kind Kind, subjectID uuid.UUID, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.Kind == kind && sess.SubjectID == subjectID && !sess.LastRenewal.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, kind Kind, subjectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.Kind == kind && sess.SubjectID == subjectID {
			delete(s.sessions, id)
		}
	}
	return nil
}
