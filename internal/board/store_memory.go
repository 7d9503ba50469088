package board

import (
	"context"
	"sort"
	"sync"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

type memberKey struct {
	board domain.BoardID
	user  domain.UserID
}

// InMemoryStore keeps boards, membership, and messages in mutex-guarded
// maps.
type InMemoryStore struct {
	mu       sync.RWMutex
	boards   map[domain.BoardID]*Board
	members  map[memberKey]struct{}
	messages map[domain.BoardID][]*Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		boards:   make(map[domain.BoardID]*Board),
		members:  make(map[memberKey]struct{}),
		messages: make(map[domain.BoardID][]*Message),
	}
}

func (s *InMemoryStore) Create(_ context.Context, b *Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.boards[b.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *b
	s.boards[b.ID] = &clone
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id domain.BoardID) (*Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (s *InMemoryStore) FindDirect(_ context.Context, a, b domain.UserID) (*Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nameAB := "!direct_" + b.String() + "_" + a.String()
	nameBA := "!direct_" + a.String() + "_" + b.String()
	for _, board := range s.boards {
		if !board.IsDirect {
			continue
		}
		if (board.OwnerID == a && board.Name == nameAB) ||
			(board.OwnerID == b && board.Name == nameBA) {
			clone := *board
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Update(_ context.Context, b *Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[b.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *b
	s.boards[b.ID] = &clone
	return nil
}

func (s *InMemoryStore) ListForMember(_ context.Context, userID domain.UserID, start, count int) ([]Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var boards []Board
	for key := range s.members {
		if key.user != userID {
			continue
		}
		if b, ok := s.boards[key.board]; ok {
			boards = append(boards, *b)
		}
	}
	sortBoards(boards)
	return pageBoards(boards, start, count), nil
}

func (s *InMemoryStore) ListOwned(_ context.Context, ownerID domain.UserID, start, count int) ([]Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var boards []Board
	for _, b := range s.boards {
		if b.OwnerID == ownerID {
			boards = append(boards, *b)
		}
	}
	sortBoards(boards)
	return pageBoards(boards, start, count), nil
}

func (s *InMemoryStore) AddMember(_ context.Context, boardID domain.BoardID, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{board: boardID, user: userID}
	if _, exists := s.members[key]; exists {
		return sentinel.ErrConflict
	}
	s.members[key] = struct{}{}
	return nil
}

func (s *InMemoryStore) RemoveMember(_ context.Context, boardID domain.BoardID, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{board: boardID, user: userID}
	if _, exists := s.members[key]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.members, key)
	return nil
}

func (s *InMemoryStore) IsMember(_ context.Context, boardID domain.BoardID, userID domain.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[memberKey{board: boardID, user: userID}]
	return ok, nil
}

func (s *InMemoryStore) ListMembers(_ context.Context, boardID domain.BoardID) ([]domain.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var members []domain.UserID
	for key := range s.members {
		if key.board == boardID {
			members = append(members, key.user)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].String() < members[j].String()
	})
	return members, nil
}

func (s *InMemoryStore) AppendMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *m
	clone.Content = append([]byte(nil), m.Content...)
	s.messages[m.BoardID] = append(s.messages[m.BoardID], &clone)
	return nil
}

func (s *InMemoryStore) FindMessage(_ context.Context, boardID domain.BoardID, id domain.MessageID) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages[boardID] {
		if m.ID == id {
			clone := *m
			clone.Content = append([]byte(nil), m.Content...)
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListMessages(_ context.Context, boardID domain.BoardID, filter MessageFilter) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var messages []Message
	for _, m := range s.messages[boardID] {
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.OnlySystem && !m.IsSystem {
			continue
		}
		messages = append(messages, *m)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})

	start, count := filter.Start, filter.Count
	if start < 0 {
		start = 0
	}
	if start >= len(messages) {
		return nil, nil
	}
	end := len(messages)
	if count > 0 && start+count < end {
		end = start + count
	}
	return messages[start:end], nil
}

func sortBoards(boards []Board) {
	sort.Slice(boards, func(i, j int) bool {
		return boards[i].ID.String() < boards[j].ID.String()
	})
}

func pageBoards(boards []Board, start, count int) []Board {
	if start < 0 {
		start = 0
	}
	if start >= len(boards) {
		return nil
	}
	end := len(boards)
	if count > 0 && start+count < end {
		end = start + count
	}
	return boards[start:end]
}
