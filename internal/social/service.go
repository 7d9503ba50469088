package social

import (
	"context"
	"errors"
	"log/slog"

	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/platform/sentinel"
)

// Service owns the relationship rules: a friendship only exists as a
// symmetric pair, requests collapse into friendships on acceptance, and
// blocks belong to their owner alone.
type Service struct {
	store     Store
	directory Directory
	pageSize  int
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithDirectory(d Directory) Option {
	return func(s *Service) { s.directory = d }
}

func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = n }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		pageSize: 500,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendRequest files a friend request from sender to recipient.
func (s *Service) SendRequest(ctx context.Context, senderID, recipientID domain.UserID) error {
	if senderID == recipientID {
		return dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest")
	}
	if err := s.requireUser(ctx, recipientID); err != nil {
		return err
	}

	friends, err := s.store.IsFriend(ctx, senderID, recipientID)
	if err != nil {
		return s.translate(err)
	}
	if friends {
		return dErrors.New(dErrors.CodeConflict, "AlreadyFriends")
	}
	pending, err := s.store.HasRequest(ctx, senderID, recipientID)
	if err != nil {
		return s.translate(err)
	}
	if pending {
		return dErrors.New(dErrors.CodeConflict, "AlreadySent")
	}

	return s.translate(s.store.AddRequest(ctx, senderID, recipientID))
}

// AcceptRequest turns a pending request into a symmetric friendship.
func (s *Service) AcceptRequest(ctx context.Context, recipientID, senderID domain.UserID) error {
	pending, err := s.store.HasRequest(ctx, senderID, recipientID)
	if err != nil {
		return s.translate(err)
	}
	if !pending {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}

	if err := s.store.AddFriend(ctx, recipientID, senderID); err != nil {
		return s.translate(err)
	}
	if err := s.store.AddFriend(ctx, senderID, recipientID); err != nil {
		return s.translate(err)
	}
	if err := s.store.RemoveRequest(ctx, senderID, recipientID); err != nil {
		return s.translate(err)
	}
	s.logger.InfoContext(ctx, "friend request accepted",
		"sender_id", senderID.String(), "recipient_id", recipientID.String())
	return nil
}

// RejectRequest discards a pending request without creating a friendship.
func (s *Service) RejectRequest(ctx context.Context, recipientID, senderID domain.UserID) error {
	pending, err := s.store.HasRequest(ctx, senderID, recipientID)
	if err != nil {
		return s.translate(err)
	}
	if !pending {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	return s.translate(s.store.RemoveRequest(ctx, senderID, recipientID))
}

// Requests lists pending requests addressed to the recipient.
func (s *Service) Requests(ctx context.Context, recipientID domain.UserID, start, count int) ([]Request, error) {
	start, count = s.page(start, count)
	requests, err := s.store.ListRequests(ctx, recipientID, start, count)
	return requests, s.translate(err)
}

// Friends lists the owner's friends.
func (s *Service) Friends(ctx context.Context, ownerID domain.UserID, start, count int) ([]domain.UserID, error) {
	start, count = s.page(start, count)
	ids, err := s.store.ListFriends(ctx, ownerID, start, count)
	return ids, s.translate(err)
}

// RemoveFriend dissolves the friendship from both sides.
func (s *Service) RemoveFriend(ctx context.Context, ownerID, friendID domain.UserID) error {
	friends, err := s.store.IsFriend(ctx, ownerID, friendID)
	if err != nil {
		return s.translate(err)
	}
	if !friends {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}

	if err := s.store.RemoveFriend(ctx, ownerID, friendID); err != nil {
		return s.translate(err)
	}
	// The reverse row may already be gone if the pair got out of sync.
	if err := s.store.RemoveFriend(ctx, friendID, ownerID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return s.translate(err)
	}
	return nil
}

// AreFriends reports whether a symmetric friendship exists. It serves
// the friend checks of other services.
func (s *Service) AreFriends(ctx context.Context, a, b domain.UserID) (bool, error) {
	friends, err := s.store.IsFriend(ctx, a, b)
	return friends, s.translate(err)
}

// Block hides the blocked user from the owner.
func (s *Service) Block(ctx context.Context, ownerID, blockedID domain.UserID) error {
	if ownerID == blockedID {
		return dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest")
	}
	if err := s.requireUser(ctx, blockedID); err != nil {
		return err
	}

	blocked, err := s.store.IsBlocked(ctx, ownerID, blockedID)
	if err != nil {
		return s.translate(err)
	}
	if blocked {
		return dErrors.New(dErrors.CodeConflict, "AlreadyBlocked")
	}
	return s.translate(s.store.AddBlock(ctx, ownerID, blockedID))
}

// Unblock lifts a block.
func (s *Service) Unblock(ctx context.Context, ownerID, blockedID domain.UserID) error {
	blocked, err := s.store.IsBlocked(ctx, ownerID, blockedID)
	if err != nil {
		return s.translate(err)
	}
	if !blocked {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	return s.translate(s.store.RemoveBlock(ctx, ownerID, blockedID))
}

// Blocked lists the owner's blocked users.
func (s *Service) Blocked(ctx context.Context, ownerID domain.UserID, start, count int) ([]domain.UserID, error) {
	start, count = s.page(start, count)
	ids, err := s.store.ListBlocked(ctx, ownerID, start, count)
	return ids, s.translate(err)
}

func (s *Service) requireUser(ctx context.Context, id domain.UserID) error {
	if s.directory == nil {
		return nil
	}
	exists, err := s.directory.Exists(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up user")
	}
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	return nil
}

func (s *Service) page(start, count int) (int, int) {
	if start < 0 {
		start = 0
	}
	if count <= 0 || count > s.pageSize {
		count = s.pageSize
	}
	return start, count
}

func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "InvalidRequest")
	}
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "social store")
}
