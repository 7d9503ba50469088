package board

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/platform/sentinel"
	"undertone/pkg/requestcontext"
)

var nameRule = regexp.MustCompile(`^[a-z_][a-z0-9_]{4,}$`)

// Service owns board business rules: naming, ownership checks, membership
// gating, and the system messages that record member changes.
type Service struct {
	store    Store
	friends  FriendChecker
	pageSize int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = n }
}

func WithFriendChecker(fc FriendChecker) Option {
	return func(s *Service) { s.friends = fc }
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

// Create opens a board with the creator as owner and first member.
func (s *Service) Create(ctx context.Context, ownerID domain.UserID, name string, encryption Encryption) (domain.BoardID, error) {
	if !nameRule.MatchString(name) {
		return domain.BoardID{}, dErrors.New(dErrors.CodeInvalidInput, "NameInvalid")
	}
	switch encryption {
	case EncryptionNone, EncryptionSharedKey, EncryptionGnuPG:
	default:
		return domain.BoardID{}, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest")
	}

	b := &Board{
		ID:         domain.NewBoardID(),
		Name:       name,
		OwnerID:    ownerID,
		Encryption: encryption,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return domain.BoardID{}, s.translate(err)
	}
	if err := s.store.AddMember(ctx, b.ID, ownerID); err != nil {
		return domain.BoardID{}, s.translate(err)
	}
	s.logger.InfoContext(ctx, "board created", "board_id", b.ID.String(), "name", name)
	return b.ID, nil
}

// CreateDirect opens (or returns the existing) direct-message board between
// two friends. The creator owns the board; both participants are members.
func (s *Service) CreateDirect(ctx context.Context, creatorID, recipientID domain.UserID) (domain.BoardID, error) {
	if s.friends != nil {
		friends, err := s.friends.AreFriends(ctx, creatorID, recipientID)
		if err != nil {
			return domain.BoardID{}, dErrors.Wrap(err, dErrors.CodeInternal, "check friendship")
		}
		if !friends {
			return domain.BoardID{}, dErrors.New(dErrors.CodeForbidden, "NotFriends")
		}
	}

	if existing, err := s.store.FindDirect(ctx, creatorID, recipientID); err == nil {
		return existing.ID, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return domain.BoardID{}, s.translate(err)
	}

	b := &Board{
		ID:         domain.NewBoardID(),
		Name:       "!direct_" + recipientID.String() + "_" + creatorID.String(),
		OwnerID:    creatorID,
		Encryption: EncryptionGnuPG,
		IsDirect:   true,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return domain.BoardID{}, s.translate(err)
	}
	for _, member := range []domain.UserID{creatorID, recipientID} {
		if err := s.store.AddMember(ctx, b.ID, member); err != nil {
			return domain.BoardID{}, s.translate(err)
		}
	}
	return b.ID, nil
}

// Get returns the board for a member; non-members are refused.
func (s *Service) Get(ctx context.Context, viewerID domain.UserID, id domain.BoardID) (*Board, error) {
	b, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, s.translate(err)
	}
	if err := s.requireMember(ctx, id, viewerID); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns the viewer's boards: membership by default, ownership when
// onlyOwned is set.
func (s *Service) List(ctx context.Context, viewerID domain.UserID, onlyOwned bool, start, count int) ([]Board, error) {
	start, count = s.page(start, count)
	if onlyOwned {
		boards, err := s.store.ListOwned(ctx, viewerID, start, count)
		return boards, s.translate(err)
	}
	boards, err := s.store.ListForMember(ctx, viewerID, start, count)
	return boards, s.translate(err)
}

// Members lists the membership for a member.
func (s *Service) Members(ctx context.Context, viewerID domain.UserID, id domain.BoardID) ([]domain.UserID, error) {
	if _, err := s.store.Find(ctx, id); err != nil {
		return nil, s.translate(err)
	}
	if err := s.requireMember(ctx, id, viewerID); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, id)
	return members, s.translate(err)
}

// AddMember adds a user; owner only. A system message records the change.
func (s *Service) AddMember(ctx context.Context, actorID domain.UserID, id domain.BoardID, userID domain.UserID) error {
	b, err := s.store.Find(ctx, id)
	if err != nil {
		return s.translate(err)
	}
	if b.OwnerID != actorID {
		return dErrors.New(dErrors.CodeForbidden, "NotAuthorized")
	}

	if err := s.store.AddMember(ctx, id, userID); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "AlreadyAdded")
		}
		return s.translate(err)
	}
	return s.recordMemberChange(ctx, b, "AddMember", userID)
}

// RemoveMember removes a user. The owner may remove anyone; members may
// remove themselves (leave).
func (s *Service) RemoveMember(ctx context.Context, actorID domain.UserID, id domain.BoardID, userID domain.UserID) error {
	b, err := s.store.Find(ctx, id)
	if err != nil {
		return s.translate(err)
	}
	if b.OwnerID != actorID && actorID != userID {
		return dErrors.New(dErrors.CodeForbidden, "NotAuthorized")
	}

	if err := s.store.RemoveMember(ctx, id, userID); err != nil {
		return s.translate(err)
	}
	return s.recordMemberChange(ctx, b, "RemoveMember", userID)
}

// PostMessage appends a message from a member. Non-system messages bump the
// board's significant-update time.
func (s *Service) PostMessage(ctx context.Context, authorID domain.UserID, id domain.BoardID, content []byte, msgType string, isSystem bool) (domain.MessageID, error) {
	b, err := s.store.Find(ctx, id)
	if err != nil {
		return domain.MessageID{}, s.translate(err)
	}
	if err := s.requireMember(ctx, id, authorID); err != nil {
		return domain.MessageID{}, err
	}
	if msgType == "" {
		msgType = "Message"
	}

	now := requestcontext.Now(ctx)
	m := &Message{
		ID:        domain.NewMessageID(),
		BoardID:   id,
		AuthorID:  authorID,
		Type:      msgType,
		Content:   content,
		IsSystem:  isSystem,
		Timestamp: now,
	}
	if err := s.store.AppendMessage(ctx, m); err != nil {
		return domain.MessageID{}, s.translate(err)
	}

	b.LastUpdate = now
	if !isSystem {
		b.LastSignificantUpdate = now
	}
	if err := s.store.Update(ctx, b); err != nil {
		return domain.MessageID{}, s.translate(err)
	}
	return m.ID, nil
}

// Messages lists board messages newest first for a member.
func (s *Service) Messages(ctx context.Context, viewerID domain.UserID, id domain.BoardID, filter MessageFilter) ([]Message, error) {
	if _, err := s.store.Find(ctx, id); err != nil {
		return nil, s.translate(err)
	}
	if err := s.requireMember(ctx, id, viewerID); err != nil {
		return nil, err
	}
	filter.Start, filter.Count = s.page(filter.Start, filter.Count)
	messages, err := s.store.ListMessages(ctx, id, filter)
	return messages, s.translate(err)
}

// Message fetches a single message's full content for a member.
func (s *Service) Message(ctx context.Context, viewerID domain.UserID, boardID domain.BoardID, id domain.MessageID) (*Message, error) {
	if _, err := s.store.Find(ctx, boardID); err != nil {
		return nil, s.translate(err)
	}
	if err := s.requireMember(ctx, boardID, viewerID); err != nil {
		return nil, err
	}
	m, err := s.store.FindMessage(ctx, boardID, id)
	if err != nil {
		return nil, s.translate(err)
	}
	return m, nil
}

func (s *Service) requireMember(ctx context.Context, id domain.BoardID, userID domain.UserID) error {
	member, err := s.store.IsMember(ctx, id, userID)
	if err != nil {
		return s.translate(err)
	}
	if !member {
		return dErrors.New(dErrors.CodeForbidden, "NotAuthorized")
	}
	return nil
}

// recordMemberChange appends the system message and bumps LastUpdate.
func (s *Service) recordMemberChange(ctx context.Context, b *Board, change string, userID domain.UserID) error {
	now := requestcontext.Now(ctx)
	m := &Message{
		ID:        domain.NewMessageID(),
		BoardID:   b.ID,
		Type:      change,
		Content:   []byte(userID.String()),
		IsSystem:  true,
		Timestamp: now,
	}
	if err := s.store.AppendMessage(ctx, m); err != nil {
		return s.translate(err)
	}
	b.LastUpdate = now
	return s.translate(s.store.Update(ctx, b))
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
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "board store")
}
