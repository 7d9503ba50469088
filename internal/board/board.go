// Package board manages message boards, their membership, and their
// messages. Direct-message boards are ordinary boards with a reserved name
// and exactly two members.
package board

import (
	"context"
	"time"

	"undertone/pkg/domain"
)

// Encryption declares how a board's message contents are protected. The
// server never inspects content; the value is advisory for clients.
type Encryption string

const (
	EncryptionNone      Encryption = "none"
	EncryptionSharedKey Encryption = "sharedkey"
	EncryptionGnuPG     Encryption = "gnupg"
)

// Board is one message board. LastSignificantUpdate only moves on
// non-system messages, so clients can sort by real activity.
type Board struct {
	ID                    domain.BoardID
	Name                  string
	OwnerID               domain.UserID
	Encryption            Encryption
	IsDirect              bool
	LastUpdate            time.Time
	LastSignificantUpdate time.Time
}

// Message is one board entry. System messages (member changes) have no
// author.
type Message struct {
	ID        domain.MessageID
	BoardID   domain.BoardID
	AuthorID  domain.UserID
	Type      string
	Content   []byte
	IsSystem  bool
	Timestamp time.Time
}

// MessageFilter narrows a listing. Zero values leave the dimension open.
type MessageFilter struct {
	Type       string
	OnlySystem bool
	Start      int
	Count      int
}

// Store is the persistence port. FindDirect looks a direct board up by its
// two participants in either role order.
type Store interface {
	Create(ctx context.Context, b *Board) error
	Find(ctx context.Context, id domain.BoardID) (*Board, error)
	FindDirect(ctx context.Context, a, b domain.UserID) (*Board, error)
	Update(ctx context.Context, b *Board) error
	ListForMember(ctx context.Context, userID domain.UserID, start, count int) ([]Board, error)
	ListOwned(ctx context.Context, ownerID domain.UserID, start, count int) ([]Board, error)

	AddMember(ctx context.Context, boardID domain.BoardID, userID domain.UserID) error
	RemoveMember(ctx context.Context, boardID domain.BoardID, userID domain.UserID) error
	IsMember(ctx context.Context, boardID domain.BoardID, userID domain.UserID) (bool, error)
	ListMembers(ctx context.Context, boardID domain.BoardID) ([]domain.UserID, error)

	AppendMessage(ctx context.Context, m *Message) error
	FindMessage(ctx context.Context, boardID domain.BoardID, id domain.MessageID) (*Message, error)
	ListMessages(ctx context.Context, boardID domain.BoardID, filter MessageFilter) ([]Message, error)
}

// FriendChecker gates direct-message board creation.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b domain.UserID) (bool, error)
}
