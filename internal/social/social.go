// Package social tracks the relationships between users: symmetric
// friendships, one-directional blocks, and the friend requests that
// turn into friendships when accepted.
package social

import (
	"context"

	"undertone/pkg/domain"
)

// Request is a pending friend request from Sender to Recipient.
type Request struct {
	SenderID    domain.UserID
	RecipientID domain.UserID
}

// Store persists relationship records. Friendships are stored as two
// directed rows so each side's listing is a plain owner scan; the
// service keeps the pair in sync.
type Store interface {
	AddFriend(ctx context.Context, ownerID, friendID domain.UserID) error
	RemoveFriend(ctx context.Context, ownerID, friendID domain.UserID) error
	IsFriend(ctx context.Context, ownerID, friendID domain.UserID) (bool, error)
	ListFriends(ctx context.Context, ownerID domain.UserID, start, count int) ([]domain.UserID, error)

	AddBlock(ctx context.Context, ownerID, blockedID domain.UserID) error
	RemoveBlock(ctx context.Context, ownerID, blockedID domain.UserID) error
	IsBlocked(ctx context.Context, ownerID, blockedID domain.UserID) (bool, error)
	ListBlocked(ctx context.Context, ownerID domain.UserID, start, count int) ([]domain.UserID, error)

	AddRequest(ctx context.Context, senderID, recipientID domain.UserID) error
	RemoveRequest(ctx context.Context, senderID, recipientID domain.UserID) error
	HasRequest(ctx context.Context, senderID, recipientID domain.UserID) (bool, error)
	ListRequests(ctx context.Context, recipientID domain.UserID, start, count int) ([]Request, error)
}

// Directory answers whether a user exists, so requests cannot target
// missing accounts. A nil Directory skips the check.
type Directory interface {
	Exists(ctx context.Context, id domain.UserID) (bool, error)
}
