// Package domain defines the typed identifiers shared across services.
//
// Every entity gets its own UUID-backed type so the compiler rejects
// cross-entity mixups (passing a BoardID where a UserID is expected).
// Parse helpers validate at trust boundaries: IDs must be valid,
// non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "undertone/pkg/domain-errors"
)

type (
	// UserID identifies a chat user account.
	UserID uuid.UUID
	// AdminID identifies an administrator account.
	AdminID uuid.UUID
	// SessionID identifies a user or admin session.
	SessionID uuid.UUID
	// BoardID identifies a message board.
	BoardID uuid.UUID
	// MessageID identifies a single board message.
	MessageID uuid.UUID
	// KeyID identifies a published public-key blob.
	KeyID uuid.UUID
)

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewAdminID() AdminID     { return AdminID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewBoardID() BoardID     { return BoardID(uuid.New()) }
func NewMessageID() MessageID { return MessageID(uuid.New()) }
func NewKeyID() KeyID         { return KeyID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id AdminID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id BoardID) String() string   { return uuid.UUID(id).String() }
func (id MessageID) String() string { return uuid.UUID(id).String() }
func (id KeyID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AdminID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BoardID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id KeyID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parse(s)
	return UserID(u), err
}

func ParseAdminID(s string) (AdminID, error) {
	u, err := parse(s)
	return AdminID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parse(s)
	return SessionID(u), err
}

func ParseBoardID(s string) (BoardID, error) {
	u, err := parse(s)
	return BoardID(u), err
}

func ParseMessageID(s string) (MessageID, error) {
	u, err := parse(s)
	return MessageID(u), err
}

func ParseKeyID(s string) (KeyID, error) {
	u, err := parse(s)
	return KeyID(u), err
}
