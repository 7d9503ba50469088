// Package user manages chat accounts: registration, password login under the
// lockout policy, presence, and soft deletion.
package user

import (
	"context"
	"time"

	"undertone/internal/lockout"
	"undertone/pkg/domain"
)

// Presence is the user's advertised availability.
type Presence string

const (
	PresenceOffline Presence = "offline"
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceBusy    Presence = "busy"
)

// User is one account row. Secret and Salt are scrubbed on soft delete;
// Lockout rides on the same row so counter updates and credential reads stay
// in one place.
type User struct {
	ID         domain.UserID
	Name       string
	Secret     []byte
	Salt       []byte
	Presence   Presence
	LastActive time.Time
	Status     string
	Lockout    lockout.State
	Deleted    bool
	CreatedAt  time.Time
}

// View is the read model Get returns. Presence, LastActive, and Status are
// only populated when Full is set (self or friend lookups).
type View struct {
	ID         domain.UserID
	Name       string
	Deleted    bool
	Full       bool
	Presence   Presence
	LastActive time.Time
	Status     string
}

// Store is the persistence port.
//
// Mutate runs fn on the row under per-row serialization and persists the row
// afterwards even when fn returns an error; business failures (a wrong
// password, a lock) must not roll back the counter updates they caused. The
// returned user reflects the persisted state.
type Store interface {
	// Create inserts the user. sentinel.ErrConflict when the name is taken.
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id domain.UserID) (*User, error)
	// FindByName matches the exact current name. sentinel.ErrNotFound
	// covers renamed (deleted) accounts too.
	FindByName(ctx context.Context, name string) (*User, error)
	Mutate(ctx context.Context, id domain.UserID, fn func(*User) error) (*User, error)
}

// KeySink receives the optional public key supplied at registration.
type KeySink interface {
	Add(ctx context.Context, owner domain.UserID, keyData []byte) (domain.KeyID, error)
}

// FriendChecker decides whether a viewer gets the full profile view.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b domain.UserID) (bool, error)
}
