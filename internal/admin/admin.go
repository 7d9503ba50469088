// Package admin implements the administrator challenge-response login and
// the permission-gated operations behind it.
//
// The login is a two step protocol: the admin fetches a random challenge,
// derives a response from their secret and the challenge, and submits it.
// The stored challenge is replaced on every verification attempt, success or
// failure, so a captured response is worthless the moment it is used.
package admin

import (
	"context"

	"undertone/pkg/domain"
)

// Admin is one administrator row. Challenge always holds the single
// outstanding challenge; LoggedIn gates both challenge issuance and session
// verification, which is what limits each admin to one concurrent login.
type Admin struct {
	ID        domain.AdminID
	Name      string
	Secret    []byte
	Challenge []byte
	LoggedIn  bool
	Grants    []string
}

// Store is the persistence port.
//
// Mutate runs fn under per-row serialization and persists the row even when
// fn returns an error; a failed verification must still persist its rotated
// challenge.
type Store interface {
	// Create inserts the admin. sentinel.ErrConflict when the name is
	// taken.
	Create(ctx context.Context, a *Admin) error
	FindByID(ctx context.Context, id domain.AdminID) (*Admin, error)
	FindByName(ctx context.Context, name string) (*Admin, error)
	Mutate(ctx context.Context, id domain.AdminID, fn func(*Admin) error) (*Admin, error)
}
