// Package keyring stores the public-key blobs users publish for
// encrypted boards. Key material is opaque to the server; it is stored
// and served byte for byte.
package keyring

import (
	"context"
	"time"

	"undertone/pkg/domain"
)

// Key is a published public key.
type Key struct {
	ID          domain.KeyID
	OwnerID     domain.UserID
	Data        []byte
	PublishTime time.Time
}

// Info is the listing view of a key, without the key material.
type Info struct {
	ID          domain.KeyID
	PublishTime time.Time
}

// Store persists keys. List returns newest first.
type Store interface {
	Create(ctx context.Context, key *Key) error
	Find(ctx context.Context, id domain.KeyID) (*Key, error)
	ListForOwner(ctx context.Context, ownerID domain.UserID, start, count int) ([]Info, error)
}
