// Package audit records privileged actions in an append-only log.
//
// Entries are written synchronously on the request path; there is no update
// or delete operation. Reporting (the admin auditlog endpoint) reads through
// List but never mutates.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"undertone/pkg/domain"
)

// Entry is a single audit record. Ordering key is Timestamp.
type Entry struct {
	ID        uuid.UUID
	ActorID   domain.AdminID
	Action    string
	Details   string
	Timestamp time.Time
}

// Filter narrows a List call. Zero values leave the dimension open.
type Filter struct {
	Action  string
	ActorID domain.AdminID
	From    time.Time
	To      time.Time
	Start   int
	Count   int
}

// Store is the persistence port. Append must preserve insertion; List returns
// entries newest first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
}
