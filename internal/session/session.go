// Package session issues, verifies, renews, and revokes opaque sessions.
//
// Sessions are sliding-window: each successful VerifyAndRenew pushes the
// deadline forward by the kind's duration. Expiry is detected lazily on
// access; there is no background sweep, so a session may outlive its nominal
// deadline in the store until someone touches it. That is an accepted
// trade-off, not a defect.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"undertone/pkg/domain"
)

// Kind distinguishes the two subject kinds a session can authenticate.
type Kind string

const (
	KindUser  Kind = "user"
	KindAdmin Kind = "admin"
)

// Session is one authenticated presence. At most one row exists per ID.
type Session struct {
	ID          domain.SessionID
	SubjectID   uuid.UUID
	Kind        Kind
	CreatedAt   time.Time
	LastRenewal time.Time
}

// Principal is the resolved identity behind a verified session.
type Principal struct {
	SessionID domain.SessionID
	SubjectID uuid.UUID
	Kind      Kind
}

// SubjectStatus reports whether the subject behind a session still exists and
// may use it.
type SubjectStatus struct {
	Exists bool
	Active bool
}

// SubjectResolver looks up subject state at verification time. A missing
// subject is an invariant violation (sessions are revoked with their
// subject); an inactive one covers soft-deleted users and logged-out admins.
type SubjectResolver interface {
	SubjectStatus(ctx context.Context, kind Kind, subjectID uuid.UUID) (SubjectStatus, error)
}

// PresenceSink is notified when a user's last live session disappears.
type PresenceSink interface {
	SetOffline(ctx context.Context, userID domain.UserID) error
}

// Store is the persistence port. Renew is the concurrency-sensitive
// operation: it must atomically re-check staleness against cutoff and update
// the renewal timestamp, so a renewal can neither interleave with a
// concurrent renewal nor resurrect a session an expiry check is deleting.
type Store interface {
	Create(ctx context.Context, sess *Session) error
	Find(ctx context.Context, id domain.SessionID) (*Session, error)
	// Renew sets LastRenewal to now iff the current value is not before
	// cutoff. Returns sentinel.ErrNotFound if the row is gone and
	// sentinel.ErrExpired if it is stale.
	Renew(ctx context.Context, id domain.SessionID, now, cutoff time.Time) (*Session, error)
	Delete(ctx context.Context, id domain.SessionID) error
	// CountLive counts the subject's sessions renewed at or after cutoff.
	CountLive(ctx context.Context, kind Kind, subjectID uuid.UUID, cutoff time.Time) (int, error)
	// DeleteBySubject revokes every session of one subject (account
	// deletion).
	DeleteBySubject(ctx context.Context, kind Kind, subjectID uuid.UUID) error
}
