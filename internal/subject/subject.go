// Package subject connects the session manager's subject ports to the user
// and admin services. The session manager is constructed before either
// service (both need it), so the adapters here are assigned their targets
// after construction.
package subject

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"undertone/internal/session"
	"undertone/pkg/domain"
)

// UserResolver is the slice of the user service the resolver needs.
type UserResolver interface {
	SubjectStatus(ctx context.Context, id domain.UserID) (session.SubjectStatus, error)
}

// AdminResolver is the slice of the admin service the resolver needs.
type AdminResolver interface {
	SubjectStatus(ctx context.Context, id domain.AdminID) (session.SubjectStatus, error)
}

// Resolver dispatches subject checks by session kind. Users and Admins must
// be assigned before the first request is served.
type Resolver struct {
	Users  UserResolver
	Admins AdminResolver
}

func (r *Resolver) SubjectStatus(ctx context.Context, kind session.Kind, subjectID uuid.UUID) (session.SubjectStatus, error) {
	switch kind {
	case session.KindUser:
		if r.Users == nil {
			return session.SubjectStatus{}, fmt.Errorf("user resolver not wired")
		}
		return r.Users.SubjectStatus(ctx, domain.UserID(subjectID))
	case session.KindAdmin:
		if r.Admins == nil {
			return session.SubjectStatus{}, fmt.Errorf("admin resolver not wired")
		}
		return r.Admins.SubjectStatus(ctx, domain.AdminID(subjectID))
	default:
		return session.SubjectStatus{}, fmt.Errorf("unknown session kind %q", kind)
	}
}

// Directory answers whether a user account exists and can be targeted by
// relationship operations. Deleted accounts are treated as absent.
type Directory struct {
	Users UserResolver
}

func (d *Directory) Exists(ctx context.Context, id domain.UserID) (bool, error) {
	if d.Users == nil {
		return false, fmt.Errorf("user resolver not wired")
	}
	status, err := d.Users.SubjectStatus(ctx, id)
	if err != nil {
		return false, err
	}
	return status.Exists && status.Active, nil
}

// OfflineSink is the slice of the user service the presence forwarder needs.
type OfflineSink interface {
	SetOffline(ctx context.Context, id domain.UserID) error
}

// Presence forwards the session manager's offline notifications to the user
// service. Target is assigned after construction.
type Presence struct {
	Target OfflineSink
}

func (p *Presence) SetOffline(ctx context.Context, id domain.UserID) error {
	if p.Target == nil {
		return nil
	}
	return p.Target.SetOffline(ctx, id)
}
