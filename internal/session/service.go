package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"undertone/internal/platform/metrics"
	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/platform/sentinel"
	"undertone/pkg/requestcontext"
)

// Manager owns the session lifecycle for both subject kinds.
type Manager struct {
	store    Store
	resolver SubjectResolver
	presence PresenceSink
	ttl      map[Kind]time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithPresenceSink registers the hook that flips a user offline when their
// last live session is revoked.
func WithPresenceSink(sink PresenceSink) Option {
	return func(m *Manager) { m.presence = sink }
}

func WithTTL(kind Kind, d time.Duration) Option {
	return func(m *Manager) { m.ttl[kind] = d }
}

// New constructs a Manager. Default durations match the server config
// defaults: users slide 15 minutes, admins 2.
func New(store Store, resolver SubjectResolver, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		resolver: resolver,
		ttl: map[Kind]time.Duration{
			KindUser:  15 * time.Minute,
			KindAdmin: 2 * time.Minute,
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL exposes the sliding duration for a kind (the about endpoint reports
// it).
func (m *Manager) TTL(kind Kind) time.Duration {
	return m.ttl[kind]
}

// Create allocates an opaque session id for the subject and stores both
// timestamps as the request-scoped now.
func (m *Manager) Create(ctx context.Context, subjectID uuid.UUID, kind Kind) (domain.SessionID, error) {
	now := requestcontext.Now(ctx)
	sess := &Session{
		ID:          domain.NewSessionID(),
		SubjectID:   subjectID,
		Kind:        kind,
		CreatedAt:   now,
		LastRenewal: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return domain.SessionID{}, dErrors.Wrap(err, dErrors.CodeInternal, "create session")
	}
	if m.metrics != nil {
		m.metrics.SessionsCreated.WithLabelValues(string(kind)).Inc()
	}
	m.logger.InfoContext(ctx, "session created",
		"session_id", sess.ID.String(),
		"kind", string(kind),
	)
	return sess.ID, nil
}

// Verify checks a session without renewing it. An expired user session is
// deleted as a side effect of the check; admin sessions are left in place so
// logout can still reference them.
func (m *Manager) Verify(ctx context.Context, id domain.SessionID) (Principal, error) {
	sess, err := m.find(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	if err := m.checkExpiry(ctx, sess); err != nil {
		return Principal{}, err
	}
	if err := m.checkSubject(ctx, sess); err != nil {
		return Principal{}, err
	}
	return Principal{SessionID: sess.ID, SubjectID: sess.SubjectID, Kind: sess.Kind}, nil
}

// VerifyAndRenew is Verify plus an atomic slide of the deadline. The renewal
// and any concurrent expiry deletion are serialized per session id by the
// store, so a renewal never resurrects a session that was concurrently
// detected expired.
func (m *Manager) VerifyAndRenew(ctx context.Context, id domain.SessionID) (Principal, error) {
	sess, err := m.find(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	if err := m.checkExpiry(ctx, sess); err != nil {
		return Principal{}, err
	}
	if err := m.checkSubject(ctx, sess); err != nil {
		return Principal{}, err
	}

	now := requestcontext.Now(ctx)
	cutoff := now.Add(-m.ttl[sess.Kind])
	renewed, err := m.store.Renew(ctx, id, now, cutoff)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return Principal{}, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	case errors.Is(err, sentinel.ErrExpired):
		// Lost the race against expiry between the check and the renew.
		return Principal{}, m.expire(ctx, sess)
	case err != nil:
		return Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "renew session")
	}

	return Principal{SessionID: renewed.ID, SubjectID: renewed.SubjectID, Kind: renewed.Kind}, nil
}

// Revoke deletes the session. For user sessions the subject's presence is
// recomputed: no other live session means the user goes offline.
func (m *Manager) Revoke(ctx context.Context, id domain.SessionID) error {
	sess, err := m.find(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete session")
	}
	if sess.Kind == KindUser {
		if err := m.recomputePresence(ctx, sess.SubjectID); err != nil {
			return err
		}
	}
	m.logger.InfoContext(ctx, "session revoked", "session_id", id.String())
	return nil
}

// Peek returns the raw session row without expiry or subject checks. Admin
// logout uses it to reap sessions that have already slid past their
// deadline.
func (m *Manager) Peek(ctx context.Context, id domain.SessionID) (*Session, error) {
	return m.find(ctx, id)
}

// RevokeAllForSubject deletes every session of one subject. Used when an
// account is soft-deleted.
func (m *Manager) RevokeAllForSubject(ctx context.Context, kind Kind, subjectID uuid.UUID) error {
	if err := m.store.DeleteBySubject(ctx, kind, subjectID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete subject sessions")
	}
	return nil
}

func (m *Manager) find(ctx context.Context, id domain.SessionID) (*Session, error) {
	sess, err := m.store.Find(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find session")
	}
	return sess, nil
}

func (m *Manager) checkExpiry(ctx context.Context, sess *Session) error {
	now := requestcontext.Now(ctx)
	if !now.After(sess.LastRenewal.Add(m.ttl[sess.Kind])) {
		return nil
	}
	return m.expire(ctx, sess)
}

// expire reports the Expired error and lazily deletes the row for user
// sessions.
func (m *Manager) expire(ctx context.Context, sess *Session) error {
	if m.metrics != nil {
		m.metrics.SessionsExpired.Inc()
	}
	if sess.Kind == KindUser {
		if err := m.store.Delete(ctx, sess.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete expired session")
		}
	}
	return dErrors.New(dErrors.CodeExpired, "SessionExpired")
}

func (m *Manager) checkSubject(ctx context.Context, sess *Session) error {
	status, err := m.resolver.SubjectStatus(ctx, sess.Kind, sess.SubjectID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "resolve session subject")
	}
	if !status.Exists {
		// A session referencing a missing subject should never happen.
		m.logger.ErrorContext(ctx, "session references missing subject",
			"session_id", sess.ID.String(),
			"kind", string(sess.Kind),
		)
		return dErrors.New(dErrors.CodeInternal, "SubjectMissing")
	}
	if !status.Active {
		return dErrors.New(dErrors.CodeForbidden, "SubjectInactive")
	}
	return nil
}

func (m *Manager) recomputePresence(ctx context.Context, subjectID uuid.UUID) error {
	if m.presence == nil {
		return nil
	}
	now := requestcontext.Now(ctx)
	cutoff := now.Add(-m.ttl[KindUser])
	live, err := m.store.CountLive(ctx, KindUser, subjectID, cutoff)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "count live sessions")
	}
	if live > 0 {
		return nil
	}
	if err := m.presence.SetOffline(ctx, domain.UserID(subjectID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set presence offline")
	}
	return nil
}
