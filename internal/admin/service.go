package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"undertone/internal/audit"
	"undertone/internal/authz"
	"undertone/internal/credential"
	"undertone/internal/platform/metrics"
	"undertone/internal/session"
	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/platform/sentinel"
)

// Service drives the challenge-response login state machine and authorizes
// admin operations against stored grants.
type Service struct {
	store    Store
	sessions *session.Manager
	audit    *audit.Logger
	creds    credential.Params
	pageSize int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = mx }
}

func WithCredentialParams(p credential.Params) Option {
	return func(s *Service) { s.creds = p }
}

// WithPageSize caps audit log pages.
func WithPageSize(n int) Option {
	return func(s *Service) { s.pageSize = n }
}

func New(store Store, sessions *session.Manager, auditLogger *audit.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sessions: sessions,
		audit:    auditLogger,
		creds:    credential.DefaultParams(),
		pageSize: 500,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueChallenge stores and returns a fresh random challenge. Refused while
// the admin is logged in; one login at a time per admin.
func (s *Service) IssueChallenge(ctx context.Context, id domain.AdminID) ([]byte, error) {
	var challenge []byte
	_, err := s.store.Mutate(ctx, id, func(a *Admin) error {
		if a.LoggedIn {
			return dErrors.New(dErrors.CodeConflict, "AdminLoggedIn")
		}
		fresh, err := s.creds.NewChallenge()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "generate challenge")
		}
		a.Challenge = fresh
		challenge = fresh
		return nil
	})
	if err != nil {
		return nil, s.translate(err)
	}
	if s.metrics != nil {
		s.metrics.AdminChallenges.WithLabelValues("issued").Inc()
	}
	return challenge, nil
}

// VerifyResponse completes the login. The comparison against the expected
// derivation is constant time, and the stored challenge is rotated whether
// or not the response matched; the old challenge is dead either way.
func (s *Service) VerifyResponse(ctx context.Context, id domain.AdminID, response []byte) (domain.SessionID, error) {
	matched := false
	_, err := s.store.Mutate(ctx, id, func(a *Admin) error {
		if a.LoggedIn {
			return dErrors.New(dErrors.CodeConflict, "AdminLoggedIn")
		}

		expected := s.creds.DeriveResponse(a.Secret, a.Challenge)
		matched = subtle.ConstantTimeCompare(response, expected) == 1

		fresh, err := s.creds.NewChallenge()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "generate challenge")
		}
		a.Challenge = fresh

		if !matched {
			return dErrors.New(dErrors.CodeUnauthorized, "IncorrectResponse")
		}
		a.LoggedIn = true
		return nil
	})
	if err != nil {
		err = s.translate(err)
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			if s.metrics != nil {
				s.metrics.AdminChallenges.WithLabelValues("failure").Inc()
			}
			if auditErr := s.audit.Append(ctx, id, "Login.Failure", ""); auditErr != nil {
				return domain.SessionID{}, auditErr
			}
		}
		return domain.SessionID{}, err
	}

	sessionID, err := s.sessions.Create(ctx, uuid.UUID(id), session.KindAdmin)
	if err != nil {
		return domain.SessionID{}, err
	}
	if s.metrics != nil {
		s.metrics.AdminChallenges.WithLabelValues("success").Inc()
	}
	if err := s.audit.Append(ctx, id, "Login.Success", ""); err != nil {
		return domain.SessionID{}, err
	}
	s.logger.InfoContext(ctx, "admin logged in", "admin_id", id.String())
	return sessionID, nil
}

// Renew slides the admin session deadline (the admin heartbeat).
func (s *Service) Renew(ctx context.Context, sessionID domain.SessionID) error {
	principal, err := s.sessions.VerifyAndRenew(ctx, sessionID)
	if err != nil {
		return err
	}
	if principal.Kind != session.KindAdmin {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	return nil
}

// Logout clears the login flag and revokes the session. It works on expired
// sessions too; this is the only path that reaps an abandoned admin session
// before its row is overwritten by the next login.
func (s *Service) Logout(ctx context.Context, sessionID domain.SessionID) error {
	sess, err := s.sessions.Peek(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Kind != session.KindAdmin {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}

	adminID := domain.AdminID(sess.SubjectID)
	if _, err := s.store.Mutate(ctx, adminID, func(a *Admin) error {
		a.LoggedIn = false
		return nil
	}); err != nil {
		return s.translate(err)
	}

	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	if err := s.audit.Append(ctx, adminID, "Logout", ""); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "admin logged out", "admin_id", adminID.String())
	return nil
}

// Authorize verifies the session and checks the admin's grants against
// action. Denials are audited; the caller only learns NotAuthorized.
func (s *Service) Authorize(ctx context.Context, sessionID domain.SessionID, action string) (domain.AdminID, error) {
	principal, err := s.sessions.Verify(ctx, sessionID)
	if err != nil {
		return domain.AdminID{}, err
	}
	if principal.Kind != session.KindAdmin {
		return domain.AdminID{}, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}

	adminID := domain.AdminID(principal.SubjectID)
	a, err := s.store.FindByID(ctx, adminID)
	if err != nil {
		return domain.AdminID{}, s.translate(err)
	}
	if !authz.Authorize(a.Grants, action) {
		if err := s.audit.Append(ctx, adminID, "Permission.Denied", action); err != nil {
			return domain.AdminID{}, err
		}
		return domain.AdminID{}, dErrors.New(dErrors.CodeForbidden, "NotAuthorized")
	}
	return adminID, nil
}

// AuditLog lists audit entries for an authorized admin. The page size cap
// applies even when the caller asks for more.
func (s *Service) AuditLog(ctx context.Context, sessionID domain.SessionID, filter audit.Filter) ([]audit.Entry, error) {
	if _, err := s.Authorize(ctx, sessionID, "AuditLog.View"); err != nil {
		return nil, err
	}
	if filter.Start < 0 {
		filter.Start = 0
	}
	if filter.Count <= 0 || filter.Count > s.pageSize {
		filter.Count = s.pageSize
	}
	return s.audit.List(ctx, filter)
}

// SubjectStatus lets the session manager validate admin subjects; an admin
// who logged out is inactive even if the session row survived.
func (s *Service) SubjectStatus(ctx context.Context, id domain.AdminID) (session.SubjectStatus, error) {
	a, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return session.SubjectStatus{}, nil
	}
	if err != nil {
		return session.SubjectStatus{}, err
	}
	return session.SubjectStatus{Exists: true, Active: a.LoggedIn}, nil
}

func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "NoObjectWithId")
	}
	var dErr *dErrors.Error
	if errors.As(err, &dErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "admin store")
}
