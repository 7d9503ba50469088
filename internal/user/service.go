package user

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"undertone/internal/credential"
	"undertone/internal/lockout"
	"undertone/internal/platform/metrics"
	"undertone/internal/session"
	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/platform/sentinel"
	"undertone/pkg/requestcontext"
)

var nameRule = regexp.MustCompile(`^[a-z_][a-z0-9_]{4,}$`)

// Service owns account business rules. The store is pure I/O; every policy
// decision (name rules, lockout, presence transitions, the soft-delete
// scrub) happens here.
type Service struct {
	store    Store
	creds    credential.Params
	policy   lockout.Policy
	sessions *session.Manager
	keys     KeySink
	friends  FriendChecker
	private  bool
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

func WithLockoutPolicy(p lockout.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithKeySink registers the keyring that stores a public key supplied at
// registration.
func WithKeySink(sink KeySink) Option {
	return func(s *Service) { s.keys = sink }
}

// WithFriendChecker enables full profile views for friends.
func WithFriendChecker(fc FriendChecker) Option {
	return func(s *Service) { s.friends = fc }
}

// WithPrivateInstance makes new accounts start under a manual validation
// lock until an operator releases them.
func WithPrivateInstance(private bool) Option {
	return func(s *Service) { s.private = private }
}

func New(store Store, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		store:    store,
		creds:    credential.DefaultParams(),
		policy:   lockout.DefaultPolicy(),
		sessions: sessions,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers an account. The optional publicKey is forwarded to the
// keyring when one is wired.
func (s *Service) Create(ctx context.Context, name, password string, publicKey []byte) (domain.UserID, error) {
	if !nameRule.MatchString(name) {
		return domain.UserID{}, dErrors.New(dErrors.CodeInvalidInput, "NameInvalid")
	}
	salt, secret, err := s.creds.Create(password)
	if err != nil {
		return domain.UserID{}, err
	}

	now := requestcontext.Now(ctx)
	u := &User{
		ID:         domain.NewUserID(),
		Name:       name,
		Secret:     secret,
		Salt:       salt,
		Presence:   PresenceOffline,
		LastActive: now,
		CreatedAt:  now,
	}
	if s.private {
		u.Lockout.LockManual("AccountNotValidated")
	}

	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domain.UserID{}, dErrors.New(dErrors.CodeConflict, "NameTaken")
		}
		return domain.UserID{}, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}

	if s.keys != nil && len(publicKey) > 0 {
		if _, err := s.keys.Add(ctx, u.ID, publicKey); err != nil {
			return domain.UserID{}, dErrors.Wrap(err, dErrors.CodeInternal, "store public key")
		}
	}

	s.logger.InfoContext(ctx, "user created", "user_id", u.ID.String(), "name", name)
	return u.ID, nil
}

// Login checks the lock, verifies the password, and on success opens a
// session and flips the user online. Origin (the caller's network address)
// ends up in the lock reason when this attempt trips the threshold.
//
// The lock is checked before any key derivation; a locked account costs no
// KDF work. An expired finite lock is cleared and the password evaluated in
// the same call.
func (s *Service) Login(ctx context.Context, id domain.UserID, password, origin string) (domain.SessionID, error) {
	now := requestcontext.Now(ctx)

	_, err := s.store.Mutate(ctx, id, func(u *User) error {
		if u.Deleted {
			return dErrors.New(dErrors.CodeGone, "ObjectDeleted")
		}
		decision := s.policy.Check(&u.Lockout, now)
		if !decision.Allowed {
			return dErrors.NewLocked(decision.Reason, decision.Expiry)
		}
		if !s.creds.Verify(password, u.Salt, u.Secret) {
			if s.policy.RecordFailure(&u.Lockout, origin, now) {
				if s.metrics != nil {
					s.metrics.Lockouts.Inc()
				}
				s.logger.WarnContext(ctx, "account locked",
					"user_id", id.String(),
					"origin", origin,
				)
			}
			return dErrors.New(dErrors.CodeUnauthorized, "AuthError")
		}
		s.policy.RecordSuccess(&u.Lockout)
		u.Presence = PresenceOnline
		u.LastActive = now
		return nil
	})
	if err != nil {
		err = s.translate(err)
		if s.metrics != nil {
			if dErrors.HasCode(err, dErrors.CodeUnauthorized) || dErrors.HasCode(err, dErrors.CodeLocked) {
				s.metrics.Logins.WithLabelValues(loginResult(err)).Inc()
			}
		}
		return domain.SessionID{}, err
	}

	sessionID, err := s.sessions.Create(ctx, uuid.UUID(id), session.KindUser)
	if err != nil {
		return domain.SessionID{}, err
	}
	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues("success").Inc()
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", id.String())
	return sessionID, nil
}

// Get returns the profile view. Friends and the user themself see presence
// and status; everyone else gets the minimal view.
func (s *Service) Get(ctx context.Context, viewerID, id domain.UserID) (View, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return View{}, s.translate(err)
	}

	view := View{ID: u.ID, Name: u.Name, Deleted: u.Deleted}
	full := viewerID == id
	if !full && s.friends != nil {
		full, err = s.friends.AreFriends(ctx, viewerID, id)
		if err != nil {
			return View{}, dErrors.Wrap(err, dErrors.CodeInternal, "check friendship")
		}
	}
	if full {
		view.Full = true
		view.Presence = u.Presence
		view.LastActive = u.LastActive
		view.Status = u.Status
	}
	return view, nil
}

// QueryIDByName resolves a current account name to its id.
func (s *Service) QueryIDByName(ctx context.Context, name string) (domain.UserID, error) {
	u, err := s.store.FindByName(ctx, name)
	if err != nil {
		return domain.UserID{}, s.translate(err)
	}
	return u.ID, nil
}

// SetPresence updates availability. Away and Busy carry an until time that is
// folded into the status string; clients render the countdown.
func (s *Service) SetPresence(ctx context.Context, id domain.UserID, presence Presence, until *time.Time, status string) error {
	_, err := s.store.Mutate(ctx, id, func(u *User) error {
		switch presence {
		case PresenceOnline:
			u.Presence = PresenceOnline
			u.Status = status
		case PresenceAway, PresenceBusy:
			if until == nil {
				return dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest")
			}
			u.Presence = presence
			u.Status = until.UTC().Format(time.RFC3339Nano) + ";" + status
		default:
			return dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest")
		}
		return nil
	})
	return s.translate(err)
}

// SetOffline recomputes nothing; it is the presence sink the session manager
// calls when a user's last live session goes away.
func (s *Service) SetOffline(ctx context.Context, id domain.UserID) error {
	_, err := s.store.Mutate(ctx, id, func(u *User) error {
		u.Presence = PresenceOffline
		return nil
	})
	return s.translate(err)
}

// Delete soft-deletes the account after re-verifying the password. The
// credential is scrubbed, the name is renamed out of the namespace, and all
// sessions are revoked. The row itself stays.
func (s *Service) Delete(ctx context.Context, id domain.UserID, password string) error {
	now := requestcontext.Now(ctx)

	_, err := s.store.Mutate(ctx, id, func(u *User) error {
		if u.Deleted {
			return dErrors.New(dErrors.CodeGone, "ObjectDeleted")
		}
		if !s.creds.Verify(password, u.Salt, u.Secret) {
			return dErrors.New(dErrors.CodeUnauthorized, "AuthError")
		}
		u.Deleted = true
		u.Secret = nil
		u.Salt = nil
		u.Name = u.Name + "!deleted_" + now.UTC().Format("20060102")
		u.LastActive = time.Time{}
		u.Presence = PresenceOffline
		u.Status = ""
		return nil
	})
	if err != nil {
		return s.translate(err)
	}

	if err := s.sessions.RevokeAllForSubject(ctx, session.KindUser, uuid.UUID(id)); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id.String())
	return nil
}

// SubjectStatus lets the session manager validate user subjects.
func (s *Service) SubjectStatus(ctx context.Context, id domain.UserID) (session.SubjectStatus, error) {
	u, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return session.SubjectStatus{}, nil
	}
	if err != nil {
		return session.SubjectStatus{}, err
	}
	return session.SubjectStatus{Exists: true, Active: !u.Deleted}, nil
}

// translate maps store sentinels to the domain union; service-built domain
// errors pass through untouched.
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
	return dErrors.Wrap(err, dErrors.CodeInternal, "user store")
}

func loginResult(err error) string {
	if dErrors.HasCode(err, dErrors.CodeLocked) {
		return "locked"
	}
	return "failure"
}
