package admin

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"undertone/internal/audit"
	"undertone/internal/credential"
	"undertone/internal/session"
	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/requestcontext"
)

func testCredentialParams() credential.Params {
	return credential.Params{SecretSize: 32, Iterations: 16, MinPasswordLength: 8}
}

// serviceResolver routes session subject checks back into the service under
// test, the same wiring the server uses.
type serviceResolver struct {
	svc *Service
}

func (r *serviceResolver) SubjectStatus(ctx context.Context, _ session.Kind, subjectID uuid.UUID) (session.SubjectStatus, error) {
	return r.svc.SubjectStatus(ctx, domain.AdminID(subjectID))
}

type AdminServiceSuite struct {
	suite.Suite
	store      *InMemoryStore
	auditStore *audit.InMemoryStore
	svc        *Service
	creds      credential.Params
	adminID    domain.AdminID
	secret     []byte
	base       time.Time
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceSuite))
}

func (s *AdminServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.creds = testCredentialParams()
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	resolver := &serviceResolver{}
	sessions := session.New(session.NewInMemoryStore(), resolver)
	s.svc = New(s.store, sessions, audit.New(s.auditStore),
		WithCredentialParams(s.creds),
	)
	resolver.svc = s.svc

	result, err := EnsureSeedAdmin(context.Background(), s.store, s.creds, "root", nil)
	s.Require().NoError(err)
	s.Require().True(result.Created)
	s.adminID = result.ID
	s.secret = result.Secret
}

func (s *AdminServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// login runs a full successful challenge-response cycle.
func (s *AdminServiceSuite) login() domain.SessionID {
	challenge, err := s.svc.IssueChallenge(s.at(s.base), s.adminID)
	s.Require().NoError(err)

	sessionID, err := s.svc.VerifyResponse(s.at(s.base), s.adminID,
		s.creds.DeriveResponse(s.secret, challenge))
	s.Require().NoError(err)
	return sessionID
}

func (s *AdminServiceSuite) auditActions() []string {
	entries, err := s.auditStore.List(context.Background(), audit.Filter{})
	s.Require().NoError(err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func (s *AdminServiceSuite) TestLoginCycle() {
	sessionID := s.login()
	s.False(sessionID.IsNil())

	a, err := s.store.FindByID(context.Background(), s.adminID)
	s.Require().NoError(err)
	s.True(a.LoggedIn)
	s.Contains(s.auditActions(), "Login.Success")
}

func (s *AdminServiceSuite) TestIssueChallengeUnknownAdmin() {
	_, err := s.svc.IssueChallenge(s.at(s.base), domain.NewAdminID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("NoObjectWithId", dErrors.MessageOf(err))
}

func (s *AdminServiceSuite) TestIssueChallengeWhileLoggedIn() {
	s.login()

	_, err := s.svc.IssueChallenge(s.at(s.base), s.adminID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal("AdminLoggedIn", dErrors.MessageOf(err))
}

func (s *AdminServiceSuite) TestWrongResponseRotatesChallenge() {
	challenge, err := s.svc.IssueChallenge(s.at(s.base), s.adminID)
	s.Require().NoError(err)

	_, err = s.svc.VerifyResponse(s.at(s.base), s.adminID, []byte("garbage"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal("IncorrectResponse", dErrors.MessageOf(err))
	s.Contains(s.auditActions(), "Login.Failure")

	a, err := s.store.FindByID(context.Background(), s.adminID)
	s.Require().NoError(err)
	s.NotEqual(challenge, a.Challenge)
	s.False(a.LoggedIn)
}

func (s *AdminServiceSuite) TestReplayedResponseFails() {
	first, err := s.svc.IssueChallenge(s.at(s.base), s.adminID)
	s.Require().NoError(err)
	replay := s.creds.DeriveResponse(s.secret, first)

	// A failed attempt rotates the stored challenge; the response computed
	// against the first challenge is now worthless.
	_, err = s.svc.VerifyResponse(s.at(s.base), s.adminID, []byte("garbage"))
	s.Require().Error(err)

	_, err = s.svc.VerifyResponse(s.at(s.base), s.adminID, replay)
	s.Require().Error(err)
	s.Equal("IncorrectResponse", dErrors.MessageOf(err))
}

func (s *AdminServiceSuite) TestReplayAcrossLoginCycles() {
	challenge, err := s.svc.IssueChallenge(s.at(s.base), s.adminID)
	s.Require().NoError(err)
	response := s.creds.DeriveResponse(s.secret, challenge)

	sessionID, err := s.svc.VerifyResponse(s.at(s.base), s.adminID, response)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Logout(s.at(s.base), sessionID))

	// Success also rotated the challenge, so the captured response is dead
	// even though it was once correct.
	_, err = s.svc.VerifyResponse(s.at(s.base), s.adminID, response)
	s.Require().Error(err)
	s.Equal("IncorrectResponse", dErrors.MessageOf(err))
}

func (s *AdminServiceSuite) TestRenewSlidesWindow() {
	sessionID := s.login()

	s.Require().NoError(s.svc.Renew(s.at(s.base.Add(90*time.Second)), sessionID))
	// The slide from the renewal keeps the session alive past the original
	// deadline.
	s.Require().NoError(s.svc.Renew(s.at(s.base.Add(3*time.Minute)), sessionID))
}

func (s *AdminServiceSuite) TestRenewExpired() {
	sessionID := s.login()

	err := s.svc.Renew(s.at(s.base.Add(3*time.Minute)), sessionID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	s.Equal("SessionExpired", dErrors.MessageOf(err))
}

func (s *AdminServiceSuite) TestAbandonedSessionBlocksLogin() {
	s.login()

	// Expiry alone does not clear the login flag; until someone calls
	// Logout the admin cannot start a new cycle.
	_, err := s.svc.IssueChallenge(s.at(s.base.Add(time.Hour)), s.adminID)
	s.Require().Error(err)
	s.Equal("AdminLoggedIn", dErrors.MessageOf(err))
}

func (s *AdminServiceSuite) TestLogoutReapsExpiredSession() {
	sessionID := s.login()

	s.Require().NoError(s.svc.Logout(s.at(s.base.Add(time.Hour)), sessionID))
	s.Contains(s.auditActions(), "Logout")

	a, err := s.store.FindByID(context.Background(), s.adminID)
	s.Require().NoError(err)
	s.False(a.LoggedIn)

	// A fresh login cycle is possible again.
	s.login()
}

func (s *AdminServiceSuite) TestAuditLogRequiresGrant() {
	// A second admin with an unrelated grant.
	limited := &Admin{
		ID:        domain.NewAdminID(),
		Name:      "helpdesk",
		Secret:    s.secret,
		Challenge: []byte("seed"),
		Grants:    []string{"Users.*"},
	}
	s.Require().NoError(s.store.Create(context.Background(), limited))

	challenge, err := s.svc.IssueChallenge(s.at(s.base), limited.ID)
	s.Require().NoError(err)
	sessionID, err := s.svc.VerifyResponse(s.at(s.base), limited.ID,
		s.creds.DeriveResponse(limited.Secret, challenge))
	s.Require().NoError(err)

	_, err = s.svc.AuditLog(s.at(s.base), sessionID, audit.Filter{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal("NotAuthorized", dErrors.MessageOf(err))
	s.Contains(s.auditActions(), "Permission.Denied")
}

func (s *AdminServiceSuite) TestAuditLogListsForRoot() {
	sessionID := s.login()

	entries, err := s.svc.AuditLog(s.at(s.base), sessionID, audit.Filter{})
	s.Require().NoError(err)
	s.Require().NotEmpty(entries)
	s.Equal("Login.Success", entries[0].Action)
}

func (s *AdminServiceSuite) TestSeedIsIdempotent() {
	again, err := EnsureSeedAdmin(context.Background(), s.store, s.creds, "root", nil)
	s.Require().NoError(err)
	s.False(again.Created)
	s.Equal(s.adminID, again.ID)
	s.Empty(again.Secret)
}
