package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/requestcontext"
)

type stubResolver struct {
	status SubjectStatus
	err    error
}

func (r *stubResolver) SubjectStatus(context.Context, Kind, uuid.UUID) (SubjectStatus, error) {
	return r.status, r.err
}

type stubPresence struct {
	offline []domain.UserID
}

func (p *stubPresence) SetOffline(_ context.Context, userID domain.UserID) error {
	p.offline = append(p.offline, userID)
	return nil
}

type SessionManagerSuite struct {
	suite.Suite
	store    *InMemoryStore
	resolver *stubResolver
	presence *stubPresence
	manager  *Manager
	base     time.Time
}

func TestSessionManagerSuite(t *testing.T) {
	suite.Run(t, new(SessionManagerSuite))
}

func (s *SessionManagerSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.resolver = &stubResolver{status: SubjectStatus{Exists: true, Active: true}}
	s.presence = &stubPresence{}
	s.manager = New(s.store, s.resolver, WithPresenceSink(s.presence))
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SessionManagerSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *SessionManagerSuite) TestCreateAndVerify() {
	subject := uuid.New()
	id, err := s.manager.Create(s.at(s.base), subject, KindUser)
	s.Require().NoError(err)
	s.Require().False(id.IsNil())

	principal, err := s.manager.Verify(s.at(s.base.Add(5*time.Minute)), id)
	s.Require().NoError(err)
	s.Equal(subject, principal.SubjectID)
	s.Equal(KindUser, principal.Kind)
}

func (s *SessionManagerSuite) TestVerifyUnknownID() {
	_, err := s.manager.Verify(s.at(s.base), domain.NewSessionID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("NoObjectWithId", dErrors.MessageOf(err))
}

func (s *SessionManagerSuite) TestRenewSlidesDeadline() {
	id, err := s.manager.Create(s.at(s.base), uuid.New(), KindUser)
	s.Require().NoError(err)

	// Renew at +14m; the deadline slides so +28m is still in window.
	_, err = s.manager.VerifyAndRenew(s.at(s.base.Add(14*time.Minute)), id)
	s.Require().NoError(err)

	_, err = s.manager.Verify(s.at(s.base.Add(28*time.Minute)), id)
	s.Require().NoError(err)
}

func (s *SessionManagerSuite) TestExpiredUserSessionDeleted() {
	id, err := s.manager.Create(s.at(s.base), uuid.New(), KindUser)
	s.Require().NoError(err)

	_, err = s.manager.Verify(s.at(s.base.Add(16*time.Minute)), id)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	s.Equal("SessionExpired", dErrors.MessageOf(err))

	// The row was removed lazily; the next access reports NotFound.
	_, err = s.manager.Verify(s.at(s.base.Add(16*time.Minute)), id)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *SessionManagerSuite) TestExpiredAdminSessionKept() {
	id, err := s.manager.Create(s.at(s.base), uuid.New(), KindAdmin)
	s.Require().NoError(err)

	_, err = s.manager.Verify(s.at(s.base.Add(3*time.Minute)), id)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))

	// Admin rows survive expiry so logout can still find them.
	_, err = s.store.Find(context.Background(), id)
	s.Require().NoError(err)
}

func (s *SessionManagerSuite) TestAdminWindowIsTwoMinutes() {
	id, err := s.manager.Create(s.at(s.base), uuid.New(), KindAdmin)
	s.Require().NoError(err)

	_, err = s.manager.Verify(s.at(s.base.Add(2*time.Minute)), id)
	s.Require().NoError(err)

	_, err = s.manager.Verify(s.at(s.base.Add(2*time.Minute+time.Second)), id)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
}

func (s *SessionManagerSuite) TestMissingSubjectIsInternal() {
	id, err := s.manager.Create(s.at(s.base), uuid.New(), KindUser)
	s.Require().NoError(err)

	s.resolver.status = SubjectStatus{Exists: false}
	_, err = s.manager.Verify(s.at(s.base), id)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal("SubjectMissing", dErrors.MessageOf(err))
}

func (s *SessionManagerSuite) TestInactiveSubjectForbidden() {
	id, err := s.manager.Create(s.at(s.base), uuid.New(), KindUser)
	s.Require().NoError(err)

	s.resolver.status = SubjectStatus{Exists: true, Active: false}
	_, err = s.manager.Verify(s.at(s.base), id)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal("SubjectInactive", dErrors.MessageOf(err))
}

func (s *SessionManagerSuite) TestRevokeLastSessionGoesOffline() {
	subject := uuid.New()
	id, err := s.manager.Create(s.at(s.base), subject, KindUser)
	s.Require().NoError(err)

	s.Require().NoError(s.manager.Revoke(s.at(s.base.Add(time.Minute)), id))
	s.Require().Len(s.presence.offline, 1)
	s.Equal(domain.UserID(subject), s.presence.offline[0])
}

func (s *SessionManagerSuite) TestRevokeWithOtherLiveSessionStaysOnline() {
	subject := uuid.New()
	first, err := s.manager.Create(s.at(s.base), subject, KindUser)
	s.Require().NoError(err)
	_, err = s.manager.Create(s.at(s.base), subject, KindUser)
	s.Require().NoError(err)

	s.Require().NoError(s.manager.Revoke(s.at(s.base.Add(time.Minute)), first))
	s.Empty(s.presence.offline)
}

func (s *SessionManagerSuite) TestRevokeAllForSubject() {
	subject := uuid.New()
	for range 3 {
		_, err := s.manager.Create(s.at(s.base), subject, KindUser)
		s.Require().NoError(err)
	}
	other, err := s.manager.Create(s.at(s.base), uuid.New(), KindUser)
	s.Require().NoError(err)

	s.Require().NoError(s.manager.RevokeAllForSubject(context.Background(), KindUser, subject))

	count, err := s.store.CountLive(context.Background(), KindUser, subject, s.base.Add(-time.Hour))
	s.Require().NoError(err)
	s.Zero(count)

	_, err = s.store.Find(context.Background(), other)
	s.Require().NoError(err)
}
