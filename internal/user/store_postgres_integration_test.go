//go:build integration

package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"undertone/internal/lockout"
	"undertone/internal/user"
	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
	"undertone/pkg/testutil/containers"
)

type PostgresUserStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.PostgresStore
	base     time.Time
}

func TestPostgresUserStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = user.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresUserStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users"))
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresUserStoreSuite) newUser(name string) *user.User {
	return &user.User{
		ID:         domain.NewUserID(),
		Name:       name,
		Secret:     []byte{1, 2, 3},
		Salt:       []byte{4, 5, 6},
		Presence:   user.PresenceOffline,
		LastActive: s.base,
		CreatedAt:  s.base,
	}
}

func (s *PostgresUserStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	u := s.newUser("alice_test")
	s.Require().NoError(s.store.Create(ctx, u))

	found, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Name, found.Name)
	s.Equal(u.Secret, found.Secret)
	s.Equal(u.Salt, found.Salt)
	s.Equal(user.PresenceOffline, found.Presence)

	byName, err := s.store.FindByName(ctx, "alice_test")
	s.Require().NoError(err)
	s.Equal(u.ID, byName.ID)
}

func (s *PostgresUserStoreSuite) TestCreateDuplicateNameConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newUser("alice_test")))

	err := s.store.Create(ctx, s.newUser("alice_test"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresUserStoreSuite) TestMutatePersistsOnBusinessFailure() {
	ctx := context.Background()
	u := s.newUser("alice_test")
	s.Require().NoError(s.store.Create(ctx, u))

	businessErr := errors.New("wrong password")
	_, err := s.store.Mutate(ctx, u.ID, func(row *user.User) error {
		row.Lockout.Attempts = 3
		return businessErr
	})
	s.Require().ErrorIs(err, businessErr)

	// The counter update survived the failed call.
	found, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(3, found.Lockout.Attempts)
}

func (s *PostgresUserStoreSuite) TestMutateMissingRow() {
	_, err := s.store.Mutate(context.Background(), domain.NewUserID(), func(*user.User) error {
		return nil
	})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUserStoreSuite) TestForeverExpiryRoundTrips() {
	ctx := context.Background()
	u := s.newUser("alice_test")
	u.Lockout.LockManual("AccountNotValidated")
	s.Require().NoError(s.store.Create(ctx, u))

	found, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.True(found.Lockout.Locked)
	s.True(lockout.IsForever(found.Lockout.Expiry))
}
