package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

func newTestSession(created time.Time) *Session {
	return &Session{
		ID:          domain.NewSessionID(),
		SubjectID:   uuid.New(),
		Kind:        KindUser,
		CreatedAt:   created,
		LastRenewal: created,
	}
}

func TestInMemoryStoreRenew(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("slides the renewal timestamp", func(t *testing.T) {
		store := NewInMemoryStore()
		sess := newTestSession(base)
		require.NoError(t, store.Create(ctx, sess))

		now := base.Add(10 * time.Minute)
		renewed, err := store.Renew(ctx, sess.ID, now, base.Add(-time.Minute))
		require.NoError(t, err)
		require.Equal(t, now, renewed.LastRenewal)
	})

	t.Run("missing row reports not found", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.Renew(ctx, domain.NewSessionID(), base, base)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("stale row reports expired", func(t *testing.T) {
		store := NewInMemoryStore()
		sess := newTestSession(base)
		require.NoError(t, store.Create(ctx, sess))

		_, err := store.Renew(ctx, sess.ID, base.Add(time.Hour), base.Add(time.Minute))
		require.ErrorIs(t, err, sentinel.ErrExpired)
	})

	t.Run("never moves the timestamp backwards", func(t *testing.T) {
		store := NewInMemoryStore()
		sess := newTestSession(base)
		require.NoError(t, store.Create(ctx, sess))

		_, err := store.Renew(ctx, sess.ID, base.Add(10*time.Minute), base.Add(-time.Minute))
		require.NoError(t, err)

		renewed, err := store.Renew(ctx, sess.ID, base.Add(5*time.Minute), base.Add(-time.Minute))
		require.NoError(t, err)
		require.Equal(t, base.Add(10*time.Minute), renewed.LastRenewal)
	})

	t.Run("concurrent renewals settle on the latest timestamp", func(t *testing.T) {
		store := NewInMemoryStore()
		sess := newTestSession(base)
		require.NoError(t, store.Create(ctx, sess))

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				now := base.Add(time.Duration(i+1) * time.Second)
				_, err := store.Renew(ctx, sess.ID, now, base.Add(-time.Minute))
				require.NoError(t, err)
			}()
		}
		wg.Wait()

		found, err := store.Find(ctx, sess.ID)
		require.NoError(t, err)
		require.Equal(t, base.Add(20*time.Second), found.LastRenewal)
	})
}

func TestInMemoryStoreCountLive(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryStore()
	subject := uuid.New()

	fresh := newTestSession(base)
	fresh.SubjectID = subject
	stale := newTestSession(base.Add(-time.Hour))
	stale.SubjectID = subject
	other := newTestSession(base)

	for _, sess := range []*Session{fresh, stale, other} {
		require.NoError(t, store.Create(ctx, sess))
	}

	count, err := store.CountLive(ctx, KindUser, subject, base.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestInMemoryStoreDeleteBySubject(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryStore()
	subject := uuid.New()

	mine := newTestSession(base)
	mine.SubjectID = subject
	admin := newTestSession(base)
	admin.SubjectID = subject
	admin.Kind = KindAdmin

	require.NoError(t, store.Create(ctx, mine))
	require.NoError(t, store.Create(ctx, admin))

	require.NoError(t, store.DeleteBySubject(ctx, KindUser, subject))

	_, err := store.Find(ctx, mine.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	// Only the named kind is touched.
	_, err = store.Find(ctx, admin.ID)
	require.NoError(t, err)
}
