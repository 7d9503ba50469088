package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"undertone/internal/lockout"
	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists users. Mutate takes a row-level lock (SELECT FOR
// UPDATE) for the duration of the closure, then writes the row back in the
// same transaction; the write happens even when the closure reports a
// business failure so lockout counters survive failed logins.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, name, salt, secret, presence, last_active, status,
	attempts, locked, lock_reason, lock_expiry, deleted, created_at`

func (s *PostgresStore) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(u.ID), u.Name, u.Salt, u.Secret, string(u.Presence),
		nullTime(u.LastActive), u.Status,
		u.Lockout.Attempts, u.Lockout.Locked, u.Lockout.Reason,
		nullTime(u.Lockout.Expiry), u.Deleted, u.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.UserID) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(id))
	return scanUser(row)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = $1`, name)
	return scanUser(row)
}

func (s *PostgresStore) Mutate(ctx context.Context, id domain.UserID, fn func(*User) error) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mutate: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}

	fnErr := fn(u)

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			name = $2, salt = $3, secret = $4, presence = $5,
			last_active = $6, status = $7, attempts = $8, locked = $9,
			lock_reason = $10, lock_expiry = $11, deleted = $12
		WHERE id = $1`,
		uuid.UUID(id), u.Name, u.Salt, u.Secret, string(u.Presence),
		nullTime(u.LastActive), u.Status,
		u.Lockout.Attempts, u.Lockout.Locked, u.Lockout.Reason,
		nullTime(u.Lockout.Expiry), u.Deleted,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mutate: %w", err)
	}
	return u, fnErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var id uuid.UUID
	var presence string
	var lastActive, lockExpiry sql.NullTime
	err := row.Scan(
		&id, &u.Name, &u.Salt, &u.Secret, &presence, &lastActive, &u.Status,
		&u.Lockout.Attempts, &u.Lockout.Locked, &u.Lockout.Reason,
		&lockExpiry, &u.Deleted, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.ID = domain.UserID(id)
	u.Presence = Presence(presence)
	if lastActive.Valid {
		u.LastActive = lastActive.Time.UTC()
	}
	if lockExpiry.Valid {
		u.Lockout.Expiry = lockExpiry.Time.UTC()
		if lockExpiry.Time.UTC().Year() >= lockout.Forever.Year() {
			u.Lockout.Expiry = lockout.Forever
		}
	}
	return &u, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
