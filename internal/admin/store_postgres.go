package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"undertone/pkg/domain"
	"undertone/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists admins. Grants live in a TEXT[] column; Mutate
// holds a row lock for the closure so challenge rotation is atomic.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *Admin) error {
	query := `
		INSERT INTO admins (id, name, secret, challenge, logged_in, grants)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(a.ID), a.Name, a.Secret, a.Challenge, a.LoggedIn,
		pq.Array(a.Grants),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AdminID) (*Admin, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, secret, challenge, logged_in, grants
		FROM admins WHERE id = $1`, uuid.UUID(id))
	return scanAdmin(row)
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*Admin, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, secret, challenge, logged_in, grants
		FROM admins WHERE name = $1`, name)
	return scanAdmin(row)
}

func (s *PostgresStore) Mutate(ctx context.Context, id domain.AdminID, fn func(*Admin) error) (*Admin, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mutate: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, secret, challenge, logged_in, grants
		FROM admins WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
	a, err := scanAdmin(row)
	if err != nil {
		return nil, err
	}

	fnErr := fn(a)

	_, err = tx.ExecContext(ctx, `
		UPDATE admins SET
			name = $2, secret = $3, challenge = $4, logged_in = $5,
			grants = $6
		WHERE id = $1`,
		uuid.UUID(id), a.Name, a.Secret, a.Challenge, a.LoggedIn,
		pq.Array(a.Grants),
	)
	if err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mutate: %w", err)
	}
	return a, fnErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdmin(row rowScanner) (*Admin, error) {
	var a Admin
	var id uuid.UUID
	err := row.Scan(&id, &a.Name, &a.Secret, &a.Challenge, &a.LoggedIn,
		pq.Array(&a.Grants))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	a.ID = domain.AdminID(id)
	return &a, nil
}
