package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"undertone/pkg/domain"
)

// PostgresStore persists the audit log. Pure I/O; filtering rules live in the
// query, ordering is always newest first.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_log (id, actor_id, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		uuid.UUID(entry.ActorID),
		entry.Action,
		entry.Details,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, actor_id, action, details, timestamp
		FROM audit_log
		WHERE ($1 = '' OR action = $1)
		  AND ($2::uuid = '00000000-0000-0000-0000-000000000000' OR actor_id = $2)
		  AND ($3::timestamptz IS NULL OR timestamp >= $3)
		  AND ($4::timestamptz IS NULL OR timestamp <= $4)
		ORDER BY timestamp DESC
		OFFSET $5 LIMIT $6
	`

	var from, to sql.NullTime
	if !filter.From.IsZero() {
		from = sql.NullTime{Time: filter.From, Valid: true}
	}
	if !filter.To.IsZero() {
		to = sql.NullTime{Time: filter.To, Valid: true}
	}
	start := filter.Start
	if start < 0 {
		start = 0
	}
	count := filter.Count
	if count <= 0 {
		count = 500
	}

	rows, err := s.db.QueryContext(ctx, query,
		filter.Action, uuid.UUID(filter.ActorID), from, to, start, count)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var actor uuid.UUID
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ActorID = domain.AdminID(actor)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
