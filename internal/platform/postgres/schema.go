package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full DDL for the server's tables. EnsureSchema applies it on
// boot; the statements are idempotent so restarts are safe.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	salt        BYTEA NOT NULL,
	secret      BYTEA NOT NULL,
	presence    TEXT NOT NULL DEFAULT 'offline',
	last_active TIMESTAMPTZ,
	status      TEXT NOT NULL DEFAULT '',
	attempts    INTEGER NOT NULL DEFAULT 0,
	locked      BOOLEAN NOT NULL DEFAULT FALSE,
	lock_reason TEXT NOT NULL DEFAULT '',
	lock_expiry TIMESTAMPTZ,
	deleted     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS admins (
	id        UUID PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE,
	secret    BYTEA NOT NULL,
	challenge BYTEA NOT NULL,
	logged_in BOOLEAN NOT NULL DEFAULT FALSE,
	grants    TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS audit_log (
	id        UUID PRIMARY KEY,
	actor_id  UUID NOT NULL,
	action    TEXT NOT NULL,
	details   TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_log_timestamp_idx ON audit_log (timestamp DESC);
CREATE INDEX IF NOT EXISTS audit_log_action_idx ON audit_log (action);
`

// EnsureSchema creates any missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
