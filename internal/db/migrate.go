package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaMigration = `
CREATE TABLE IF NOT EXISTS profiles (
    id          text PRIMARY KEY,
    email       text NOT NULL DEFAULT '',
    name        text NOT NULL DEFAULT '',
    role        text NOT NULL DEFAULT 'user',
    avatar_url  text NOT NULL DEFAULT '',
    preferences jsonb,
    last_login  timestamptz,
    created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS profiles_email_idx
ON profiles (email);

CREATE TABLE IF NOT EXISTS reconciliations (
    id          text PRIMARY KEY,
    uid         text NOT NULL,
    email       text NOT NULL DEFAULT '',
    action      text NOT NULL,
    reason      text NOT NULL DEFAULT '',
    created_at  timestamptz NOT NULL DEFAULT now(),
    resolved_at timestamptz
);
`

// Migrate aplica el esquema idempotente al arranque.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaMigration)
	return err
}
