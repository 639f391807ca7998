package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema — DDL таблиц Treeflow. Идемпотентна.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              uuid PRIMARY KEY,
	plan            text        NOT NULL,
	trigger         text        NOT NULL DEFAULT 'manual',
	status          text        NOT NULL,
	inputs          jsonb,
	result          jsonb,
	context         jsonb,
	started_at      timestamptz,
	finished_at     timestamptz,
	error           text,
	idempotency_key text,
	created_at      timestamptz NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS runs_plan_idempotency_key
	ON runs (plan, idempotency_key) WHERE idempotency_key IS NOT NULL;

CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at DESC);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        text PRIMARY KEY,
	value      jsonb       NOT NULL,
	expires_at timestamptz,
	updated_at timestamptz NOT NULL DEFAULT now()
);
`

// EnsureSchema создаёт таблицы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
