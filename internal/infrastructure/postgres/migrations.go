package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type migration struct {
	version int
	sql     string
}

// migrations must stay ordered; versions are sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS notifications (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS integrations (
	id               UUID PRIMARY KEY,
	user_id          UUID NOT NULL,
	project_id       UUID,
	integration_type TEXT NOT NULL CHECK (integration_type IN ('email', 'chat-bot', 'webhook')),
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	config           JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_integrations_user ON integrations(user_id);
CREATE INDEX IF NOT EXISTS idx_integrations_active ON integrations(is_active) WHERE is_active;

CREATE TABLE IF NOT EXISTS webhook_logs (
	id             UUID PRIMARY KEY,
	integration_id UUID NOT NULL REFERENCES integrations(id) ON DELETE CASCADE,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	status         TEXT NOT NULL CHECK (status IN ('success', 'failed')),
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_webhook_logs_integration_created
	ON webhook_logs(integration_id, created_at DESC);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notification_dedup (
	dedup_key  TEXT PRIMARY KEY,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
	},
}

// migrationLockKey names the advisory lock every instance takes before it
// touches the schema.
const migrationLockKey int64 = 0x70666d67

// pending returns the migrations newer than current, in order.
func pending(current int) []migration {
	for i, m := range migrations {
		if m.version > current {
			return migrations[i:]
		}
	}
	return nil
}

// Migrate applies every migration newer than the recorded schema version.
// Each migration runs in its own transaction together with its version row,
// under an advisory lock that serializes instances starting at once.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tm := NewTxManager(pool)

	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		tx := GetTx(ctx)
		if err := lockSchema(ctx, tx); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
		return err
	})
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	for {
		applied, err := applyNext(ctx, tm)
		if err != nil {
			return err
		}
		if applied == 0 {
			return nil
		}
	}
}

// applyNext applies the first pending migration and returns its version, or 0
// when the schema is current. The version is read under the lock, so a
// migration another instance just applied is skipped.
func applyNext(ctx context.Context, tm *TxManager) (int, error) {
	var applied int
	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		tx := GetTx(ctx)
		if err := lockSchema(ctx, tx); err != nil {
			return err
		}

		var current int
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		next := pending(current)
		if len(next) == 0 {
			return nil
		}

		m := next[0]
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, m.version); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		applied = m.version
		return nil
	})
	return applied, err
}

// lockSchema holds the migration lock until tx ends.
func lockSchema(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("lock schema: %w", err)
	}
	return nil
}
