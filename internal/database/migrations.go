package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lifely/lifely/internal/logging"
)

type migration struct {
	version string
	sql     string
}

// migrations run in order. The SQL is shared by SQLite and PostgreSQL.
var migrations = []migration{
	{
		version: "001_cache_entries",
		sql: `CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	},
	{
		version: "002_inference_calls",
		sql: `CREATE TABLE IF NOT EXISTS inference_calls (
			id            TEXT PRIMARY KEY,
			run_id        TEXT NOT NULL DEFAULT '',
			provider      TEXT NOT NULL,
			model         TEXT NOT NULL,
			operation     TEXT NOT NULL,
			attempt       INTEGER NOT NULL,
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms    BIGINT NOT NULL DEFAULT 0,
			status        TEXT NOT NULL,
			error_kind    TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at    TIMESTAMP NOT NULL
		)`,
	},
	{
		version: "003_inference_calls_run_idx",
		sql:     `CREATE INDEX IF NOT EXISTS idx_inference_calls_run ON inference_calls (run_id)`,
	},
}

// RunMigrations applies every migration not yet recorded in
// schema_migrations.
func RunMigrations(ctx context.Context, db *DB, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)
	logger.Debug("checking for pending database migrations")

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		pending++

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, db.Rebind("INSERT INTO schema_migrations (version) VALUES (?)"), m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
		}

		logger.Info("migration applied", "version", m.version)
	}

	if pending > 0 {
		logger.Info("migrations completed", "count", pending)
	}
	return nil
}
