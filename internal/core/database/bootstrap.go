package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// schemaVersion is the docrag_meta row written by initdb.sql.
const schemaVersion = 1

// bootstrapLockKey serialises concurrent cold starts against one database.
const bootstrapLockKey int64 = 0x646f63726167

// EnsureBootstrapped applies initdb.sql, templated with the embedding
// dimension, unless the schema version is already recorded. The whole check
// runs under a transaction-scoped advisory lock.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, dim int) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	script, err := bootstrapSQL(dim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctxBoot, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctxBoot, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return fmt.Errorf("bootstrap lock: %w", err)
	}

	applied, err := versionApplied(ctxBoot, tx)
	if err != nil {
		return err
	}
	if applied {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctxBoot, script); err != nil {
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	slog.Info("Database: schema bootstrapped", "version", schemaVersion, "embed_dim", dim)
	return nil
}

func versionApplied(ctx context.Context, tx *sql.Tx) (bool, error) {
	var hasMeta bool
	if err := tx.QueryRowContext(ctx, `SELECT to_regclass('docrag_meta') IS NOT NULL`).Scan(&hasMeta); err != nil {
		return false, fmt.Errorf("meta table check failed: %w", err)
	}
	if !hasMeta {
		return false, nil
	}
	var applied bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM docrag_meta WHERE version = $1)`, schemaVersion).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("meta version check failed: %w", err)
	}
	return applied, nil
}

func bootstrapSQL(dim int) (string, error) {
	if dim <= 0 {
		return "", fmt.Errorf("invalid embedding dimension %d", dim)
	}
	raw, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	return strings.ReplaceAll(string(raw), "{{EMBED_DIM}}", strconv.Itoa(dim)), nil
}
