// internal/database/bootstrap.go
//
// Readiness, database creation, and schema migration.
//
// These helpers run before the listener binds (cmd/web createdb, migrate)
// or inside test harnesses.  None of them are on the request path.

package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

/*──────────────────────────── readiness ───────────────────────────────────*/

// WaitReady pings db with exponential backoff until it answers, ctx ends, or
// maxWait elapses.
func WaitReady(ctx context.Context, db *sqlx.DB, maxWait time.Duration, log *zap.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxWait

	op := func() error { return db.PingContext(ctx) }
	notify := func(err error, wait time.Duration) {
		log.Warn("database not ready", zap.Error(err), zap.Duration("retry_in", wait))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("database not ready after %s: %w", maxWait, err)
	}
	return nil
}

/*──────────────────────────── create database ─────────────────────────────*/

// CreateDatabase creates name on the server admin is connected to.  admin
// must come from a WithoutDatabase descriptor.  It reports false when the
// database already existed.
func CreateDatabase(ctx context.Context, admin *sqlx.DB, name string) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := admin.GetContext(ctx, &exists, q, name); err != nil {
		return false, fmt.Errorf("check database %q: %w", name, err)
	}
	if exists {
		return false, nil
	}

	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("create database %q: %w", name, err)
	}
	return true, nil
}

/*──────────────────────────── migrations ──────────────────────────────────*/

const (
	createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    text        NOT NULL PRIMARY KEY,
    applied_at timestamptz NOT NULL
)`
	selectApplied = `SELECT version FROM schema_migrations`
	insertApplied = `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`
)

// Migrate applies every embedded migration not yet recorded in
// schema_migrations, in file-name order, one transaction per file.  It
// returns the versions it applied.
func Migrate(ctx context.Context, db *sqlx.DB, log *zap.Logger) ([]string, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var done []string
	if err := db.SelectContext(ctx, &done, selectApplied); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(done))
	for _, v := range done {
		applied[v] = true
	}

	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var ran []string
	for _, f := range files {
		version := strings.TrimSuffix(strings.TrimPrefix(f, "migrations/"), ".sql")
		if applied[version] {
			continue
		}

		body, err := migrationFS.ReadFile(f)
		if err != nil {
			return ran, err
		}
		if err := applyOne(ctx, db, version, string(body)); err != nil {
			return ran, err
		}
		log.Info("migration applied", zap.String("version", version))
		ran = append(ran, version)
	}
	return ran, nil
}

func applyOne(ctx context.Context, db *sqlx.DB, version, body string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: begin: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, insertApplied, version, time.Now().UTC()); err != nil {
		return fmt.Errorf("migration %s: record: %w", version, err)
	}
	return tx.Commit()
}
