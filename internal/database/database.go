// Package database centralises sqlx connection helpers for Postgres.  The
// driver is pgx through its database/sql adapter, registered as "pgx".
//
// Public entry points:
//
//	Open(desc, opts)              – lazy pool, no network I/O.
//	Acquire(ctx, db, timeout)     – bounded connection checkout.
//	WaitReady(ctx, db, max, log)  – ping with exponential backoff.
//	CreateDatabase / Migrate      – bootstrap helpers for cmd/web and tests.
//
// Callers should Close() the returned *sqlx.DB when no longer needed.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/mailroom/internal/config"
)

// DriverName is the sqlx driver name; it selects $N bind variables.
const DriverName = "pgx"

// ErrAcquireTimeout is returned by Acquire when no pooled connection became
// available within the timeout.
var ErrAcquireTimeout = errors.New("database: connection acquire timed out")

// Options tunes the pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OptionsFrom copies the pool tunables out of settings.
func OptionsFrom(s config.DatabaseSettings) Options {
	return Options{
		MaxOpenConns:    s.MaxOpenConns,
		MaxIdleConns:    s.MaxIdleConns,
		ConnMaxLifetime: s.ConnMaxLifetime,
	}
}

// Open returns a pool for d.  No connection is made until first use, so a
// database outage does not block startup.
func Open(d Descriptor, opts Options) (*sqlx.DB, error) {
	cc, err := d.ConnConfig()
	if err != nil {
		return nil, fmt.Errorf("parse connection config for %s: %w", d, err)
	}

	db := sqlx.NewDb(stdlib.OpenDB(*cc), DriverName)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return db, nil
}

// Acquire checks out one connection, waiting at most timeout.  The timeout
// bounds only the checkout; statements run on the returned Conn use their
// own context.  Callers must Close the Conn to return it to the pool.
func Acquire(ctx context.Context, db *sqlx.DB, timeout time.Duration) (*sqlx.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrAcquireTimeout, timeout)
		}
		return nil, err
	}
	return conn, nil
}
