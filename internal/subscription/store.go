// internal/subscription/store.go
//
// Postgres persistence for subscription records.
//
// Context
//   Insert checks out one pooled connection (bounded by the acquire
//   timeout), binds the Record by its `db` tag names, and executes a single
//   INSERT.  Once the statement is issued it runs on a context detached from
//   request cancellation, so a client that hangs up cannot abort an insert
//   half way; at most one row exists per request.
//
//   Every failure comes back as *PersistenceError.  Nothing is retried here;
//   retry policy belongs to the HTTP client.
//
//------------------------------------------------------------------------------

package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/mailroom/internal/database"
	"github.com/yanizio/mailroom/internal/logger"
)

const insertSubscription = `INSERT INTO subscriptions (id, email, name, subscribed_at)
VALUES (:id, :email, :name, :subscribed_at)`

// Repository persists records.  PGStore is the production implementation.
type Repository interface {
	Insert(ctx context.Context, rec Record) error
}

// PGStore writes to the subscriptions table through a shared sqlx pool.
type PGStore struct {
	db             *sqlx.DB
	acquireTimeout time.Duration
}

// NewPGStore returns a store over db.  acquireTimeout 0 waits as long as ctx.
func NewPGStore(db *sqlx.DB, acquireTimeout time.Duration) *PGStore {
	return &PGStore{db: db, acquireTimeout: acquireTimeout}
}

// Insert stores rec in one statement.  It logs each stage at debug level
// through the logger carried by ctx (see logger.StartSpan); the caller owns
// error-level reporting.
func (s *PGStore) Insert(ctx context.Context, rec Record) error {
	log := logger.FromContext(ctx)

	query, args, err := s.db.BindNamed(insertSubscription, rec)
	if err != nil {
		log.Debug("insert bind failed", zap.Error(err))
		return &PersistenceError{Err: err}
	}

	start := time.Now()
	conn, err := database.Acquire(ctx, s.db, s.acquireTimeout)
	if err != nil {
		log.Debug("connection acquire failed",
			zap.Duration("waited", time.Since(start)), zap.Error(err))
		return &PersistenceError{Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(context.WithoutCancel(ctx), query, args...); err != nil {
		log.Debug("insert statement failed", zap.Error(err))
		return &PersistenceError{Err: err}
	}
	log.Debug("insert statement done", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// PersistenceError wraps any failure to store a record: pool exhaustion,
// connection failure, or constraint violation.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "store subscription: " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Timeout reports whether no connection could be acquired in time.
func (e *PersistenceError) Timeout() bool {
	return errors.Is(e.Err, database.ErrAcquireTimeout)
}

// PgCode returns the SQLSTATE and constraint name when the server rejected
// the statement, or empty strings otherwise.
func (e *PersistenceError) PgCode() (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}
