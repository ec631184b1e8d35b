/*
Package sqlstore is the SQL implementation of payroll.Store shared by the
SQLite and PostgreSQL backends.

PURPOSE:
  All queries are written once with '?' placeholders and rebound for the
  driver by sqlx. The small differences between engines (row locking,
  case-insensitive matching, numeric sort on TEXT money, error codes)
  live behind the Dialect interface.

CONNECTIONS:
  Every operation checks out one pooled connection with an acquisition
  timeout. Failing to get one within the timeout is a
  payroll.StoreUnavailableError; the caller decides whether to retry.
  The connection is returned to the pool when the operation ends.

ATOMIC UNITS:
  WithTx begins a transaction on the checked-out connection and hands
  the callback a LedgerTx bound to it. LockAccount takes the row lock:
  SELECT ... FOR UPDATE on PostgreSQL; on SQLite the transaction is
  already BEGIN IMMEDIATE, which holds the database write lock.

MONEY:
  Money columns are NUMERIC(14,2) on PostgreSQL and TEXT on SQLite.
  Values are written and read as decimal strings; balance arithmetic is
  done in Go on the locked row, never in SQL.

SEE ALSO:
  - payroll/store.go: interfaces implemented here
  - store/sqlite, store/postgres: dialects and schemas
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warp/payroll-ledger/payroll"
)

// Dialect captures what differs between SQL engines.
type Dialect interface {
	// DriverName is the database/sql driver to open.
	DriverName() string

	// Migrations returns idempotent DDL statements run on open.
	Migrations() []string

	// LockClause is appended to the SELECT that locks an employee row.
	LockClause() string

	// ILike is the case-insensitive LIKE operator.
	ILike() string

	// SortExpr wraps a column for ORDER BY; money is TEXT on some engines.
	SortExpr(column string) string

	// IsUnavailable reports engine errors that mean "try again later".
	IsUnavailable(err error) bool
}

// Config holds connection pool settings.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: time.Hour,
		AcquireTimeout:  2 * time.Second,
	}
}

// Store implements payroll.Store over sqlx.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	cfg     Config
}

var _ payroll.Store = (*Store)(nil)

// Open connects to dsn, applies cfg to the pool and migrates the schema.
func Open(ctx context.Context, dsn string, d Dialect, cfg Config) (*Store, error) {
	db, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := New(db, d, cfg)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// New wraps an open handle. The schema is assumed to exist.
func New(db *sqlx.DB, d Dialect, cfg Config) *Store {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig().AcquireTimeout
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &Store{db: db, dialect: d, cfg: cfg}
}

func (s *Store) migrate(ctx context.Context) error {
	return s.withConn(ctx, "migrate", func(conn *sqlx.Conn) error {
		for _, stmt := range s.dialect.Migrations() {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// DB exposes the handle for tests and maintenance tasks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.withConn(ctx, "ping", func(conn *sqlx.Conn) error {
		return conn.PingContext(ctx)
	})
}

func (s *Store) Stats() payroll.PoolStats {
	st := s.db.Stats()
	return payroll.PoolStats{
		MaxOpen:      st.MaxOpenConnections,
		Open:         st.OpenConnections,
		InUse:        st.InUse,
		Idle:         st.Idle,
		WaitCount:    st.WaitCount,
		WaitDuration: st.WaitDuration,
	}
}

// =============================================================================
// CONNECTION CHECKOUT
// =============================================================================

// acquire checks out one connection, waiting at most cfg.AcquireTimeout.
func (s *Store) acquire(ctx context.Context, op string) (*sqlx.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()

	conn, err := s.db.Connx(actx)
	if err != nil {
		return nil, &payroll.StoreUnavailableError{Op: op, Err: err}
	}
	return conn, nil
}

// withConn runs fn on a checked-out connection and always releases it.
func (s *Store) withConn(ctx context.Context, op string, fn func(*sqlx.Conn) error) error {
	conn, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()
	return s.classify(op, fn(conn))
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.LedgerTx) error) error {
	conn, err := s.acquire(ctx, "begin")
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return s.classify("begin", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{tx: tx, store: s}); err != nil {
		return s.classify("transaction", err)
	}
	if err := tx.Commit(); err != nil {
		return s.classify("commit", fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// classify turns engine "busy" errors into StoreUnavailableError and
// leaves everything else untouched.
func (s *Store) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var unavailable *payroll.StoreUnavailableError
	if errors.As(err, &unavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || s.dialect.IsUnavailable(err) {
		return &payroll.StoreUnavailableError{Op: op, Err: err}
	}
	return err
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// dateArg binds an optional date as NULL when unset.
func dateArg(d *payroll.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func datePtr(d payroll.Date) *payroll.Date {
	if d.IsZero() {
		return nil
	}
	return &d
}
