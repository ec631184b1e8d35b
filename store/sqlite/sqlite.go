/*
Package sqlite provides the SQLite backend of the payroll store.

PURPOSE:
  Supplies the SQLite dialect and schema to store/sqlstore. Queries are
  shared with PostgreSQL; only locking, matching and money sorting differ.

KEY TABLES:
  employees:              directory records plus cached balance aggregates
  financial_transactions: append-only ledger
  attendance:             one row per (employee, day)

MONEY:
  SQLite has no exact decimal type. Money columns are TEXT holding
  canonical decimal strings written by Go; arithmetic never happens in
  SQL. Sorting casts to REAL, aggregates are rounded to cents in Go.

CONCURRENCY:
  Opened with _txlock=immediate so every transaction starts with
  BEGIN IMMEDIATE and takes the write lock up front. Two units touching
  the same employee therefore run one after the other; busy_timeout
  makes the second wait instead of failing.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

IN-MEMORY:
  ":memory:" is one database per connection, so the pool is pinned to
  a single connection that never expires.

USAGE:
  store, err := sqlite.New(ctx, "./data/payroll.db", sqlstore.DefaultConfig())
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/payroll-ledger/store/sqlstore"
)

const dsnOptions = "_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"

// New opens (and migrates) the SQLite database at path.
// Use ":memory:" for an in-memory database.
func New(ctx context.Context, path string, cfg sqlstore.Config) (*sqlstore.Store, error) {
	if IsMemory(path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxIdleTime = 0
		cfg.ConnMaxLifetime = 0
	}
	return sqlstore.Open(ctx, DSN(path), Dialect{}, cfg)
}

// DSN appends the connection options to path.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + dsnOptions
}

func IsMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Dialect implements sqlstore.Dialect for SQLite.
type Dialect struct{}

func (Dialect) DriverName() string { return "sqlite3" }

// LockClause is empty: BEGIN IMMEDIATE already holds the write lock.
func (Dialect) LockClause() string { return "" }

// ILike: SQLite LIKE is case-insensitive for ASCII.
func (Dialect) ILike() string { return "LIKE" }

func (Dialect) SortExpr(column string) string {
	switch {
	case strings.HasSuffix(column, "daily_wage"), strings.HasSuffix(column, "current_balance"):
		return "CAST(" + column + " AS REAL)"
	}
	return column
}

func (Dialect) IsUnavailable(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func (Dialect) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS employees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			position TEXT NOT NULL,
			phone TEXT,
			daily_wage TEXT NOT NULL DEFAULT '0.00',
			opening_balance TEXT NOT NULL DEFAULT '0.00',
			current_balance TEXT NOT NULL DEFAULT '0.00',
			total_bonuses TEXT NOT NULL DEFAULT '0.00',
			total_deductions TEXT NOT NULL DEFAULT '0.00',
			payment_status TEXT NOT NULL DEFAULT 'pending'
				CHECK (payment_status IN ('pending', 'paid', 'deferred')),
			is_active BOOLEAN NOT NULL DEFAULT 1,
			hire_date DATE NOT NULL,
			last_payment_date DATE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_employees_active_name
			ON employees(is_active, name)`,

		// Append-only ledger: no UPDATE or DELETE is ever issued against it.
		`CREATE TABLE IF NOT EXISTS financial_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			employee_id INTEGER NOT NULL REFERENCES employees(id),
			transaction_type TEXT NOT NULL
				CHECK (transaction_type IN ('withdrawal', 'deduction', 'bonus', 'salary_payment')),
			amount TEXT NOT NULL,
			description TEXT,
			transaction_date DATE NOT NULL,
			created_by TEXT NOT NULL DEFAULT 'system',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_employee_date
			ON financial_transactions(employee_id, transaction_date DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date_type
			ON financial_transactions(transaction_date, transaction_type)`,

		`CREATE TABLE IF NOT EXISTS attendance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			employee_id INTEGER NOT NULL REFERENCES employees(id),
			attendance_date DATE NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('present', 'absent')),
			check_in_time TEXT,
			check_out_time TEXT,
			notes TEXT,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (employee_id, attendance_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_date_status
			ON attendance(attendance_date, status)`,
	}
}
