/*
store.go - Persistence boundary of the payroll ledger

PURPOSE:
  Defines the interfaces between the domain services and the database.
  The transaction log is append-only: there is an insert and nothing
  else. The employee row's balance fields are written only through
  LedgerTx.UpdateAccount, which only the Ledger calls.

KEY INTERFACES:
  LedgerStore:     atomic units over the employee row + transaction log
  LedgerTx:        operations valid inside one atomic unit
  DirectoryStore:  employee CRUD (no balance writes)
  AttendanceStore: one record per employee and day
  ReportStore:     read-only aggregates
  Store:           all of the above plus lifecycle

ATOMIC UNITS:
  WithTx checks out one connection, begins a transaction and hands fn a
  LedgerTx bound to it. fn returning an error rolls everything back; nil
  commits. The connection goes back to the pool either way.

IMPLEMENTATIONS:
  - store/sqlstore: shared SQL layer (sqlx)
  - store/sqlite, store/postgres: dialects over sqlstore
  - payroll/store: in-memory, for tests
*/
package payroll

import (
	"context"
	"time"
)

// AccountReader reads an employee's balance fields without locking.
// A missing employee yields *EmployeeNotFoundError; inactive ones are returned.
type AccountReader interface {
	Account(ctx context.Context, employeeID int64) (Account, error)
}

// LedgerStore runs atomic units against the ledger.
type LedgerStore interface {
	AccountReader

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(LedgerTx) error) error

	// Transactions returns an employee's log newest first. limit <= 0 returns all.
	Transactions(ctx context.Context, employeeID int64, limit int) ([]Transaction, error)
}

// LedgerTx is bound to one open transaction.
type LedgerTx interface {
	// LockAccount reads the employee row and holds it until the unit ends.
	LockAccount(ctx context.Context, employeeID int64) (Account, error)

	// InsertTransaction appends to the log and returns the row with ID set.
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)

	// UpdateAccount writes balance, counters, payment status,
	// last payment date and updated_at.
	UpdateAccount(ctx context.Context, acct Account) error

	// Transactions returns the employee's full log oldest first.
	Transactions(ctx context.Context, employeeID int64) ([]Transaction, error)
}

type DirectoryStore interface {
	AccountReader

	CreateEmployee(ctx context.Context, e Employee) (Employee, error)

	// UpdateEmployee applies the set fields of p to an active employee.
	UpdateEmployee(ctx context.Context, employeeID int64, p EmployeePatch, at time.Time) (Employee, error)

	DeactivateEmployee(ctx context.Context, employeeID int64, at time.Time) error

	// Employee returns an active employee with the aggregates of day.
	Employee(ctx context.Context, employeeID int64, day Date) (EmployeeView, error)

	// Employees lists active employees with the aggregates of day.
	Employees(ctx context.Context, filter EmployeeFilter, day Date) ([]EmployeeView, error)
}

type AttendanceStore interface {
	AccountReader

	// UpsertAttendance replaces the record of (employee, date) if one exists.
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error)

	// Attendance returns records newest first. Nil bounds are open.
	Attendance(ctx context.Context, employeeID int64, from, to *Date) ([]AttendanceRecord, error)
}

type ReportStore interface {
	Summary(ctx context.Context, day Date) (Summary, error)
	AttendanceReport(ctx context.Context, from, to Date) ([]AttendanceReportItem, error)
	FinancialReport(ctx context.Context) ([]FinancialReportItem, error)
}

// Store is a complete backend.
type Store interface {
	LedgerStore
	DirectoryStore
	AttendanceStore
	ReportStore

	Ping(ctx context.Context) error
	Stats() PoolStats
	Close() error
}
