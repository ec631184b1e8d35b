// Package postgres provides the PostgreSQL backend of the payroll store.
//
// Money columns are NUMERIC(14,2). Row locks are taken with
// SELECT ... FOR UPDATE inside each ledger transaction, so concurrent
// mutations of different employees proceed in parallel.
package postgres

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"github.com/warp/payroll-ledger/store/sqlstore"
)

// New connects to dsn (a lib/pq URL or key=value string) and migrates the schema.
func New(ctx context.Context, dsn string, cfg sqlstore.Config) (*sqlstore.Store, error) {
	return sqlstore.Open(ctx, dsn, Dialect{}, cfg)
}

// Dialect implements sqlstore.Dialect for PostgreSQL.
type Dialect struct{}

func (Dialect) DriverName() string            { return "postgres" }
func (Dialect) LockClause() string            { return " FOR UPDATE" }
func (Dialect) ILike() string                 { return "ILIKE" }
func (Dialect) SortExpr(column string) string { return column }

// IsUnavailable matches connection-class and resource-class SQLSTATEs.
func (Dialect) IsUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
	}
	return false
}

func (Dialect) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS employees (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			position VARCHAR(100) NOT NULL,
			phone VARCHAR(20),
			daily_wage NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (daily_wage >= 0),
			opening_balance NUMERIC(14,2) NOT NULL DEFAULT 0,
			current_balance NUMERIC(14,2) NOT NULL DEFAULT 0,
			total_bonuses NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (total_bonuses >= 0),
			total_deductions NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (total_deductions >= 0),
			payment_status VARCHAR(20) NOT NULL DEFAULT 'pending'
				CHECK (payment_status IN ('pending', 'paid', 'deferred')),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			hire_date DATE NOT NULL DEFAULT CURRENT_DATE,
			last_payment_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_employees_active_name
			ON employees(is_active, name)`,

		`CREATE TABLE IF NOT EXISTS financial_transactions (
			id BIGSERIAL PRIMARY KEY,
			employee_id BIGINT NOT NULL REFERENCES employees(id),
			transaction_type VARCHAR(20) NOT NULL
				CHECK (transaction_type IN ('withdrawal', 'deduction', 'bonus', 'salary_payment')),
			amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			description TEXT,
			transaction_date DATE NOT NULL DEFAULT CURRENT_DATE,
			created_by VARCHAR(100) NOT NULL DEFAULT 'system',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_employee_date
			ON financial_transactions(employee_id, transaction_date DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date_type
			ON financial_transactions(transaction_date, transaction_type)`,

		`CREATE TABLE IF NOT EXISTS attendance (
			id BIGSERIAL PRIMARY KEY,
			employee_id BIGINT NOT NULL REFERENCES employees(id),
			attendance_date DATE NOT NULL DEFAULT CURRENT_DATE,
			status VARCHAR(10) NOT NULL CHECK (status IN ('present', 'absent')),
			check_in_time VARCHAR(8),
			check_out_time VARCHAR(8),
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (employee_id, attendance_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_date_status
			ON attendance(attendance_date, status)`,
	}
}
