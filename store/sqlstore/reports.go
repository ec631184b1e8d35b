package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// REPORT STORE - read-only aggregates
// =============================================================================

func (s *Store) Summary(ctx context.Context, day payroll.Date) (payroll.Summary, error) {
	var totals struct {
		TotalEmployees      int             `db:"total_employees"`
		ActiveEmployees     int             `db:"active_employees"`
		TotalDailyWages     decimal.Decimal `db:"total_daily_wages"`
		TotalCurrentBalance decimal.Decimal `db:"total_current_balance"`
	}
	var present struct {
		PresentToday int `db:"present_today"`
	}
	var today struct {
		Withdrawals decimal.Decimal `db:"total_withdrawals_today"`
		Bonuses     decimal.Decimal `db:"total_bonuses_today"`
		Deductions  decimal.Decimal `db:"total_deductions_today"`
	}

	err := s.withConn(ctx, "summary", func(conn *sqlx.Conn) error {
		if err := sqlx.GetContext(ctx, conn, &totals, `
			SELECT
				COUNT(*) AS total_employees,
				COUNT(CASE WHEN is_active = TRUE THEN 1 END) AS active_employees,
				COALESCE(SUM(CASE WHEN is_active = TRUE THEN daily_wage ELSE 0 END), 0) AS total_daily_wages,
				COALESCE(SUM(CASE WHEN is_active = TRUE THEN current_balance ELSE 0 END), 0) AS total_current_balance
			FROM employees`); err != nil {
			return err
		}
		if err := sqlx.GetContext(ctx, conn, &present, s.rebind(`
			SELECT COUNT(DISTINCT employee_id) AS present_today
			FROM attendance
			WHERE attendance_date = ? AND status = 'present'`), day.String()); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, conn, &today, s.rebind(`
			SELECT
				COALESCE(SUM(CASE WHEN transaction_type = 'withdrawal' THEN amount ELSE 0 END), 0) AS total_withdrawals_today,
				COALESCE(SUM(CASE WHEN transaction_type = 'bonus' THEN amount ELSE 0 END), 0) AS total_bonuses_today,
				COALESCE(SUM(CASE WHEN transaction_type = 'deduction' THEN amount ELSE 0 END), 0) AS total_deductions_today
			FROM financial_transactions
			WHERE transaction_date = ?`), day.String())
	})
	if err != nil {
		return payroll.Summary{}, fmt.Errorf("failed to build summary: %w", err)
	}

	return payroll.Summary{
		TotalEmployees:        totals.TotalEmployees,
		ActiveEmployees:       totals.ActiveEmployees,
		PresentToday:          present.PresentToday,
		TotalDailyWages:       money(totals.TotalDailyWages),
		TotalCurrentBalance:   money(totals.TotalCurrentBalance),
		TotalWithdrawalsToday: money(today.Withdrawals),
		TotalBonusesToday:     money(today.Bonuses),
		TotalDeductionsToday:  money(today.Deductions),
	}, nil
}

func (s *Store) AttendanceReport(ctx context.Context, from, to payroll.Date) ([]payroll.AttendanceReportItem, error) {
	var rows []struct {
		EmployeeID  int64  `db:"employee_id"`
		Name        string `db:"name"`
		Position    string `db:"position"`
		PresentDays int    `db:"present_days"`
		AbsentDays  int    `db:"absent_days"`
		TotalDays   int    `db:"total_days"`
	}
	err := s.withConn(ctx, "attendance report", func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, s.rebind(`
			SELECT
				e.id AS employee_id,
				e.name,
				e.position,
				COUNT(CASE WHEN a.status = 'present' THEN 1 END) AS present_days,
				COUNT(CASE WHEN a.status = 'absent' THEN 1 END) AS absent_days,
				COUNT(a.id) AS total_days
			FROM employees e
			LEFT JOIN attendance a ON a.employee_id = e.id
				AND a.attendance_date BETWEEN ? AND ?
			WHERE e.is_active = TRUE
			GROUP BY e.id, e.name, e.position
			ORDER BY e.name, e.id`), from.String(), to.String())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build attendance report: %w", err)
	}

	hundred := decimal.NewFromInt(100)
	result := make([]payroll.AttendanceReportItem, len(rows))
	for i, r := range rows {
		pct := decimal.Zero
		if r.TotalDays > 0 {
			pct = decimal.NewFromInt(int64(r.PresentDays)).Mul(hundred).
				DivRound(decimal.NewFromInt(int64(r.TotalDays)), payroll.MoneyScale)
		}
		result[i] = payroll.AttendanceReportItem{
			EmployeeID:           r.EmployeeID,
			Name:                 r.Name,
			Position:             r.Position,
			PresentDays:          r.PresentDays,
			AbsentDays:           r.AbsentDays,
			TotalDays:            r.TotalDays,
			AttendancePercentage: pct,
		}
	}
	return result, nil
}

func (s *Store) FinancialReport(ctx context.Context) ([]payroll.FinancialReportItem, error) {
	var rows []struct {
		EmployeeID          int64           `db:"employee_id"`
		Name                string          `db:"name"`
		Position            string          `db:"position"`
		TotalWithdrawals    decimal.Decimal `db:"total_withdrawals"`
		TotalBonuses        decimal.Decimal `db:"total_bonuses"`
		TotalDeductions     decimal.Decimal `db:"total_deductions"`
		TotalSalaryPayments decimal.Decimal `db:"total_salary_payments"`
		CurrentBalance      decimal.Decimal `db:"current_balance"`
		LastPaymentDate     payroll.Date    `db:"last_payment_date"`
	}
	err := s.withConn(ctx, "financial report", func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, `
			SELECT
				e.id AS employee_id,
				e.name,
				e.position,
				COALESCE(SUM(CASE WHEN t.transaction_type = 'withdrawal' THEN t.amount ELSE 0 END), 0) AS total_withdrawals,
				COALESCE(SUM(CASE WHEN t.transaction_type = 'bonus' THEN t.amount ELSE 0 END), 0) AS total_bonuses,
				COALESCE(SUM(CASE WHEN t.transaction_type = 'deduction' THEN t.amount ELSE 0 END), 0) AS total_deductions,
				COALESCE(SUM(CASE WHEN t.transaction_type = 'salary_payment' THEN t.amount ELSE 0 END), 0) AS total_salary_payments,
				e.current_balance,
				e.last_payment_date
			FROM employees e
			LEFT JOIN financial_transactions t ON t.employee_id = e.id
			WHERE e.is_active = TRUE
			GROUP BY e.id, e.name, e.position, e.current_balance, e.last_payment_date
			ORDER BY e.name, e.id`)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build financial report: %w", err)
	}

	result := make([]payroll.FinancialReportItem, len(rows))
	for i, r := range rows {
		result[i] = payroll.FinancialReportItem{
			EmployeeID:          r.EmployeeID,
			Name:                r.Name,
			Position:            r.Position,
			TotalWithdrawals:    money(r.TotalWithdrawals),
			TotalBonuses:        money(r.TotalBonuses),
			TotalDeductions:     money(r.TotalDeductions),
			TotalSalaryPayments: money(r.TotalSalaryPayments),
			CurrentBalance:      r.CurrentBalance,
			LastPaymentDate:     datePtr(r.LastPaymentDate),
		}
	}
	return result, nil
}
