package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// DIRECTORY STORE
// =============================================================================

func (s *Store) CreateEmployee(ctx context.Context, e payroll.Employee) (payroll.Employee, error) {
	var row employeeRow
	err := s.withConn(ctx, "create employee", func(conn *sqlx.Conn) error {
		return sqlx.GetContext(ctx, conn, &row, s.rebind(`
			INSERT INTO employees
				(name, position, phone, daily_wage, opening_balance, current_balance,
				 total_bonuses, total_deductions, payment_status, is_active, hire_date,
				 created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+employeeColumns),
			e.Name, e.Position, nullString(e.Phone),
			e.DailyWage.StringFixed(payroll.MoneyScale),
			e.OpeningBalance.StringFixed(payroll.MoneyScale),
			e.CurrentBalance.StringFixed(payroll.MoneyScale),
			e.TotalBonuses.StringFixed(payroll.MoneyScale),
			e.TotalDeductions.StringFixed(payroll.MoneyScale),
			string(e.PaymentStatus), e.IsActive, e.HireDate.String(),
			e.CreatedAt, e.UpdatedAt,
		)
	})
	if err != nil {
		return payroll.Employee{}, fmt.Errorf("failed to create employee: %w", err)
	}
	return row.toEmployee(), nil
}

// UpdateEmployee builds the SET list from the fields the patch carries.
// Balance columns are not reachable from a patch.
func (s *Store) UpdateEmployee(ctx context.Context, employeeID int64, p payroll.EmployeePatch, at time.Time) (payroll.Employee, error) {
	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if v, ok := p.Name(); ok {
		set("name", v)
	}
	if v, ok := p.Position(); ok {
		set("position", v)
	}
	if v, ok := p.Phone(); ok {
		set("phone", nullString(v))
	}
	if v, ok := p.DailyWage(); ok {
		set("daily_wage", v.StringFixed(payroll.MoneyScale))
	}
	if v, ok := p.PaymentStatus(); ok {
		set("payment_status", string(v))
	}
	if v, ok := p.Active(); ok {
		set("is_active", v)
	}
	if len(sets) == 0 {
		return payroll.Employee{}, payroll.ErrNoChanges
	}
	set("updated_at", at)
	args = append(args, employeeID)

	query := `UPDATE employees SET ` + strings.Join(sets, ", ") +
		` WHERE id = ? AND is_active = TRUE RETURNING ` + employeeColumns

	var row employeeRow
	err := s.withConn(ctx, "update employee", func(conn *sqlx.Conn) error {
		return sqlx.GetContext(ctx, conn, &row, s.rebind(query), args...)
	})
	if isNoRows(err) {
		return payroll.Employee{}, &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	if err != nil {
		return payroll.Employee{}, fmt.Errorf("failed to update employee: %w", err)
	}
	return row.toEmployee(), nil
}

func (s *Store) DeactivateEmployee(ctx context.Context, employeeID int64, at time.Time) error {
	var affected int64
	err := s.withConn(ctx, "deactivate employee", func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, s.rebind(
			`UPDATE employees SET is_active = FALSE, updated_at = ? WHERE id = ? AND is_active = TRUE`),
			at, employeeID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate employee: %w", err)
	}
	if affected == 0 {
		return &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	return nil
}

// employeeViewQuery selects employees with the given day's aggregates.
// Its four placeholders all take the day.
const employeeViewQuery = `
	SELECT e.*,
		COALESCE((SELECT SUM(t.amount) FROM financial_transactions t
			WHERE t.employee_id = e.id AND t.transaction_type = 'withdrawal' AND t.transaction_date = ?), 0) AS today_withdrawals,
		COALESCE((SELECT SUM(t.amount) FROM financial_transactions t
			WHERE t.employee_id = e.id AND t.transaction_type = 'bonus' AND t.transaction_date = ?), 0) AS today_bonuses,
		COALESCE((SELECT SUM(t.amount) FROM financial_transactions t
			WHERE t.employee_id = e.id AND t.transaction_type = 'deduction' AND t.transaction_date = ?), 0) AS today_deductions,
		COALESCE((SELECT a.status FROM attendance a
			WHERE a.employee_id = e.id AND a.attendance_date = ?), 'absent') AS today_attendance
	FROM employees e
	WHERE e.is_active = TRUE`

func dayArgs(day payroll.Date) []any {
	d := day.String()
	return []any{d, d, d, d}
}

func (s *Store) Employee(ctx context.Context, employeeID int64, day payroll.Date) (payroll.EmployeeView, error) {
	var row employeeViewRow
	err := s.withConn(ctx, "employee", func(conn *sqlx.Conn) error {
		return sqlx.GetContext(ctx, conn, &row,
			s.rebind(employeeViewQuery+` AND e.id = ?`), append(dayArgs(day), employeeID)...)
	})
	if isNoRows(err) {
		return payroll.EmployeeView{}, &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	if err != nil {
		return payroll.EmployeeView{}, fmt.Errorf("failed to load employee: %w", err)
	}
	return row.toView(), nil
}

func (s *Store) Employees(ctx context.Context, f payroll.EmployeeFilter, day payroll.Date) ([]payroll.EmployeeView, error) {
	query := `SELECT * FROM (` + employeeViewQuery + `) v WHERE 1 = 1`
	args := dayArgs(day)

	if f.Name != "" {
		query += ` AND v.name ` + s.dialect.ILike() + ` ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(f.Name)+"%")
	}
	if f.Position != "" {
		query += ` AND v.position ` + s.dialect.ILike() + ` ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(f.Position)+"%")
	}
	if f.AfterID > 0 {
		query += ` AND v.id > ?`
		args = append(args, f.AfterID)
	}
	if f.PaymentStatus != "" {
		query += ` AND v.payment_status = ?`
		args = append(args, string(f.PaymentStatus))
	}
	if f.AttendanceStatus != "" {
		query += ` AND v.today_attendance = ?`
		args = append(args, string(f.AttendanceStatus))
	}

	direction := "ASC"
	if f.SortDesc {
		direction = "DESC"
	}
	query += ` ORDER BY ` + s.dialect.SortExpr("v."+sortColumn(f.SortBy)) + ` ` + direction + `, v.id ASC`

	if f.Page > 0 && f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, (f.Page-1)*f.Limit)
	}

	var rows []employeeViewRow
	err := s.withConn(ctx, "employees", func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, s.rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	result := make([]payroll.EmployeeView, len(rows))
	for i, r := range rows {
		result[i] = r.toView()
	}
	return result, nil
}

// sortColumn maps a whitelisted sort key to its column; anything else sorts by name.
func sortColumn(key string) string {
	switch key {
	case "position", "daily_wage", "current_balance", "hire_date", "id":
		return key
	}
	return "name"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
