package sqlstore

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-ledger/payroll"
)

// Row types mirror table columns; they convert to domain types and never leave this package.

const employeeColumns = `id, name, position, phone, daily_wage, opening_balance, current_balance,
	total_bonuses, total_deductions, payment_status, is_active, hire_date, last_payment_date,
	created_at, updated_at`

type employeeRow struct {
	ID              int64           `db:"id"`
	Name            string          `db:"name"`
	Position        string          `db:"position"`
	Phone           sql.NullString  `db:"phone"`
	DailyWage       decimal.Decimal `db:"daily_wage"`
	OpeningBalance  decimal.Decimal `db:"opening_balance"`
	CurrentBalance  decimal.Decimal `db:"current_balance"`
	TotalBonuses    decimal.Decimal `db:"total_bonuses"`
	TotalDeductions decimal.Decimal `db:"total_deductions"`
	PaymentStatus   string          `db:"payment_status"`
	IsActive        bool            `db:"is_active"`
	HireDate        payroll.Date    `db:"hire_date"`
	LastPaymentDate payroll.Date    `db:"last_payment_date"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r employeeRow) toEmployee() payroll.Employee {
	return payroll.Employee{
		ID:              r.ID,
		Name:            r.Name,
		Position:        r.Position,
		Phone:           r.Phone.String,
		DailyWage:       r.DailyWage,
		OpeningBalance:  r.OpeningBalance,
		CurrentBalance:  r.CurrentBalance,
		TotalBonuses:    r.TotalBonuses,
		TotalDeductions: r.TotalDeductions,
		PaymentStatus:   payroll.PaymentStatus(r.PaymentStatus),
		IsActive:        r.IsActive,
		HireDate:        r.HireDate,
		LastPaymentDate: datePtr(r.LastPaymentDate),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type employeeViewRow struct {
	employeeRow
	TodayWithdrawals decimal.Decimal `db:"today_withdrawals"`
	TodayBonuses     decimal.Decimal `db:"today_bonuses"`
	TodayDeductions  decimal.Decimal `db:"today_deductions"`
	TodayAttendance  string          `db:"today_attendance"`
}

func (r employeeViewRow) toView() payroll.EmployeeView {
	return payroll.EmployeeView{
		Employee: r.toEmployee(),
		Today: payroll.TodayAggregates{
			Withdrawals: money(r.TodayWithdrawals),
			Bonuses:     money(r.TodayBonuses),
			Deductions:  money(r.TodayDeductions),
			Attendance:  payroll.AttendanceStatus(r.TodayAttendance),
		},
	}
}

const accountColumns = `id, is_active, opening_balance, current_balance, total_bonuses,
	total_deductions, payment_status, last_payment_date, updated_at`

type accountRow struct {
	ID              int64           `db:"id"`
	IsActive        bool            `db:"is_active"`
	OpeningBalance  decimal.Decimal `db:"opening_balance"`
	CurrentBalance  decimal.Decimal `db:"current_balance"`
	TotalBonuses    decimal.Decimal `db:"total_bonuses"`
	TotalDeductions decimal.Decimal `db:"total_deductions"`
	PaymentStatus   string          `db:"payment_status"`
	LastPaymentDate payroll.Date    `db:"last_payment_date"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r accountRow) toAccount() payroll.Account {
	return payroll.Account{
		EmployeeID:      r.ID,
		IsActive:        r.IsActive,
		OpeningBalance:  r.OpeningBalance,
		CurrentBalance:  r.CurrentBalance,
		TotalBonuses:    r.TotalBonuses,
		TotalDeductions: r.TotalDeductions,
		PaymentStatus:   payroll.PaymentStatus(r.PaymentStatus),
		LastPaymentDate: datePtr(r.LastPaymentDate),
		UpdatedAt:       r.UpdatedAt,
	}
}

const transactionColumns = `id, employee_id, transaction_type, amount, description,
	transaction_date, created_by, created_at`

type transactionRow struct {
	ID          int64           `db:"id"`
	EmployeeID  int64           `db:"employee_id"`
	Type        string          `db:"transaction_type"`
	Amount      decimal.Decimal `db:"amount"`
	Description sql.NullString  `db:"description"`
	Date        payroll.Date    `db:"transaction_date"`
	CreatedBy   string          `db:"created_by"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r transactionRow) toTransaction() payroll.Transaction {
	return payroll.Transaction{
		ID:          r.ID,
		EmployeeID:  r.EmployeeID,
		Type:        payroll.TransactionType(r.Type),
		Amount:      r.Amount,
		Description: r.Description.String,
		Date:        r.Date,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}
}

const attendanceColumns = `id, employee_id, attendance_date, status, check_in_time,
	check_out_time, notes, created_at`

type attendanceRow struct {
	ID           int64          `db:"id"`
	EmployeeID   int64          `db:"employee_id"`
	Date         payroll.Date   `db:"attendance_date"`
	Status       string         `db:"status"`
	CheckInTime  sql.NullString `db:"check_in_time"`
	CheckOutTime sql.NullString `db:"check_out_time"`
	Notes        sql.NullString `db:"notes"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (r attendanceRow) toRecord() payroll.AttendanceRecord {
	return payroll.AttendanceRecord{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		Date:         r.Date,
		Status:       payroll.AttendanceStatus(r.Status),
		CheckInTime:  r.CheckInTime.String,
		CheckOutTime: r.CheckOutTime.String,
		Notes:        r.Notes.String,
		CreatedAt:    r.CreatedAt,
	}
}

// money normalises a SQL aggregate to two decimal places. SQLite sums
// TEXT money as REAL, so the rounding is load-bearing there.
func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(payroll.MoneyScale)
}
