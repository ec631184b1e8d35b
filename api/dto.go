/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Responses render money as strings with exactly two decimal places
  ("1250.50"). Requests accept either a JSON number or a numeric string;
  both decode straight into decimal.Decimal without passing through float64.

VALIDATION:
  Struct tags (go-playground/validator) check the shape of a body: required
  fields and closed value sets. Business rules (ranges, precision, the
  sanity ceiling) are checked by the payroll package so every caller gets
  them, HTTP or not.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: ErrorDTO and status mapping
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Response is the envelope every endpoint returns.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *ErrorDTO `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// ErrorDTO describes why a request failed.
type ErrorDTO struct {
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Fields    []FieldDTO `json:"fields,omitempty"`
	Requested string     `json:"requested,omitempty"`
	Available string     `json:"available,omitempty"`
}

type FieldDTO struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	Position        string        `json:"position"`
	Phone           string        `json:"phone,omitempty"`
	DailyWage       string        `json:"daily_wage"`
	OpeningBalance  string        `json:"opening_balance"`
	CurrentBalance  string        `json:"current_balance"`
	TotalBonuses    string        `json:"total_bonuses"`
	TotalDeductions string        `json:"total_deductions"`
	PaymentStatus   string        `json:"payment_status"`
	IsActive        bool          `json:"is_active"`
	HireDate        payroll.Date  `json:"hire_date"`
	LastPaymentDate *payroll.Date `json:"last_payment_date"`
	CreatedAt       string        `json:"created_at"`
	UpdatedAt       string        `json:"updated_at"`
	Today           *TodayDTO     `json:"today,omitempty"`
}

// TodayDTO carries the day's aggregates on employee reads.
type TodayDTO struct {
	Withdrawals      string `json:"today_withdrawals"`
	Bonuses          string `json:"today_bonuses"`
	Deductions       string `json:"today_deductions"`
	AttendanceStatus string `json:"attendance_status"`
}

// CreateEmployeeRequest is the request to create an employee.
// CurrentBalance is the opening balance owed at hire.
type CreateEmployeeRequest struct {
	Name           string           `json:"name" validate:"required"`
	Position       string           `json:"position" validate:"required"`
	Phone          string           `json:"phone"`
	DailyWage      *decimal.Decimal `json:"daily_wage" validate:"required"`
	CurrentBalance *decimal.Decimal `json:"current_balance"`
}

// UpdateEmployeeRequest carries only the fields to change.
type UpdateEmployeeRequest struct {
	Name          *string          `json:"name"`
	Position      *string          `json:"position"`
	Phone         *string          `json:"phone"`
	DailyWage     *decimal.Decimal `json:"daily_wage"`
	PaymentStatus *string          `json:"payment_status" validate:"omitempty,oneof=pending paid deferred"`
	IsActive      *bool            `json:"is_active"`
}

// BalanceDTO answers GET /employees/{id}/balance.
type BalanceDTO struct {
	EmployeeID     int64  `json:"employee_id"`
	Exists         bool   `json:"exists"`
	IsActive       bool   `json:"is_active"`
	CurrentBalance string `json:"current_balance"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// CreateTransactionRequest is the body of POST /employees/{id}/transactions.
type CreateTransactionRequest struct {
	TransactionType string           `json:"transaction_type"`
	Amount          *decimal.Decimal `json:"amount" validate:"required"`
	Description     string           `json:"description"`
	TransactionDate *payroll.Date    `json:"transaction_date"`
	CreatedBy       string           `json:"created_by"`
}

// TransactionDTO represents a ledger entry in API responses.
type TransactionDTO struct {
	ID              int64        `json:"id"`
	EmployeeID      int64        `json:"employee_id"`
	TransactionType string       `json:"transaction_type"`
	Amount          string       `json:"amount"`
	Description     string       `json:"description,omitempty"`
	TransactionDate payroll.Date `json:"transaction_date"`
	CreatedBy       string       `json:"created_by"`
	CreatedAt       string       `json:"created_at"`
}

// SettlementDTO answers POST /employees/{id}/settle.
type SettlementDTO struct {
	Settled  bool         `json:"settled"`
	Employee *EmployeeDTO `json:"employee,omitempty"`
}

type ReconciliationDTO struct {
	EmployeeID         int64  `json:"employee_id"`
	Transactions       int    `json:"transactions"`
	ExpectedBalance    string `json:"expected_balance"`
	ActualBalance      string `json:"actual_balance"`
	ExpectedBonuses    string `json:"expected_bonuses"`
	ActualBonuses      string `json:"actual_bonuses"`
	ExpectedDeductions string `json:"expected_deductions"`
	ActualDeductions   string `json:"actual_deductions"`
	Consistent         bool   `json:"consistent"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type MarkAttendanceRequest struct {
	Status         string        `json:"status" validate:"required,oneof=present absent"`
	AttendanceDate *payroll.Date `json:"attendance_date"`
	CheckInTime    string        `json:"check_in_time"`
	CheckOutTime   string        `json:"check_out_time"`
	Notes          string        `json:"notes"`
}

type AttendanceDTO struct {
	ID             int64        `json:"id"`
	EmployeeID     int64        `json:"employee_id"`
	AttendanceDate payroll.Date `json:"attendance_date"`
	Status         string       `json:"status"`
	CheckInTime    string       `json:"check_in_time,omitempty"`
	CheckOutTime   string       `json:"check_out_time,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      string       `json:"created_at"`
}

// =============================================================================
// REPORTS
// =============================================================================

type SummaryDTO struct {
	TotalEmployees        int    `json:"total_employees"`
	ActiveEmployees       int    `json:"active_employees"`
	PresentToday          int    `json:"present_today"`
	TotalDailyWages       string `json:"total_daily_wages"`
	TotalCurrentBalance   string `json:"total_current_balance"`
	TotalWithdrawalsToday string `json:"total_withdrawals_today"`
	TotalBonusesToday     string `json:"total_bonuses_today"`
	TotalDeductionsToday  string `json:"total_deductions_today"`
}

type AttendanceReportDTO struct {
	EmployeeID           int64  `json:"employee_id"`
	Name                 string `json:"name"`
	Position             string `json:"position"`
	PresentDays          int    `json:"present_days"`
	AbsentDays           int    `json:"absent_days"`
	TotalDays            int    `json:"total_days"`
	AttendancePercentage string `json:"attendance_percentage"`
}

type FinancialReportDTO struct {
	EmployeeID          int64         `json:"employee_id"`
	Name                string        `json:"name"`
	Position            string        `json:"position"`
	TotalWithdrawals    string        `json:"total_withdrawals"`
	TotalBonuses        string        `json:"total_bonuses"`
	TotalDeductions     string        `json:"total_deductions"`
	TotalSalaryPayments string        `json:"total_salary_payments"`
	CurrentBalance      string        `json:"current_balance"`
	LastPaymentDate     *payroll.Date `json:"last_payment_date"`
}

// HealthDTO answers GET /health.
type HealthDTO struct {
	Status   string       `json:"status"`
	Database string       `json:"database"`
	Pool     PoolStatsDTO `json:"pool"`
}

type PoolStatsDTO struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string {
	return payroll.FormatMoney(d)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              e.ID,
		Name:            e.Name,
		Position:        e.Position,
		Phone:           e.Phone,
		DailyWage:       money(e.DailyWage),
		OpeningBalance:  money(e.OpeningBalance),
		CurrentBalance:  money(e.CurrentBalance),
		TotalBonuses:    money(e.TotalBonuses),
		TotalDeductions: money(e.TotalDeductions),
		PaymentStatus:   string(e.PaymentStatus),
		IsActive:        e.IsActive,
		HireDate:        e.HireDate,
		LastPaymentDate: e.LastPaymentDate,
		CreatedAt:       timestamp(e.CreatedAt),
		UpdatedAt:       timestamp(e.UpdatedAt),
	}
}

func toEmployeeViewDTO(v payroll.EmployeeView) EmployeeDTO {
	dto := toEmployeeDTO(v.Employee)
	dto.Today = &TodayDTO{
		Withdrawals:      money(v.Today.Withdrawals),
		Bonuses:          money(v.Today.Bonuses),
		Deductions:       money(v.Today.Deductions),
		AttendanceStatus: string(v.Today.Attendance),
	}
	return dto
}

func toTransactionDTO(tx payroll.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:              tx.ID,
		EmployeeID:      tx.EmployeeID,
		TransactionType: string(tx.Type),
		Amount:          money(tx.Amount),
		Description:     tx.Description,
		TransactionDate: tx.Date,
		CreatedBy:       tx.CreatedBy,
		CreatedAt:       timestamp(tx.CreatedAt),
	}
}

func toAttendanceDTO(r payroll.AttendanceRecord) AttendanceDTO {
	return AttendanceDTO{
		ID:             r.ID,
		EmployeeID:     r.EmployeeID,
		AttendanceDate: r.Date,
		Status:         string(r.Status),
		CheckInTime:    r.CheckInTime,
		CheckOutTime:   r.CheckOutTime,
		Notes:          r.Notes,
		CreatedAt:      timestamp(r.CreatedAt),
	}
}

func toReconciliationDTO(r payroll.Reconciliation) ReconciliationDTO {
	return ReconciliationDTO{
		EmployeeID:         r.EmployeeID,
		Transactions:       r.Transactions,
		ExpectedBalance:    money(r.ExpectedBalance),
		ActualBalance:      money(r.ActualBalance),
		ExpectedBonuses:    money(r.ExpectedBonuses),
		ActualBonuses:      money(r.ActualBonuses),
		ExpectedDeductions: money(r.ExpectedDeductions),
		ActualDeductions:   money(r.ActualDeductions),
		Consistent:         r.Consistent,
	}
}

func toSummaryDTO(s payroll.Summary) SummaryDTO {
	return SummaryDTO{
		TotalEmployees:        s.TotalEmployees,
		ActiveEmployees:       s.ActiveEmployees,
		PresentToday:          s.PresentToday,
		TotalDailyWages:       money(s.TotalDailyWages),
		TotalCurrentBalance:   money(s.TotalCurrentBalance),
		TotalWithdrawalsToday: money(s.TotalWithdrawalsToday),
		TotalBonusesToday:     money(s.TotalBonusesToday),
		TotalDeductionsToday:  money(s.TotalDeductionsToday),
	}
}

func (r UpdateEmployeeRequest) toPatch() payroll.EmployeePatch {
	var p payroll.EmployeePatch
	if r.Name != nil {
		p.SetName(*r.Name)
	}
	if r.Position != nil {
		p.SetPosition(*r.Position)
	}
	if r.Phone != nil {
		p.SetPhone(*r.Phone)
	}
	if r.DailyWage != nil {
		p.SetDailyWage(*r.DailyWage)
	}
	if r.PaymentStatus != nil {
		p.SetPaymentStatus(payroll.PaymentStatus(*r.PaymentStatus))
	}
	if r.IsActive != nil {
		p.SetActive(*r.IsActive)
	}
	return p
}
