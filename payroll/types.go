/*
Package payroll provides the employee balance ledger and its supporting services.

PURPOSE:
  Tracks what a business owes each employee. Every withdrawal, deduction,
  bonus and salary payment is written to an append-only transaction log
  and, in the same atomic unit, folded into the cached aggregates on the
  employee row (current_balance, total_bonuses, total_deductions).

KEY CONCEPTS IN THIS FILE (types.go):
  - TransactionType: the four kinds of financial transaction and their Effect
  - Account: the balance-bearing part of an employee row
  - Transaction: an immutable ledger entry
  - Employee / EmployeeView: directory records, optionally with today's aggregates

DESIGN PRINCIPLES:
  1. Immutability: transactions are never modified or deleted
  2. Precision: money is decimal.Decimal, never float64
  3. One atomic unit: log insert and aggregate update commit together
  4. Balance invariant: current_balance = opening_balance + sum of effects

SEE ALSO:
  - ledger.go: Balance Mutator, Settlement Engine, Reconciler
  - store.go: persistence boundary
  - errors.go: error taxonomy
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyScale is the number of decimal places money is kept at.
const MoneyScale = 2

// FormatMoney renders an amount with exactly two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

type TransactionType string

const (
	TxWithdrawal    TransactionType = "withdrawal"
	TxDeduction     TransactionType = "deduction"
	TxBonus         TransactionType = "bonus"
	TxSalaryPayment TransactionType = "salary_payment"
)

// TransactionTypes lists every recognised kind.
var TransactionTypes = []TransactionType{TxWithdrawal, TxDeduction, TxBonus, TxSalaryPayment}

func (t TransactionType) Valid() bool {
	switch t {
	case TxWithdrawal, TxDeduction, TxBonus, TxSalaryPayment:
		return true
	}
	return false
}

// Effect is the change a transaction makes to an employee's aggregates.
type Effect struct {
	Balance    decimal.Decimal
	Bonuses    decimal.Decimal
	Deductions decimal.Decimal
}

// Effect maps a transaction of this type and amount to its aggregate deltas.
// Amount is always positive; the sign comes from the type.
func (t TransactionType) Effect(amount decimal.Decimal) Effect {
	switch t {
	case TxWithdrawal, TxSalaryPayment:
		return Effect{Balance: amount.Neg(), Bonuses: decimal.Zero, Deductions: decimal.Zero}
	case TxDeduction:
		return Effect{Balance: amount.Neg(), Bonuses: decimal.Zero, Deductions: amount}
	case TxBonus:
		return Effect{Balance: amount, Bonuses: amount, Deductions: decimal.Zero}
	}
	return Effect{Balance: decimal.Zero, Bonuses: decimal.Zero, Deductions: decimal.Zero}
}

// =============================================================================
// STATUSES
// =============================================================================

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentDeferred PaymentStatus = "deferred"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentPaid || s == PaymentDeferred
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// =============================================================================
// ACCOUNT - balance-bearing fields of an employee row
// =============================================================================

// Account is what the ledger reads and writes on the employee row.
type Account struct {
	EmployeeID      int64
	IsActive        bool
	OpeningBalance  decimal.Decimal
	CurrentBalance  decimal.Decimal
	TotalBonuses    decimal.Decimal
	TotalDeductions decimal.Decimal
	PaymentStatus   PaymentStatus
	LastPaymentDate *Date
	UpdatedAt       time.Time
}

// Apply returns the account with the effect folded in.
func (a Account) Apply(e Effect) Account {
	a.CurrentBalance = a.CurrentBalance.Add(e.Balance)
	a.TotalBonuses = a.TotalBonuses.Add(e.Bonuses)
	a.TotalDeductions = a.TotalDeductions.Add(e.Deductions)
	return a
}

// BalanceView is the directory's answer to "can this employee transact, and with what".
type BalanceView struct {
	EmployeeID     int64
	Exists         bool
	IsActive       bool
	CurrentBalance decimal.Decimal
}

// =============================================================================
// TRANSACTION - immutable ledger entry
// =============================================================================

type Transaction struct {
	ID          int64
	EmployeeID  int64
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Date        Date
	CreatedBy   string
	CreatedAt   time.Time
}

// Effect returns the aggregate deltas this transaction applied.
func (t Transaction) Effect() Effect {
	return t.Type.Effect(t.Amount)
}

// TransactionRequest is the input of Ledger.Apply.
type TransactionRequest struct {
	EmployeeID  int64
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Date        *Date  // defaults to today
	CreatedBy   string // defaults to SystemActor
}

// SystemActor tags transactions created without an explicit actor.
const SystemActor = "system"

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	ID              int64
	Name            string
	Position        string
	Phone           string
	DailyWage       decimal.Decimal
	OpeningBalance  decimal.Decimal
	CurrentBalance  decimal.Decimal
	TotalBonuses    decimal.Decimal
	TotalDeductions decimal.Decimal
	PaymentStatus   PaymentStatus
	IsActive        bool
	HireDate        Date
	LastPaymentDate *Date
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TodayAggregates are computed from the ledger and attendance for a single day.
type TodayAggregates struct {
	Withdrawals decimal.Decimal
	Bonuses     decimal.Decimal
	Deductions  decimal.Decimal
	Attendance  AttendanceStatus
}

// EmployeeView is an employee with the day's aggregates attached.
type EmployeeView struct {
	Employee
	Today TodayAggregates
}

// NewEmployee is the input of Directory.Create.
type NewEmployee struct {
	Name           string
	Position       string
	Phone          string
	DailyWage      decimal.Decimal
	OpeningBalance decimal.Decimal
}

// EmployeeFilter narrows Directory.List. Zero values mean "no filter".
type EmployeeFilter struct {
	Name             string
	Position         string
	PaymentStatus    PaymentStatus
	AttendanceStatus AttendanceStatus
	SortBy           string
	SortDesc         bool
	Page             int // 1-based; 0 disables pagination
	Limit            int

	// AfterID keeps only employees with a larger id. Combined with
	// SortBy "id" it pages by cursor, which stays stable while rows
	// are added or deactivated between pages.
	AfterID int64
}

// SortableEmployeeFields whitelists EmployeeFilter.SortBy.
var SortableEmployeeFields = []string{"name", "position", "daily_wage", "current_balance", "hire_date", "id"}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceRecord struct {
	ID           int64
	EmployeeID   int64
	Date         Date
	Status       AttendanceStatus
	CheckInTime  string
	CheckOutTime string
	Notes        string
	CreatedAt    time.Time
}

// MarkAttendance is the input of AttendanceBook.Mark.
type MarkAttendance struct {
	Status       AttendanceStatus
	Date         *Date
	CheckInTime  string
	CheckOutTime string
	Notes        string
}

// =============================================================================
// REPORTS
// =============================================================================

type Summary struct {
	TotalEmployees        int
	ActiveEmployees       int
	PresentToday          int
	TotalDailyWages       decimal.Decimal
	TotalCurrentBalance   decimal.Decimal
	TotalWithdrawalsToday decimal.Decimal
	TotalBonusesToday     decimal.Decimal
	TotalDeductionsToday  decimal.Decimal
}

type AttendanceReportItem struct {
	EmployeeID           int64
	Name                 string
	Position             string
	PresentDays          int
	AbsentDays           int
	TotalDays            int
	AttendancePercentage decimal.Decimal
}

type FinancialReportItem struct {
	EmployeeID          int64
	Name                string
	Position            string
	TotalWithdrawals    decimal.Decimal
	TotalBonuses        decimal.Decimal
	TotalDeductions     decimal.Decimal
	TotalSalaryPayments decimal.Decimal
	CurrentBalance      decimal.Decimal
	LastPaymentDate     *Date
}

// Reconciliation compares cached aggregates with a replay of the ledger.
type Reconciliation struct {
	EmployeeID         int64
	Transactions       int
	ExpectedBalance    decimal.Decimal
	ActualBalance      decimal.Decimal
	ExpectedBonuses    decimal.Decimal
	ActualBonuses      decimal.Decimal
	ExpectedDeductions decimal.Decimal
	ActualDeductions   decimal.Decimal
	Consistent         bool
}

// PoolStats is a snapshot of the store's connection pool.
type PoolStats struct {
	MaxOpen      int
	Open         int
	InUse        int
	Idle         int
	WaitCount    int64
	WaitDuration time.Duration
}
