// Package store provides an in-memory payroll store for tests and local runs.
package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements payroll.LedgerStore, DirectoryStore and AttendanceStore.
// A single mutex serialises every atomic unit, standing in for row locks.
type Memory struct {
	mu           sync.Mutex
	employees    map[int64]payroll.Employee
	transactions []payroll.Transaction
	attendance   map[attendanceKey]payroll.AttendanceRecord

	nextEmployeeID   int64
	nextTxID         int64
	nextAttendanceID int64

	fault func(op string) error
}

type attendanceKey struct {
	EmployeeID int64
	Date       payroll.Date
}

// Operations passed to the fault hook.
const (
	OpLockAccount       = "lock_account"
	OpInsertTransaction = "insert_transaction"
	OpUpdateAccount     = "update_account"
)

func NewMemory() *Memory {
	return &Memory{
		employees:  make(map[int64]payroll.Employee),
		attendance: make(map[attendanceKey]payroll.AttendanceRecord),
	}
}

// InjectFault makes every LedgerTx operation consult fn first; a non-nil
// result fails that operation. Pass nil to clear.
func (m *Memory) InjectFault(fn func(op string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

// Seed stores e as-is, assigning an ID when e.ID is zero.
func (m *Memory) Seed(e payroll.Employee) payroll.Employee {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		m.nextEmployeeID++
		e.ID = m.nextEmployeeID
	} else if e.ID > m.nextEmployeeID {
		m.nextEmployeeID = e.ID
	}
	m.employees[e.ID] = e
	return e
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) Account(_ context.Context, employeeID int64) (payroll.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountLocked(employeeID)
}

func (m *Memory) accountLocked(employeeID int64) (payroll.Account, error) {
	e, ok := m.employees[employeeID]
	if !ok {
		return payroll.Account{}, &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	return accountOf(e), nil
}

func (m *Memory) Transactions(_ context.Context, employeeID int64, limit int) ([]payroll.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.transactionsLocked(employeeID)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) transactionsLocked(employeeID int64) []payroll.Transaction {
	var result []payroll.Transaction
	for _, tx := range m.transactions {
		if tx.EmployeeID == employeeID {
			result = append(result, tx)
		}
	}
	// Stable on insertion order, so equal dates keep creation order.
	slices.SortStableFunc(result, func(a, b payroll.Transaction) int {
		return a.Date.Time().Compare(b.Date.Time())
	})
	return result
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(payroll.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &payroll.StoreUnavailableError{Op: "begin", Err: err}
	}

	snap := m.snapshot()
	if err := fn(&memoryTx{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	employees      map[int64]payroll.Employee
	transactionLen int
	nextTxID       int64
}

func (m *Memory) snapshot() memorySnapshot {
	employees := make(map[int64]payroll.Employee, len(m.employees))
	for k, v := range m.employees {
		employees[k] = v
	}
	return memorySnapshot{employees: employees, transactionLen: len(m.transactions), nextTxID: m.nextTxID}
}

func (m *Memory) restore(s memorySnapshot) {
	m.employees = s.employees
	m.transactions = m.transactions[:s.transactionLen]
	m.nextTxID = s.nextTxID
}

type memoryTx struct {
	parent *Memory
}

func (t *memoryTx) check(op string) error {
	if t.parent.fault == nil {
		return nil
	}
	return t.parent.fault(op)
}

func (t *memoryTx) LockAccount(_ context.Context, employeeID int64) (payroll.Account, error) {
	if err := t.check(OpLockAccount); err != nil {
		return payroll.Account{}, err
	}
	return t.parent.accountLocked(employeeID)
}

func (t *memoryTx) InsertTransaction(_ context.Context, tx payroll.Transaction) (payroll.Transaction, error) {
	if err := t.check(OpInsertTransaction); err != nil {
		return payroll.Transaction{}, err
	}
	if _, ok := t.parent.employees[tx.EmployeeID]; !ok {
		return payroll.Transaction{}, &payroll.EmployeeNotFoundError{EmployeeID: tx.EmployeeID}
	}
	t.parent.nextTxID++
	tx.ID = t.parent.nextTxID
	t.parent.transactions = append(t.parent.transactions, tx)
	return tx, nil
}

func (t *memoryTx) UpdateAccount(_ context.Context, acct payroll.Account) error {
	if err := t.check(OpUpdateAccount); err != nil {
		return err
	}
	e, ok := t.parent.employees[acct.EmployeeID]
	if !ok {
		return &payroll.EmployeeNotFoundError{EmployeeID: acct.EmployeeID}
	}
	e.CurrentBalance = acct.CurrentBalance
	e.TotalBonuses = acct.TotalBonuses
	e.TotalDeductions = acct.TotalDeductions
	e.PaymentStatus = acct.PaymentStatus
	e.LastPaymentDate = acct.LastPaymentDate
	e.UpdatedAt = acct.UpdatedAt
	t.parent.employees[acct.EmployeeID] = e
	return nil
}

func (t *memoryTx) Transactions(_ context.Context, employeeID int64) ([]payroll.Transaction, error) {
	return t.parent.transactionsLocked(employeeID), nil
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

func (m *Memory) CreateEmployee(_ context.Context, e payroll.Employee) (payroll.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEmployeeID++
	e.ID = m.nextEmployeeID
	m.employees[e.ID] = e
	return e, nil
}

func (m *Memory) UpdateEmployee(_ context.Context, employeeID int64, p payroll.EmployeePatch, at time.Time) (payroll.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[employeeID]
	if !ok || !e.IsActive {
		return payroll.Employee{}, &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	e = p.ApplyTo(e)
	e.UpdatedAt = at
	m.employees[employeeID] = e
	return e, nil
}

func (m *Memory) DeactivateEmployee(_ context.Context, employeeID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[employeeID]
	if !ok || !e.IsActive {
		return &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	e.IsActive = false
	e.UpdatedAt = at
	m.employees[employeeID] = e
	return nil
}

func (m *Memory) Employee(_ context.Context, employeeID int64, day payroll.Date) (payroll.EmployeeView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[employeeID]
	if !ok || !e.IsActive {
		return payroll.EmployeeView{}, &payroll.EmployeeNotFoundError{EmployeeID: employeeID}
	}
	return m.viewLocked(e, day), nil
}

func (m *Memory) Employees(_ context.Context, f payroll.EmployeeFilter, day payroll.Date) ([]payroll.EmployeeView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := strings.ToLower(f.Name)
	position := strings.ToLower(f.Position)

	var result []payroll.EmployeeView
	for _, e := range m.employees {
		if !e.IsActive {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(e.Name), name) {
			continue
		}
		if position != "" && !strings.Contains(strings.ToLower(e.Position), position) {
			continue
		}
		if f.PaymentStatus != "" && e.PaymentStatus != f.PaymentStatus {
			continue
		}
		if e.ID <= f.AfterID {
			continue
		}
		v := m.viewLocked(e, day)
		if f.AttendanceStatus != "" && v.Today.Attendance != f.AttendanceStatus {
			continue
		}
		result = append(result, v)
	}

	slices.SortFunc(result, func(a, b payroll.EmployeeView) int {
		c := compareBy(f.SortBy, a.Employee, b.Employee)
		if f.SortDesc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})

	if f.Page > 0 && f.Limit > 0 {
		start := (f.Page - 1) * f.Limit
		if start >= len(result) {
			return []payroll.EmployeeView{}, nil
		}
		result = result[start:min(start+f.Limit, len(result))]
	}
	return result, nil
}

func compareBy(field string, a, b payroll.Employee) int {
	switch field {
	case "position":
		return cmp.Compare(a.Position, b.Position)
	case "daily_wage":
		return a.DailyWage.Cmp(b.DailyWage)
	case "current_balance":
		return a.CurrentBalance.Cmp(b.CurrentBalance)
	case "hire_date":
		return a.HireDate.Time().Compare(b.HireDate.Time())
	case "id":
		return cmp.Compare(a.ID, b.ID)
	}
	return cmp.Compare(a.Name, b.Name)
}

func (m *Memory) viewLocked(e payroll.Employee, day payroll.Date) payroll.EmployeeView {
	today := payroll.TodayAggregates{
		Withdrawals: decimal.Zero,
		Bonuses:     decimal.Zero,
		Deductions:  decimal.Zero,
		Attendance:  payroll.AttendanceAbsent,
	}
	for _, tx := range m.transactions {
		if tx.EmployeeID != e.ID || !tx.Date.Equal(day) {
			continue
		}
		switch tx.Type {
		case payroll.TxWithdrawal:
			today.Withdrawals = today.Withdrawals.Add(tx.Amount)
		case payroll.TxBonus:
			today.Bonuses = today.Bonuses.Add(tx.Amount)
		case payroll.TxDeduction:
			today.Deductions = today.Deductions.Add(tx.Amount)
		}
	}
	if rec, ok := m.attendance[attendanceKey{EmployeeID: e.ID, Date: day}]; ok {
		today.Attendance = rec.Status
	}
	return payroll.EmployeeView{Employee: e, Today: today}
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

func (m *Memory) UpsertAttendance(_ context.Context, rec payroll.AttendanceRecord) (payroll.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[rec.EmployeeID]; !ok {
		return payroll.AttendanceRecord{}, &payroll.EmployeeNotFoundError{EmployeeID: rec.EmployeeID}
	}
	k := attendanceKey{EmployeeID: rec.EmployeeID, Date: rec.Date}
	if existing, ok := m.attendance[k]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		m.nextAttendanceID++
		rec.ID = m.nextAttendanceID
	}
	m.attendance[k] = rec
	return rec, nil
}

func (m *Memory) Attendance(_ context.Context, employeeID int64, from, to *payroll.Date) ([]payroll.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []payroll.AttendanceRecord{}
	for k, rec := range m.attendance {
		if k.EmployeeID != employeeID {
			continue
		}
		if from != nil && rec.Date.Before(*from) {
			continue
		}
		if to != nil && rec.Date.After(*to) {
			continue
		}
		result = append(result, rec)
	}
	slices.SortFunc(result, func(a, b payroll.AttendanceRecord) int {
		return b.Date.Time().Compare(a.Date.Time())
	})
	return result, nil
}

func accountOf(e payroll.Employee) payroll.Account {
	return payroll.Account{
		EmployeeID:      e.ID,
		IsActive:        e.IsActive,
		OpeningBalance:  e.OpeningBalance,
		CurrentBalance:  e.CurrentBalance,
		TotalBonuses:    e.TotalBonuses,
		TotalDeductions: e.TotalDeductions,
		PaymentStatus:   e.PaymentStatus,
		LastPaymentDate: e.LastPaymentDate,
		UpdatedAt:       e.UpdatedAt,
	}
}
