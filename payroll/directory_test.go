package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-ledger/payroll"
	"github.com/warp/payroll-ledger/payroll/store"
)

func newTestDirectory(t *testing.T) (*payroll.Directory, *payroll.Ledger, *payroll.AttendanceBook) {
	t.Helper()
	mem := store.NewMemory()
	opts := []payroll.Option{payroll.WithClock(fixedClock)}
	return payroll.NewDirectory(mem, opts...), payroll.NewLedger(mem, opts...), payroll.NewAttendanceBook(mem, opts...)
}

func createEmployee(t *testing.T, dir *payroll.Directory, name, opening string) *payroll.Employee {
	t.Helper()
	e, err := dir.Create(context.Background(), payroll.NewEmployee{
		Name:           name,
		Position:       "Waiter",
		DailyWage:      dec("50"),
		OpeningBalance: dec(opening),
	})
	require.NoError(t, err)
	return e
}

func TestDirectory_Create_SetsOpeningBalanceAndDefaults(t *testing.T) {
	dir, ledger, _ := newTestDirectory(t)
	ctx := context.Background()

	e := createEmployee(t, dir, "  Chidi Okafor ", "120.00")

	assert.NotZero(t, e.ID)
	assert.Equal(t, "Chidi Okafor", e.Name)
	assert.True(t, e.IsActive)
	assert.Equal(t, payroll.PaymentPending, e.PaymentStatus)
	assert.Equal(t, "2025-03-10", e.HireDate.String())
	assert.True(t, e.CurrentBalance.Equal(dec("120")))
	assert.True(t, e.OpeningBalance.Equal(dec("120")))

	assertConsistent(t, ledger, e.ID)

	_, err := dir.Create(ctx, payroll.NewEmployee{Name: "X", Position: "Waiter"})
	assert.ErrorIs(t, err, payroll.ErrValidation)
}

func TestDirectory_Balance(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()
	e := createEmployee(t, dir, "Chidi Okafor", "15.50")

	view, err := dir.Balance(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, view.Exists)
	assert.True(t, view.IsActive)
	assert.True(t, view.CurrentBalance.Equal(dec("15.5")))

	require.NoError(t, dir.Deactivate(ctx, e.ID))
	view, err = dir.Balance(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, view.Exists)
	assert.False(t, view.IsActive)

	view, err = dir.Balance(ctx, 777)
	require.NoError(t, err)
	assert.False(t, view.Exists)
}

func TestDirectory_Update(t *testing.T) {
	// GIVEN: An employee
	// WHEN: Patching position and payment status
	// THEN: Only those fields change, balance untouched

	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()
	e := createEmployee(t, dir, "Chidi Okafor", "60")

	var p payroll.EmployeePatch
	p.SetPosition("Head Waiter").SetPaymentStatus(payroll.PaymentDeferred)

	updated, err := dir.Update(ctx, e.ID, p)
	require.NoError(t, err)
	assert.Equal(t, "Head Waiter", updated.Position)
	assert.Equal(t, payroll.PaymentDeferred, updated.PaymentStatus)
	assert.Equal(t, e.Name, updated.Name)
	assert.True(t, updated.CurrentBalance.Equal(dec("60")))
}

func TestDirectory_Update_Errors(t *testing.T) {
	dir, _, _ := newTestDirectory(t)
	ctx := context.Background()
	e := createEmployee(t, dir, "Chidi Okafor", "0")

	_, err := dir.Update(ctx, e.ID, payroll.EmployeePatch{})
	assert.ErrorIs(t, err, payroll.ErrNoChanges)

	var bad payroll.EmployeePatch
	bad.SetDailyWage(decimal.NewFromInt(-5))
	_, err = dir.Update(ctx, e.ID, bad)
	assert.ErrorIs(t, err, payroll.ErrValidation)

	var p payroll.EmployeePatch
	p.SetName("Someone Else")
	_, err = dir.Update(ctx, 9999, p)
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)

	require.NoError(t, dir.Deactivate(ctx, e.ID))
	_, err = dir.Update(ctx, e.ID, p)
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)
	assert.ErrorIs(t, dir.Deactivate(ctx, e.ID), payroll.ErrEmployeeNotFound)
}

func TestDirectory_Get_TodayAggregates(t *testing.T) {
	dir, ledger, book := newTestDirectory(t)
	ctx := context.Background()
	e := createEmployee(t, dir, "Chidi Okafor", "200")

	_, err := ledger.Apply(ctx, request(e.ID, payroll.TxWithdrawal, "30"))
	require.NoError(t, err)
	_, err = ledger.Apply(ctx, request(e.ID, payroll.TxWithdrawal, "12.50"))
	require.NoError(t, err)
	_, err = ledger.Apply(ctx, request(e.ID, payroll.TxBonus, "5"))
	require.NoError(t, err)

	yesterday := request(e.ID, payroll.TxDeduction, "9")
	yesterday.Date = payroll.NewDate(2025, time.March, 9).Ptr()
	_, err = ledger.Apply(ctx, yesterday)
	require.NoError(t, err)

	view, err := dir.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "42.50", payroll.FormatMoney(view.Today.Withdrawals))
	assert.Equal(t, "5.00", payroll.FormatMoney(view.Today.Bonuses))
	assert.True(t, view.Today.Deductions.IsZero())
	assert.Equal(t, payroll.AttendanceAbsent, view.Today.Attendance)

	_, err = book.Mark(ctx, e.ID, payroll.MarkAttendance{Status: payroll.AttendancePresent})
	require.NoError(t, err)
	view, err = dir.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.AttendancePresent, view.Today.Attendance)
}

func TestDirectory_List_FilterSortPage(t *testing.T) {
	dir, _, book := newTestDirectory(t)
	ctx := context.Background()
	a := createEmployee(t, dir, "Ada Lovelace", "10")
	b := createEmployee(t, dir, "Bayo Adeyemi", "30")
	c := createEmployee(t, dir, "Chioma Eze", "20")
	gone := createEmployee(t, dir, "Dapo Gone", "0")
	require.NoError(t, dir.Deactivate(ctx, gone.ID))

	_, err := book.Mark(ctx, b.ID, payroll.MarkAttendance{Status: payroll.AttendancePresent})
	require.NoError(t, err)

	all, err := dir.List(ctx, payroll.EmployeeFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, ids(all))

	byBalance, err := dir.List(ctx, payroll.EmployeeFilter{SortBy: "current_balance", SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, c.ID, a.ID}, ids(byBalance))

	named, err := dir.List(ctx, payroll.EmployeeFilter{Name: "CHIOMA"})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, ids(named))

	present, err := dir.List(ctx, payroll.EmployeeFilter{AttendanceStatus: payroll.AttendancePresent})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, ids(present))

	page2, err := dir.List(ctx, payroll.EmployeeFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID}, ids(page2))

	afterA, err := dir.List(ctx, payroll.EmployeeFilter{SortBy: "id", AfterID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID, c.ID}, ids(afterA))

	_, err = dir.List(ctx, payroll.EmployeeFilter{SortBy: "password"})
	assert.ErrorIs(t, err, payroll.ErrValidation)

	_, err = dir.List(ctx, payroll.EmployeeFilter{AfterID: -1})
	assert.ErrorIs(t, err, payroll.ErrValidation)
}

func ids(views []payroll.EmployeeView) []int64 {
	out := make([]int64, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestAttendanceBook_Mark_UpsertsPerDay(t *testing.T) {
	// GIVEN: Employee marked present today
	// WHEN: Marked absent for the same day
	// THEN: One record, status absent, same ID

	dir, _, book := newTestDirectory(t)
	ctx := context.Background()
	e := createEmployee(t, dir, "Chidi Okafor", "0")

	first, err := book.Mark(ctx, e.ID, payroll.MarkAttendance{Status: payroll.AttendancePresent, CheckInTime: "08:15"})
	require.NoError(t, err)
	second, err := book.Mark(ctx, e.ID, payroll.MarkAttendance{Status: payroll.AttendanceAbsent, Notes: "sick"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	history, err := book.History(ctx, e.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, payroll.AttendanceAbsent, history[0].Status)
	assert.Equal(t, "sick", history[0].Notes)
}

func TestAttendanceBook_History_Bounds(t *testing.T) {
	dir, _, book := newTestDirectory(t)
	ctx := context.Background()
	e := createEmployee(t, dir, "Chidi Okafor", "0")

	for day := 1; day <= 5; day++ {
		_, err := book.Mark(ctx, e.ID, payroll.MarkAttendance{
			Status: payroll.AttendancePresent,
			Date:   payroll.NewDate(2025, time.March, day).Ptr(),
		})
		require.NoError(t, err)
	}

	from := payroll.NewDate(2025, time.March, 2)
	to := payroll.NewDate(2025, time.March, 4)

	ranged, err := book.History(ctx, e.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, "2025-03-04", ranged[0].Date.String())

	fromOnly, err := book.History(ctx, e.ID, &to, nil)
	require.NoError(t, err)
	assert.Len(t, fromOnly, 2)

	toOnly, err := book.History(ctx, e.ID, nil, &from)
	require.NoError(t, err)
	assert.Len(t, toOnly, 2)

	_, err = book.History(ctx, e.ID, &to, &from)
	assert.ErrorIs(t, err, payroll.ErrValidation)
}

func TestAttendanceBook_Mark_Rejections(t *testing.T) {
	dir, _, book := newTestDirectory(t)
	ctx := context.Background()
	e := createEmployee(t, dir, "Chidi Okafor", "0")

	_, err := book.Mark(ctx, e.ID, payroll.MarkAttendance{Status: "late"})
	assert.ErrorIs(t, err, payroll.ErrValidation)

	_, err = book.Mark(ctx, 404, payroll.MarkAttendance{Status: payroll.AttendancePresent})
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)

	require.NoError(t, dir.Deactivate(ctx, e.ID))
	_, err = book.Mark(ctx, e.ID, payroll.MarkAttendance{Status: payroll.AttendancePresent})
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)
}
