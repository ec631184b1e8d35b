package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-ledger/payroll"
	"github.com/warp/payroll-ledger/store/sqlite"
	"github.com/warp/payroll-ledger/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)

type services struct {
	store      *sqlstore.Store
	ledger     *payroll.Ledger
	directory  *payroll.Directory
	attendance *payroll.AttendanceBook
	reports    *payroll.Reports
}

func newServices(t *testing.T, path string, cfg sqlstore.Config) services {
	t.Helper()
	store, err := sqlite.New(context.Background(), path, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opts := []payroll.Option{payroll.WithClock(func() time.Time { return testNow })}
	return services{
		store:      store,
		ledger:     payroll.NewLedger(store, opts...),
		directory:  payroll.NewDirectory(store, opts...),
		attendance: payroll.NewAttendanceBook(store, opts...),
		reports:    payroll.NewReports(store, opts...),
	}
}

func newMemoryServices(t *testing.T) services {
	return newServices(t, ":memory:", sqlstore.DefaultConfig())
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (s services) hire(t *testing.T, name, opening string) *payroll.Employee {
	t.Helper()
	e, err := s.directory.Create(context.Background(), payroll.NewEmployee{
		Name:           name,
		Position:       "Cook",
		Phone:          "08031234567",
		DailyWage:      dec("75.50"),
		OpeningBalance: dec(opening),
	})
	require.NoError(t, err)
	return e
}

func (s services) apply(t *testing.T, id int64, typ payroll.TransactionType, amount string) {
	t.Helper()
	_, err := s.ledger.Apply(context.Background(), payroll.TransactionRequest{
		EmployeeID: id, Type: typ, Amount: dec(amount),
	})
	require.NoError(t, err)
}

func (s services) balance(t *testing.T, id int64) string {
	t.Helper()
	acct, err := s.store.Account(context.Background(), id)
	require.NoError(t, err)
	return payroll.FormatMoney(acct.CurrentBalance)
}

func (s services) assertConsistent(t *testing.T, id int64) {
	t.Helper()
	rec, err := s.ledger.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "expected %s, actual %s", rec.ExpectedBalance, rec.ActualBalance)
}

// =============================================================================
// LEDGER
// =============================================================================

func TestSQLite_LedgerScenario(t *testing.T) {
	// GIVEN: Employee created with opening balance 100.00
	// WHEN: bonus 50, deduction 20, withdrawal 30, then a withdrawal above the balance
	// THEN: The last one is rejected; aggregates and log agree

	s := newMemoryServices(t)
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "100.00")

	s.apply(t, e.ID, payroll.TxBonus, "50")
	s.apply(t, e.ID, payroll.TxDeduction, "20")
	s.apply(t, e.ID, payroll.TxWithdrawal, "30")

	assert.Equal(t, "100.00", s.balance(t, e.ID))

	_, err := s.ledger.Apply(ctx, payroll.TransactionRequest{
		EmployeeID: e.ID, Type: payroll.TxWithdrawal, Amount: dec("100.01"),
	})
	var insufficient *payroll.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "100.00", payroll.FormatMoney(insufficient.Available))

	acct, err := s.store.Account(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", payroll.FormatMoney(acct.TotalBonuses))
	assert.Equal(t, "20.00", payroll.FormatMoney(acct.TotalDeductions))

	txs, err := s.ledger.Transactions(ctx, e.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, payroll.TxWithdrawal, txs[0].Type, "newest first")
	assert.Equal(t, "2025-03-10", txs[0].Date.String())
	assert.Equal(t, payroll.SystemActor, txs[0].CreatedBy)

	s.assertConsistent(t, e.ID)
}

func TestSQLite_MoneyIsExact(t *testing.T) {
	// Ten bonuses of 0.10 must land on exactly 1.00, not 0.9999999.
	s := newMemoryServices(t)
	e := s.hire(t, "Ngozi Obi", "0")

	for i := 0; i < 10; i++ {
		s.apply(t, e.ID, payroll.TxBonus, "0.10")
	}

	acct, err := s.store.Account(context.Background(), e.ID)
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.Equal(dec("1")), "got %s", acct.CurrentBalance)
	assert.True(t, acct.TotalBonuses.Equal(dec("1")))
	s.assertConsistent(t, e.ID)
}

func TestSQLite_ConcurrentWithdrawals_ExactlyOneSucceeds(t *testing.T) {
	// GIVEN: File-backed database, balance 100.00
	// WHEN: Two goroutines withdraw 80.00 at once
	// THEN: One succeeds, one gets InsufficientBalance, balance 20.00

	s := newServices(t, filepath.Join(t.TempDir(), "payroll.db"), sqlstore.DefaultConfig())
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "100.00")

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.ledger.Apply(ctx, payroll.TransactionRequest{
				EmployeeID: e.ID, Type: payroll.TxWithdrawal, Amount: dec("80"),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, payroll.ErrInsufficientBalance)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, "20.00", s.balance(t, e.ID))
	s.assertConsistent(t, e.ID)
}

func TestSQLite_ConcurrentMixedOperations_KeepInvariant(t *testing.T) {
	s := newServices(t, filepath.Join(t.TempDir(), "payroll.db"), sqlstore.DefaultConfig())
	ctx := context.Background()
	a := s.hire(t, "Ngozi Obi", "300")
	b := s.hire(t, "Tunde Bello", "300")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := a.ID
			if i%2 == 1 {
				id = b.ID
			}
			typ := payroll.TransactionTypes[i%len(payroll.TransactionTypes)]
			_, err := s.ledger.Apply(ctx, payroll.TransactionRequest{EmployeeID: id, Type: typ, Amount: dec("12.34")})
			if err != nil {
				assert.True(t, payroll.IsClientError(err), "unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	s.assertConsistent(t, a.ID)
	s.assertConsistent(t, b.ID)
}

func TestSQLite_FailureAfterInsert_RollsBackBoth(t *testing.T) {
	// GIVEN: A trigger that aborts any balance update
	// WHEN: A bonus is applied (log insert succeeds, aggregate update fails)
	// THEN: The unit rolls back: no log row, balance unchanged

	s := newMemoryServices(t)
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "100")

	_, err := s.store.DB().ExecContext(ctx, `
		CREATE TRIGGER fail_balance_update BEFORE UPDATE OF current_balance ON employees
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`)
	require.NoError(t, err)

	_, err = s.ledger.Apply(ctx, payroll.TransactionRequest{EmployeeID: e.ID, Type: payroll.TxBonus, Amount: dec("25")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected failure")
	assert.False(t, payroll.IsClientError(err))

	_, err = s.store.DB().ExecContext(ctx, `DROP TRIGGER fail_balance_update`)
	require.NoError(t, err)

	assert.Equal(t, "100.00", s.balance(t, e.ID))
	txs, err := s.ledger.Transactions(ctx, e.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)
	s.assertConsistent(t, e.ID)
}

func TestSQLite_Settle(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "250.00")

	ok, err := s.ledger.Settle(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	acct, err := s.store.Account(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.IsZero())
	assert.Equal(t, payroll.PaymentPaid, acct.PaymentStatus)
	require.NotNil(t, acct.LastPaymentDate)
	assert.Equal(t, "2025-03-10", acct.LastPaymentDate.String())

	txs, err := s.ledger.Transactions(ctx, e.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, payroll.TxSalaryPayment, txs[0].Type)
	assert.Equal(t, "250.00", payroll.FormatMoney(txs[0].Amount))

	ok, err = s.ledger.Settle(ctx, e.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, err, payroll.ErrNothingToSettle)
	s.assertConsistent(t, e.ID)
}

func TestSQLite_AcquireTimeout_StoreUnavailable(t *testing.T) {
	// GIVEN: A single-connection pool whose only connection is held
	// WHEN: A ledger operation needs a connection
	// THEN: It fails fast with StoreUnavailable instead of hanging

	cfg := sqlstore.DefaultConfig()
	cfg.AcquireTimeout = 50 * time.Millisecond
	s := newServices(t, ":memory:", cfg)
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "10")

	held, err := s.store.DB().Conn(ctx)
	require.NoError(t, err)

	_, err = s.ledger.Apply(ctx, payroll.TransactionRequest{EmployeeID: e.ID, Type: payroll.TxBonus, Amount: dec("1")})
	assert.ErrorIs(t, err, payroll.ErrStoreUnavailable)

	require.NoError(t, held.Close())
	s.apply(t, e.ID, payroll.TxBonus, "1")
	assert.Equal(t, 1, s.store.Stats().MaxOpen)
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestSQLite_Directory_CRUD(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "40")

	assert.Equal(t, "Cook", e.Position)
	assert.Equal(t, "08031234567", e.Phone)
	assert.Equal(t, "75.50", payroll.FormatMoney(e.DailyWage))
	assert.Equal(t, "2025-03-10", e.HireDate.String())
	assert.Nil(t, e.LastPaymentDate)

	var p payroll.EmployeePatch
	p.SetPosition("Head Cook").SetPhone("").SetPaymentStatus(payroll.PaymentDeferred)
	updated, err := s.directory.Update(ctx, e.ID, p)
	require.NoError(t, err)
	assert.Equal(t, "Head Cook", updated.Position)
	assert.Empty(t, updated.Phone)
	assert.Equal(t, payroll.PaymentDeferred, updated.PaymentStatus)
	assert.Equal(t, "40.00", payroll.FormatMoney(updated.CurrentBalance), "patch never moves balance")

	require.NoError(t, s.directory.Deactivate(ctx, e.ID))
	_, err = s.directory.Get(ctx, e.ID)
	assert.ErrorIs(t, err, payroll.ErrEmployeeNotFound)

	view, err := s.directory.Balance(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, view.Exists)
	assert.False(t, view.IsActive)
	s.assertConsistent(t, e.ID)
}

func TestSQLite_Directory_GetWithTodayAggregates(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "500")

	s.apply(t, e.ID, payroll.TxWithdrawal, "20.25")
	s.apply(t, e.ID, payroll.TxWithdrawal, "4.75")
	s.apply(t, e.ID, payroll.TxDeduction, "3")
	_, err := s.ledger.Apply(ctx, payroll.TransactionRequest{
		EmployeeID: e.ID, Type: payroll.TxBonus, Amount: dec("9"),
		Date: payroll.NewDate(2025, time.March, 9).Ptr(),
	})
	require.NoError(t, err)
	_, err = s.attendance.Mark(ctx, e.ID, payroll.MarkAttendance{Status: payroll.AttendancePresent, CheckInTime: "07:45"})
	require.NoError(t, err)

	view, err := s.directory.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", payroll.FormatMoney(view.Today.Withdrawals))
	assert.Equal(t, "3.00", payroll.FormatMoney(view.Today.Deductions))
	assert.True(t, view.Today.Bonuses.IsZero(), "yesterday's bonus is not today's")
	assert.Equal(t, payroll.AttendancePresent, view.Today.Attendance)
}

func TestSQLite_Directory_ListFiltersAndNumericSort(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	nine := s.hire(t, "Ade Nine", "9")
	hundred := s.hire(t, "Bisi Hundred", "100")
	ten := s.hire(t, "Chuka Ten", "10")
	_, err := s.attendance.Mark(ctx, ten.ID, payroll.MarkAttendance{Status: payroll.AttendancePresent})
	require.NoError(t, err)

	sorted, err := s.directory.List(ctx, payroll.EmployeeFilter{SortBy: "current_balance"})
	require.NoError(t, err)
	assert.Equal(t, []int64{nine.ID, ten.ID, hundred.ID}, ids(sorted), "numeric, not lexical")

	byName, err := s.directory.List(ctx, payroll.EmployeeFilter{Name: "bisi"})
	require.NoError(t, err)
	assert.Equal(t, []int64{hundred.ID}, ids(byName))

	present, err := s.directory.List(ctx, payroll.EmployeeFilter{AttendanceStatus: payroll.AttendancePresent})
	require.NoError(t, err)
	assert.Equal(t, []int64{ten.ID}, ids(present))

	absent, err := s.directory.List(ctx, payroll.EmployeeFilter{AttendanceStatus: payroll.AttendanceAbsent, SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{hundred.ID, nine.ID}, ids(absent))

	page, err := s.directory.List(ctx, payroll.EmployeeFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{ten.ID}, ids(page))
}

func TestSQLite_Directory_ListMatchesWildcardsLiterally(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	underscore := s.hire(t, "Ade_Ola", "0")
	s.hire(t, "AdeXOla", "0")
	percent := s.hire(t, "Chef 100% Jollof", "0")

	byName, err := s.directory.List(ctx, payroll.EmployeeFilter{Name: "e_o"})
	require.NoError(t, err)
	assert.Equal(t, []int64{underscore.ID}, ids(byName))

	byName, err = s.directory.List(ctx, payroll.EmployeeFilter{Name: "%"})
	require.NoError(t, err)
	assert.Equal(t, []int64{percent.ID}, ids(byName))

	byPosition, err := s.directory.List(ctx, payroll.EmployeeFilter{Position: "c_ok"})
	require.NoError(t, err)
	assert.Empty(t, byPosition)
}

func TestSQLite_Directory_ListAfterID(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	c := s.hire(t, "Zainab Cole", "0")
	b := s.hire(t, "Yemi Bode", "0")
	a := s.hire(t, "Xavier Ade", "0")

	first, err := s.directory.List(ctx, payroll.EmployeeFilter{SortBy: "id", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, b.ID}, ids(first))

	require.NoError(t, s.directory.Deactivate(ctx, c.ID))

	next, err := s.directory.List(ctx, payroll.EmployeeFilter{SortBy: "id", Page: 1, Limit: 2, AfterID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, ids(next))
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

func TestSQLite_Attendance_UpsertAndHistory(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	e := s.hire(t, "Ngozi Obi", "0")

	for day := 1; day <= 4; day++ {
		_, err := s.attendance.Mark(ctx, e.ID, payroll.MarkAttendance{
			Status: payroll.AttendancePresent,
			Date:   payroll.NewDate(2025, time.March, day).Ptr(),
		})
		require.NoError(t, err)
	}
	again, err := s.attendance.Mark(ctx, e.ID, payroll.MarkAttendance{
		Status:       payroll.AttendanceAbsent,
		Date:         payroll.NewDate(2025, time.March, 2).Ptr(),
		CheckOutTime: "12:00:00",
		Notes:        "left early",
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.AttendanceAbsent, again.Status)
	assert.Equal(t, "left early", again.Notes)

	all, err := s.attendance.History(ctx, e.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 4, "one row per day")
	assert.Equal(t, "2025-03-04", all[0].Date.String())

	from := payroll.NewDate(2025, time.March, 2)
	to := payroll.NewDate(2025, time.March, 3)
	ranged, err := s.attendance.History(ctx, e.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, payroll.AttendanceAbsent, ranged[1].Status)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestSQLite_Reports(t *testing.T) {
	s := newMemoryServices(t)
	ctx := context.Background()
	a := s.hire(t, "Ade Able", "100")
	b := s.hire(t, "Bola Baker", "50.25")
	gone := s.hire(t, "Gone Person", "999")
	require.NoError(t, s.directory.Deactivate(ctx, gone.ID))

	s.apply(t, a.ID, payroll.TxWithdrawal, "10.10")
	s.apply(t, a.ID, payroll.TxBonus, "0.20")
	s.apply(t, b.ID, payroll.TxDeduction, "0.25")
	_, err := s.ledger.Settle(ctx, b.ID)
	require.NoError(t, err)

	for day, status := range map[int]payroll.AttendanceStatus{
		8: payroll.AttendancePresent, 9: payroll.AttendanceAbsent, 10: payroll.AttendancePresent,
	} {
		_, err := s.attendance.Mark(ctx, a.ID, payroll.MarkAttendance{Status: status, Date: payroll.NewDate(2025, time.March, day).Ptr()})
		require.NoError(t, err)
	}

	summary, err := s.reports.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalEmployees)
	assert.Equal(t, 2, summary.ActiveEmployees)
	assert.Equal(t, 1, summary.PresentToday)
	assert.Equal(t, "151.00", payroll.FormatMoney(summary.TotalDailyWages))
	assert.Equal(t, "90.10", payroll.FormatMoney(summary.TotalCurrentBalance))
	assert.Equal(t, "10.10", payroll.FormatMoney(summary.TotalWithdrawalsToday))
	assert.Equal(t, "0.20", payroll.FormatMoney(summary.TotalBonusesToday))
	assert.Equal(t, "0.25", payroll.FormatMoney(summary.TotalDeductionsToday))

	report, err := s.reports.AttendanceReport(ctx, payroll.NewDate(2025, time.March, 1), payroll.NewDate(2025, time.March, 31))
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, a.ID, report[0].EmployeeID)
	assert.Equal(t, 2, report[0].PresentDays)
	assert.Equal(t, 1, report[0].AbsentDays)
	assert.Equal(t, 3, report[0].TotalDays)
	assert.Equal(t, "66.67", payroll.FormatMoney(report[0].AttendancePercentage))
	assert.True(t, report[1].AttendancePercentage.IsZero())

	_, err = s.reports.AttendanceReport(ctx, payroll.NewDate(2025, time.March, 31), payroll.NewDate(2025, time.March, 1))
	assert.ErrorIs(t, err, payroll.ErrValidation)

	financial, err := s.reports.FinancialReport(ctx)
	require.NoError(t, err)
	require.Len(t, financial, 2)
	assert.Equal(t, "10.10", payroll.FormatMoney(financial[0].TotalWithdrawals))
	assert.Equal(t, "0.20", payroll.FormatMoney(financial[0].TotalBonuses))
	assert.Equal(t, "90.10", payroll.FormatMoney(financial[0].CurrentBalance))
	assert.Nil(t, financial[0].LastPaymentDate)
	assert.Equal(t, "50.00", payroll.FormatMoney(financial[1].TotalSalaryPayments))
	assert.True(t, financial[1].CurrentBalance.IsZero())
	require.NotNil(t, financial[1].LastPaymentDate)
	assert.Equal(t, "2025-03-10", financial[1].LastPaymentDate.String())
}

func TestSQLite_PingAndStats(t *testing.T) {
	s := newServices(t, filepath.Join(t.TempDir(), "payroll.db"), sqlstore.DefaultConfig())
	require.NoError(t, s.store.Ping(context.Background()))
	assert.Equal(t, 20, s.store.Stats().MaxOpen)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "./data.db?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", sqlite.DSN("./data.db"))
	assert.Contains(t, sqlite.DSN("file:x.db?cache=shared"), "cache=shared&_txlock=immediate")
	assert.True(t, sqlite.IsMemory(":memory:"))
	assert.False(t, sqlite.IsMemory("payroll.db"))
}
