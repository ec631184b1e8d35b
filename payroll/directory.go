package payroll

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultPageLimit = 50

// Directory manages employee records. It never touches balance fields
// after creation.
type Directory struct {
	store DirectoryStore
	opts  options
}

func NewDirectory(store DirectoryStore, opts ...Option) *Directory {
	return &Directory{store: store, opts: buildOptions(opts)}
}

// Balance answers whether the employee exists, is active, and what they are owed.
// A missing employee is not an error: Exists is false.
func (d *Directory) Balance(ctx context.Context, employeeID int64) (BalanceView, error) {
	acct, err := d.store.Account(ctx, employeeID)
	if errors.Is(err, ErrEmployeeNotFound) {
		return BalanceView{EmployeeID: employeeID, CurrentBalance: decimal.Zero}, nil
	}
	if err != nil {
		return BalanceView{}, err
	}
	return BalanceView{
		EmployeeID:     employeeID,
		Exists:         true,
		IsActive:       acct.IsActive,
		CurrentBalance: acct.CurrentBalance,
	}, nil
}

func (d *Directory) Create(ctx context.Context, in NewEmployee) (*Employee, error) {
	if err := ValidateNewEmployee(in); err != nil {
		return nil, err
	}

	now := d.opts.clock()
	e := Employee{
		Name:            strings.TrimSpace(in.Name),
		Position:        strings.TrimSpace(in.Position),
		Phone:           strings.TrimSpace(in.Phone),
		DailyWage:       in.DailyWage,
		OpeningBalance:  in.OpeningBalance,
		CurrentBalance:  in.OpeningBalance,
		TotalBonuses:    decimal.Zero,
		TotalDeductions: decimal.Zero,
		PaymentStatus:   PaymentPending,
		IsActive:        true,
		HireDate:        DateOf(now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := d.store.CreateEmployee(ctx, e)
	if err != nil {
		return nil, err
	}

	d.opts.logger.Info("employee created",
		zap.Int64("employee_id", created.ID),
		zap.String("opening_balance", FormatMoney(created.OpeningBalance)),
	)
	return &created, nil
}

func (d *Directory) Update(ctx context.Context, employeeID int64, p EmployeePatch) (*Employee, error) {
	if p.IsEmpty() {
		return nil, ErrNoChanges
	}
	if err := ValidatePatch(p); err != nil {
		return nil, err
	}
	p = trimPatch(p)

	updated, err := d.store.UpdateEmployee(ctx, employeeID, p, d.opts.clock())
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (d *Directory) Deactivate(ctx context.Context, employeeID int64) error {
	if err := d.store.DeactivateEmployee(ctx, employeeID, d.opts.clock()); err != nil {
		return err
	}
	d.opts.logger.Info("employee deactivated", zap.Int64("employee_id", employeeID))
	return nil
}

// Get returns an active employee with today's withdrawals, bonuses,
// deductions and attendance.
func (d *Directory) Get(ctx context.Context, employeeID int64) (*EmployeeView, error) {
	v, err := d.store.Employee(ctx, employeeID, d.opts.today())
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (d *Directory) List(ctx context.Context, f EmployeeFilter) ([]EmployeeView, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return d.store.Employees(ctx, f, d.opts.today())
}

func normalizeFilter(f EmployeeFilter) (EmployeeFilter, error) {
	var vs violations
	f.Name = strings.TrimSpace(f.Name)
	f.Position = strings.TrimSpace(f.Position)
	if f.SortBy == "" {
		f.SortBy = "name"
	}
	if !slices.Contains(SortableEmployeeFields, f.SortBy) {
		vs.add("sort_by", CodeInvalid, "must be one of "+strings.Join(SortableEmployeeFields, ", "), f.SortBy)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		vs.add("payment_status", CodeInvalid, "must be one of pending, paid, deferred", string(f.PaymentStatus))
	}
	if f.AttendanceStatus != "" && !f.AttendanceStatus.Valid() {
		vs.add("attendance_status", CodeInvalid, "must be one of present, absent", string(f.AttendanceStatus))
	}
	if f.Page < 0 {
		vs.add("page", CodeOutOfRange, "must not be negative", f.Page)
	}
	if f.AfterID < 0 {
		vs.add("after_id", CodeOutOfRange, "must not be negative", f.AfterID)
	}
	if f.Page > 0 && f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxTransactionLimit {
		f.Limit = MaxTransactionLimit
	}
	return f, vs.err()
}

func trimPatch(p EmployeePatch) EmployeePatch {
	if v, ok := p.Name(); ok {
		p.SetName(strings.TrimSpace(v))
	}
	if v, ok := p.Position(); ok {
		p.SetPosition(strings.TrimSpace(v))
	}
	if v, ok := p.Phone(); ok {
		p.SetPhone(strings.TrimSpace(v))
	}
	return p
}
