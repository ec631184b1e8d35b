package payroll

import (
	"context"
	"strings"
)

// AttendanceBook records one attendance entry per employee and day.
type AttendanceBook struct {
	store AttendanceStore
	opts  options
}

func NewAttendanceBook(store AttendanceStore, opts ...Option) *AttendanceBook {
	return &AttendanceBook{store: store, opts: buildOptions(opts)}
}

// Mark upserts the employee's record for m.Date, or today when unset.
func (b *AttendanceBook) Mark(ctx context.Context, employeeID int64, m MarkAttendance) (*AttendanceRecord, error) {
	if err := ValidateAttendance(employeeID, m); err != nil {
		return nil, err
	}
	acct, err := b.store.Account(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !acct.IsActive {
		return nil, &EmployeeNotFoundError{EmployeeID: employeeID}
	}

	now := b.opts.clock()
	rec := AttendanceRecord{
		EmployeeID:   employeeID,
		Date:         DateOf(now),
		Status:       m.Status,
		CheckInTime:  m.CheckInTime,
		CheckOutTime: m.CheckOutTime,
		Notes:        strings.TrimSpace(m.Notes),
		CreatedAt:    now,
	}
	if m.Date != nil && !m.Date.IsZero() {
		rec.Date = *m.Date
	}

	saved, err := b.store.UpsertAttendance(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// History returns the employee's records newest first within the optional bounds.
func (b *AttendanceBook) History(ctx context.Context, employeeID int64, from, to *Date) ([]AttendanceRecord, error) {
	if err := ValidateRange(from, to); err != nil {
		return nil, err
	}
	if _, err := b.store.Account(ctx, employeeID); err != nil {
		return nil, err
	}
	return b.store.Attendance(ctx, employeeID, from, to)
}
