package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/warp/payroll-ledger/payroll"
)

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

func (s *Store) UpsertAttendance(ctx context.Context, rec payroll.AttendanceRecord) (payroll.AttendanceRecord, error) {
	var row attendanceRow
	err := s.withConn(ctx, "upsert attendance", func(conn *sqlx.Conn) error {
		return sqlx.GetContext(ctx, conn, &row, s.rebind(`
			INSERT INTO attendance
				(employee_id, attendance_date, status, check_in_time, check_out_time, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (employee_id, attendance_date) DO UPDATE SET
				status = excluded.status,
				check_in_time = excluded.check_in_time,
				check_out_time = excluded.check_out_time,
				notes = excluded.notes
			RETURNING `+attendanceColumns),
			rec.EmployeeID, rec.Date.String(), string(rec.Status),
			nullString(rec.CheckInTime), nullString(rec.CheckOutTime), nullString(rec.Notes),
			rec.CreatedAt,
		)
	})
	if err != nil {
		return payroll.AttendanceRecord{}, fmt.Errorf("failed to save attendance: %w", err)
	}
	return row.toRecord(), nil
}

func (s *Store) Attendance(ctx context.Context, employeeID int64, from, to *payroll.Date) ([]payroll.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE employee_id = ?`
	args := []any{employeeID}
	if from != nil {
		query += ` AND attendance_date >= ?`
		args = append(args, from.String())
	}
	if to != nil {
		query += ` AND attendance_date <= ?`
		args = append(args, to.String())
	}
	query += ` ORDER BY attendance_date DESC`

	var rows []attendanceRow
	err := s.withConn(ctx, "attendance", func(conn *sqlx.Conn) error {
		return sqlx.SelectContext(ctx, conn, &rows, s.rebind(query), args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	result := make([]payroll.AttendanceRecord, len(rows))
	for i, r := range rows {
		result[i] = r.toRecord()
	}
	return result, nil
}
