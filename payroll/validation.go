package payroll

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	// DefaultMaxTransactionAmount is the advisory ceiling on a single transaction.
	DefaultMaxTransactionAmount = decimal.NewFromInt(100000)

	maxDailyWage = decimal.NewFromInt(10000)

	clockTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)
)

// ValidateTransaction checks a request before any store access.
// maxAmount of zero disables the sanity ceiling.
func ValidateTransaction(req TransactionRequest, maxAmount decimal.Decimal) error {
	var vs violations

	if req.EmployeeID <= 0 {
		vs.add("employee_id", CodeInvalidEmployeeID, "must be a positive integer", req.EmployeeID)
	}
	if !req.Type.Valid() {
		vs.add("transaction_type", CodeInvalidTransactionType,
			"must be one of withdrawal, deduction, bonus, salary_payment", string(req.Type))
	}
	validateAmount(&vs, "amount", req.Amount, maxAmount)
	if utf8.RuneCountInString(req.Description) > 500 {
		vs.add("description", CodeOutOfRange, "must be at most 500 characters", nil)
	}
	if utf8.RuneCountInString(req.CreatedBy) > 100 {
		vs.add("created_by", CodeOutOfRange, "must be at most 100 characters", req.CreatedBy)
	}

	return vs.err()
}

func validateAmount(vs *violations, field string, amount, maxAmount decimal.Decimal) {
	if !amount.IsPositive() {
		vs.add(field, CodeAmountNotPositive, "must be a positive number", FormatMoney(amount))
		return
	}
	if amount.Exponent() < -MoneyScale && !amount.Equal(amount.Truncate(MoneyScale)) {
		vs.add(field, CodeAmountPrecision, "must have at most 2 decimal places", amount.String())
	}
	if maxAmount.IsPositive() && amount.GreaterThan(maxAmount) {
		vs.add(field, CodeAmountSuspicious,
			"is unusually large ("+FormatMoney(amount)+" > "+FormatMoney(maxAmount)+"), please confirm", FormatMoney(amount))
	}
}

// ValidateNewEmployee checks the input of Directory.Create.
func ValidateNewEmployee(e NewEmployee) error {
	var vs violations
	validateName(&vs, e.Name)
	validatePosition(&vs, e.Position)
	validateDailyWage(&vs, e.DailyWage)
	validatePhone(&vs, e.Phone)
	if e.OpeningBalance.Exponent() < -MoneyScale && !e.OpeningBalance.Equal(e.OpeningBalance.Truncate(MoneyScale)) {
		vs.add("current_balance", CodeAmountPrecision, "must have at most 2 decimal places", e.OpeningBalance.String())
	}
	return vs.err()
}

// ValidatePatch checks only the fields a patch sets.
func ValidatePatch(p EmployeePatch) error {
	var vs violations
	if v, ok := p.Name(); ok {
		validateName(&vs, v)
	}
	if v, ok := p.Position(); ok {
		validatePosition(&vs, v)
	}
	if v, ok := p.DailyWage(); ok {
		validateDailyWage(&vs, v)
	}
	if v, ok := p.Phone(); ok {
		validatePhone(&vs, v)
	}
	if v, ok := p.PaymentStatus(); ok && !v.Valid() {
		vs.add("payment_status", CodeInvalid, "must be one of pending, paid, deferred", string(v))
	}
	return vs.err()
}

func validateName(vs *violations, name string) {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	switch {
	case n < 2:
		vs.add("name", CodeRequired, "must be at least 2 characters", name)
	case n > 100:
		vs.add("name", CodeOutOfRange, "must be at most 100 characters", name)
	}
}

func validatePosition(vs *violations, position string) {
	if utf8.RuneCountInString(strings.TrimSpace(position)) < 2 {
		vs.add("position", CodeRequired, "must be at least 2 characters", position)
	}
}

func validateDailyWage(vs *violations, wage decimal.Decimal) {
	switch {
	case wage.IsNegative():
		vs.add("daily_wage", CodeOutOfRange, "must not be negative", FormatMoney(wage))
	case wage.GreaterThan(maxDailyWage):
		vs.add("daily_wage", CodeAmountSuspicious, "is unusually high, please confirm", FormatMoney(wage))
	}
}

func validatePhone(vs *violations, phone string) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return
	}
	if n := len(phone); n < 10 || n > 20 {
		vs.add("phone", CodeInvalid, "must be between 10 and 20 characters", phone)
	}
}

// ValidateAttendance checks the input of AttendanceBook.Mark.
func ValidateAttendance(employeeID int64, m MarkAttendance) error {
	var vs violations
	if employeeID <= 0 {
		vs.add("employee_id", CodeInvalidEmployeeID, "must be a positive integer", employeeID)
	}
	if !m.Status.Valid() {
		vs.add("status", CodeInvalid, "must be one of present, absent", string(m.Status))
	}
	if m.CheckInTime != "" && !clockTimePattern.MatchString(m.CheckInTime) {
		vs.add("check_in_time", CodeInvalid, "must be HH:MM or HH:MM:SS", m.CheckInTime)
	}
	if m.CheckOutTime != "" && !clockTimePattern.MatchString(m.CheckOutTime) {
		vs.add("check_out_time", CodeInvalid, "must be HH:MM or HH:MM:SS", m.CheckOutTime)
	}
	return vs.err()
}

// ValidateRange checks an optional date range.
func ValidateRange(from, to *Date) error {
	if from != nil && to != nil && from.After(*to) {
		var vs violations
		vs.add("start_date", CodeOutOfRange, "must not be after end_date", from.String())
		return vs.err()
	}
	return nil
}
