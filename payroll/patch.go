package payroll

import "github.com/shopspring/decimal"

// EmployeePatch is a partial update of an employee's directory fields.
// It has no balance fields: those change only through the Ledger.
type EmployeePatch struct {
	name          *string
	position      *string
	phone         *string
	dailyWage     *decimal.Decimal
	paymentStatus *PaymentStatus
	isActive      *bool
}

func (p *EmployeePatch) SetName(v string) *EmployeePatch {
	p.name = &v
	return p
}

func (p *EmployeePatch) SetPosition(v string) *EmployeePatch {
	p.position = &v
	return p
}

func (p *EmployeePatch) SetPhone(v string) *EmployeePatch {
	p.phone = &v
	return p
}

func (p *EmployeePatch) SetDailyWage(v decimal.Decimal) *EmployeePatch {
	p.dailyWage = &v
	return p
}

func (p *EmployeePatch) SetPaymentStatus(v PaymentStatus) *EmployeePatch {
	p.paymentStatus = &v
	return p
}

func (p *EmployeePatch) SetActive(v bool) *EmployeePatch {
	p.isActive = &v
	return p
}

func (p EmployeePatch) Name() (string, bool)                 { return deref(p.name) }
func (p EmployeePatch) Position() (string, bool)             { return deref(p.position) }
func (p EmployeePatch) Phone() (string, bool)                { return deref(p.phone) }
func (p EmployeePatch) DailyWage() (decimal.Decimal, bool)   { return deref(p.dailyWage) }
func (p EmployeePatch) PaymentStatus() (PaymentStatus, bool) { return deref(p.paymentStatus) }
func (p EmployeePatch) Active() (bool, bool)                 { return deref(p.isActive) }

// IsEmpty reports whether no field is set.
func (p EmployeePatch) IsEmpty() bool {
	return p.name == nil && p.position == nil && p.phone == nil &&
		p.dailyWage == nil && p.paymentStatus == nil && p.isActive == nil
}

// ApplyTo returns e with the set fields replaced.
func (p EmployeePatch) ApplyTo(e Employee) Employee {
	if v, ok := p.Name(); ok {
		e.Name = v
	}
	if v, ok := p.Position(); ok {
		e.Position = v
	}
	if v, ok := p.Phone(); ok {
		e.Phone = v
	}
	if v, ok := p.DailyWage(); ok {
		e.DailyWage = v
	}
	if v, ok := p.PaymentStatus(); ok {
		e.PaymentStatus = v
	}
	if v, ok := p.Active(); ok {
		e.IsActive = v
	}
	return e
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
