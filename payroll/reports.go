package payroll

import "context"

// Reports serves the read-only dashboard aggregates.
type Reports struct {
	store ReportStore
	opts  options
}

func NewReports(store ReportStore, opts ...Option) *Reports {
	return &Reports{store: store, opts: buildOptions(opts)}
}

// Summary covers active employees and today's ledger activity.
func (r *Reports) Summary(ctx context.Context) (Summary, error) {
	return r.store.Summary(ctx, r.opts.today())
}

// AttendanceReport requires both bounds.
func (r *Reports) AttendanceReport(ctx context.Context, from, to Date) ([]AttendanceReportItem, error) {
	var vs violations
	if from.IsZero() {
		vs.add("start_date", CodeRequired, "is required", nil)
	}
	if to.IsZero() {
		vs.add("end_date", CodeRequired, "is required", nil)
	}
	if err := vs.err(); err != nil {
		return nil, err
	}
	if err := ValidateRange(&from, &to); err != nil {
		return nil, err
	}
	return r.store.AttendanceReport(ctx, from, to)
}

func (r *Reports) FinancialReport(ctx context.Context) ([]FinancialReportItem, error) {
	return r.store.FinancialReport(ctx)
}
