/*
handlers.go - HTTP API handlers for the payroll ledger

PURPOSE:
  Exposes the payroll services via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the payroll package.

ENDPOINTS:
  Health:
    GET    /health                                 Store ping and pool stats

  Employees:
    GET    /api/employees                          List active employees
    POST   /api/employees                          Create employee
    GET    /api/employees/{id}                     Employee with today's aggregates
    PUT    /api/employees/{id}                     Partial update
    DELETE /api/employees/{id}                     Deactivate (soft delete)
    GET    /api/employees/{id}/balance             Balance view

  Ledger:
    POST   /api/employees/{id}/transactions        Apply a transaction
    GET    /api/employees/{id}/transactions        History, newest first (?limit=)
    POST   /api/employees/{id}/settle              Pay out the whole balance
    GET    /api/employees/{id}/reconciliation      Replay the log against the aggregates

  Attendance:
    POST   /api/employees/{id}/attendance          Mark a day
    GET    /api/employees/{id}/attendance          History (?start_date=&end_date=)

  Reports:
    GET    /api/reports/summary                    Dashboard totals
    GET    /api/reports/attendance                 Per-employee attendance (?start_date=&end_date=)
    GET    /api/reports/financial                  Per-employee ledger totals
    (also served under /api/employees/reports/)

REQUEST FLOW:
  1. Parse path and query parameters
  2. Decode (10 MiB cap) and shape-check the body (validator)
  3. On a shape failure, merge in the payroll checks for the same input and reply 400
  4. Otherwise call the payroll service, which owns the business rules
  5. Serialize response in the envelope
  6. Map errors through describeError

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error envelope and status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-ledger/payroll"
)

// maxRequestBody caps every JSON body the API accepts.
const maxRequestBody = 10 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HealthChecker is the part of the store /health reports on.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Stats() payroll.PoolStats
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger     *payroll.Ledger
	Directory  *payroll.Directory
	Attendance *payroll.AttendanceBook
	Reports    *payroll.Reports
	Health     HealthChecker

	logger   *zap.Logger
	validate *validator.Validate
}

// NewHandler wires every payroll service to store, each logging through
// logger. opts are passed on to every service.
func NewHandler(store payroll.Store, logger *zap.Logger, opts ...payroll.Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]payroll.Option{payroll.WithLogger(logger)}, opts...)

	return &Handler{
		Ledger:     payroll.NewLedger(store, opts...),
		Directory:  payroll.NewDirectory(store, opts...),
		Attendance: payroll.NewAttendanceBook(store, opts...),
		Reports:    payroll.NewReports(store, opts...),
		Health:     store,
		logger:     logger,
		validate:   newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.Health.Stats()
	dto := HealthDTO{
		Status:   "ok",
		Database: "connected",
		Pool: PoolStatsDTO{
			MaxOpen:      st.MaxOpen,
			Open:         st.Open,
			InUse:        st.InUse,
			Idle:         st.Idle,
			WaitCount:    st.WaitCount,
			WaitDuration: st.WaitDuration.String(),
		},
	}

	if err := h.Health.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		dto.Status = "degraded"
		dto.Database = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Data:  dto,
			Error: &ErrorDTO{Code: codeUnavailable, Message: "Database unavailable"},
		})
		return
	}
	writeData(w, http.StatusOK, dto, "")
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns active employees with today's aggregates.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := payroll.EmployeeFilter{
		Name:             q.Get("name"),
		Position:         q.Get("position"),
		PaymentStatus:    payroll.PaymentStatus(q.Get("payment_status")),
		AttendanceStatus: payroll.AttendanceStatus(q.Get("attendance_status")),
		SortBy:           q.Get("sort_by"),
	}
	switch strings.ToLower(q.Get("sort_order")) {
	case "", "asc":
	case "desc":
		filter.SortDesc = true
	default:
		writeBadRequest(w, "sort_order must be asc or desc")
		return
	}

	var ok bool
	if filter.Page, ok = queryInt(w, q.Get("page"), "page"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}

	views, err := h.Directory.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]EmployeeDTO, len(views))
	for i, v := range views {
		dtos[i] = toEmployeeViewDTO(v)
	}
	writeData(w, http.StatusOK, dtos, "")
}

// GetEmployee returns a single employee with today's aggregates.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	view, err := h.Directory.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toEmployeeViewDTO(*view), "")
}

// CreateEmployee creates an employee. current_balance in the body is the opening balance.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	shape, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	in := payroll.NewEmployee{
		Name:     req.Name,
		Position: req.Position,
		Phone:    req.Phone,
	}
	if req.DailyWage != nil {
		in.DailyWage = *req.DailyWage
	}
	if req.CurrentBalance != nil {
		in.OpeningBalance = *req.CurrentBalance
	}
	if shape != nil {
		h.writeError(w, r, shape.Merge(payroll.ValidateNewEmployee(in)))
		return
	}

	emp, err := h.Directory.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toEmployeeDTO(*emp), "Employee created")
}

// UpdateEmployee applies the fields present in the body.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	var req UpdateEmployeeRequest
	shape, ok := h.decode(w, r, &req)
	if !ok {
		return
	}
	patch := req.toPatch()
	if shape != nil {
		h.writeError(w, r, shape.Merge(payroll.ValidatePatch(patch)))
		return
	}

	emp, err := h.Directory.Update(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toEmployeeDTO(*emp), "Employee updated")
}

// DeactivateEmployee soft-deletes an employee; the ledger is kept.
func (h *Handler) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	if err := h.Directory.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nil, "Employee deactivated")
}

// GetBalance never 404s: a missing employee is reported as exists=false.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	view, err := h.Directory.Balance(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, BalanceDTO{
		EmployeeID:     id,
		Exists:         view.Exists,
		IsActive:       view.IsActive,
		CurrentBalance: money(view.CurrentBalance),
	}, "")
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// CreateTransaction applies a withdrawal, deduction, bonus or salary payment.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	var req CreateTransactionRequest
	shape, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	in := payroll.TransactionRequest{
		EmployeeID:  id,
		Type:        payroll.TransactionType(req.TransactionType),
		Amount:      derefDecimal(req.Amount),
		Description: req.Description,
		Date:        req.TransactionDate,
		CreatedBy:   req.CreatedBy,
	}
	if shape != nil {
		h.writeError(w, r, shape.Merge(h.Ledger.Validate(in)))
		return
	}

	tx, err := h.Ledger.Apply(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, toTransactionDTO(*tx), "Transaction recorded")
}

// GetTransactions returns the most recent entries, newest first.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	txs, err := h.Ledger.Transactions(r.Context(), id, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeData(w, http.StatusOK, dtos, "")
}

// SettleAccount pays out the whole outstanding balance.
func (h *Handler) SettleAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	settled, err := h.Ledger.Settle(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dto := SettlementDTO{Settled: settled}
	// The settlement is committed; a failed re-read only loses the snapshot.
	if view, err := h.Directory.Get(r.Context(), id); err == nil {
		emp := toEmployeeViewDTO(*view)
		dto.Employee = &emp
	} else {
		h.logger.Warn("failed to reload settled employee", zap.Int64("employee_id", id), zap.Error(err))
	}
	writeData(w, http.StatusOK, dto, "Account settled")
}

func (h *Handler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	rec, err := h.Ledger.Reconcile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toReconciliationDTO(*rec), "")
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	var req MarkAttendanceRequest
	shape, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	in := payroll.MarkAttendance{
		Status:       payroll.AttendanceStatus(req.Status),
		Date:         req.AttendanceDate,
		CheckInTime:  req.CheckInTime,
		CheckOutTime: req.CheckOutTime,
		Notes:        req.Notes,
	}
	if shape != nil {
		h.writeError(w, r, shape.Merge(payroll.ValidateAttendance(id, in)))
		return
	}

	rec, err := h.Attendance.Mark(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toAttendanceDTO(*rec), "Attendance recorded")
}

func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := employeeID(w, r)
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	records, err := h.Attendance.History(r.Context(), id, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeData(w, http.StatusOK, dtos, "")
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Reports.Summary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toSummaryDTO(summary), "")
}

func (h *Handler) GetAttendanceReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	// Missing bounds are reported by the service as required fields.
	var start, end payroll.Date
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}

	items, err := h.Reports.AttendanceReport(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]AttendanceReportDTO, len(items))
	for i, it := range items {
		dtos[i] = AttendanceReportDTO{
			EmployeeID:           it.EmployeeID,
			Name:                 it.Name,
			Position:             it.Position,
			PresentDays:          it.PresentDays,
			AbsentDays:           it.AbsentDays,
			TotalDays:            it.TotalDays,
			AttendancePercentage: money(it.AttendancePercentage),
		}
	}
	writeData(w, http.StatusOK, dtos, "")
}

func (h *Handler) GetFinancialReport(w http.ResponseWriter, r *http.Request) {
	items, err := h.Reports.FinancialReport(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]FinancialReportDTO, len(items))
	for i, it := range items {
		dtos[i] = FinancialReportDTO{
			EmployeeID:          it.EmployeeID,
			Name:                it.Name,
			Position:            it.Position,
			TotalWithdrawals:    money(it.TotalWithdrawals),
			TotalBonuses:        money(it.TotalBonuses),
			TotalDeductions:     money(it.TotalDeductions),
			TotalSalaryPayments: money(it.TotalSalaryPayments),
			CurrentBalance:      money(it.CurrentBalance),
			LastPaymentDate:     it.LastPaymentDate,
		}
	}
	writeData(w, http.StatusOK, dtos, "")
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body of at most maxRequestBody bytes into dst and runs
// its validate tags. An unreadable body is answered here and ok is false.
// Tag violations are returned instead of written so the caller can merge
// them with the payroll package's own checks into one response.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) (shape *payroll.ValidationError, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Response{Error: &ErrorDTO{
				Code:    codeTooLarge,
				Message: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
			}})
			return nil, false
		}
		writeBadRequest(w, "Invalid request body: "+err.Error())
		return nil, false
	}

	err := h.validate.Struct(dst)
	if err == nil {
		return nil, true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		h.writeError(w, r, err)
		return nil, false
	}

	verr := &payroll.ValidationError{}
	for _, fe := range fieldErrs {
		v := payroll.FieldViolation{Field: fe.Field(), Code: payroll.CodeInvalid, Value: fe.Value()}
		switch fe.Tag() {
		case "required":
			v.Code = payroll.CodeRequired
			v.Message = "is required"
		case "oneof":
			v.Message = "must be one of " + fe.Param()
		default:
			v.Message = "failed " + fe.Tag() + " check"
		}
		verr.Violations = append(verr.Violations, v)
	}
	return verr, true
}

// employeeID parses {id}; anything but a positive integer is a 400.
func employeeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, Response{Error: &ErrorDTO{
			Code:    codeValidation,
			Message: "Employee ID must be a positive integer",
			Fields: []FieldDTO{{
				Field:   "id",
				Code:    payroll.CodeInvalidEmployeeID,
				Message: "must be a positive integer",
			}},
		}})
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; empty means zero.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, name+" must be an integer")
		return 0, false
	}
	return n, true
}

// dateRange parses the optional start_date and end_date query parameters.
func dateRange(w http.ResponseWriter, r *http.Request) (from, to *payroll.Date, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **payroll.Date
	}{{"start_date", &from}, {"end_date", &to}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := payroll.ParseDate(raw)
		if err != nil {
			writeBadRequest(w, p.name+" must be a date (YYYY-MM-DD)")
			return nil, nil, false
		}
		*p.dst = &d
	}
	return from, to, true
}

func derefDecimal(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
