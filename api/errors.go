package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/payroll-ledger/payroll"
)

// Error codes returned in ErrorDTO.Code.
const (
	codeValidation      = "validation_error"
	codeBadRequest      = "bad_request"
	codeNotFound        = "employee_not_found"
	codeInsufficient    = "insufficient_balance"
	codeNothingToSettle = "nothing_to_settle"
	codeNoChanges       = "no_changes"
	codeUnavailable     = "store_unavailable"
	codeTooLarge        = "payload_too_large"
	codeInternal        = "internal_error"
)

// =============================================================================
// RESPONSE WRITERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Response{Success: true, Data: data, Message: message})
}

// writeBadRequest reports malformed input that never reached the payroll package.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorDTO{Code: codeBadRequest, Message: message},
	})
}

// writeError maps a payroll error to a status and envelope. Client errors
// are logged at Warn, everything else at Error with the cause.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, dto := describeError(err)

	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}

	writeJSON(w, status, Response{Error: &dto})
}

// describeError is the single place payroll error kinds become HTTP.
func describeError(err error) (int, ErrorDTO) {
	var (
		validation   *payroll.ValidationError
		insufficient *payroll.InsufficientBalanceError
		nothing      *payroll.NothingToSettleError
	)

	switch {
	case errors.As(err, &validation):
		dto := ErrorDTO{Code: codeValidation, Message: "Validation failed"}
		switch {
		case validation.HasCode(payroll.CodeInvalidTransactionType):
			dto.Code = payroll.CodeInvalidTransactionType
			dto.Message = "Invalid transaction type"
		case validation.HasCode(payroll.CodeAmountSuspicious):
			dto.Code = payroll.CodeAmountSuspicious
			dto.Message = "Amount is unusually large, please confirm"
		}
		for _, v := range validation.Violations {
			dto.Fields = append(dto.Fields, FieldDTO{Field: v.Field, Code: v.Code, Message: v.Message})
		}
		return http.StatusBadRequest, dto

	case errors.As(err, &insufficient):
		requested, available := money(insufficient.Requested), money(insufficient.Available)
		return http.StatusBadRequest, ErrorDTO{
			Code:      codeInsufficient,
			Message:   fmt.Sprintf("Insufficient balance: requested %s, available %s", requested, available),
			Requested: requested,
			Available: available,
		}

	case errors.As(err, &nothing):
		return http.StatusBadRequest, ErrorDTO{
			Code:      codeNothingToSettle,
			Message:   "Nothing to settle",
			Available: money(nothing.Balance),
		}

	case errors.Is(err, payroll.ErrNoChanges):
		return http.StatusBadRequest, ErrorDTO{Code: codeNoChanges, Message: "No fields to update"}

	case payroll.IsNotFound(err):
		return http.StatusNotFound, ErrorDTO{Code: codeNotFound, Message: "Employee not found or inactive"}

	case errors.Is(err, payroll.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorDTO{
			Code:    codeUnavailable,
			Message: "Service temporarily unavailable, please retry",
		}
	}

	return http.StatusInternalServerError, ErrorDTO{Code: codeInternal, Message: "Internal server error"}
}
