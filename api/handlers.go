/*
handlers.go - HTTP API handlers for the payroll ledger engine

PURPOSE:
  Exposes the time-entry orchestrator via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                 List all employees
    GET    /api/employees/{id}/balance    Leave-balance summary
    GET    /api/employees/{id}/leave-value Full-day leave valuation
    GET    /api/employees/{id}/days       Day records in a date range

  Timesheet:
    POST   /api/workdays                  Save a work day
    POST   /api/leave-days                Save a leave day / half-day split
    POST   /api/leave-days/bulk           Bulk mixed-leave application
    POST   /api/adjustments               Manual adjustments

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (timesheet service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing caller identity
  - 404: Employee not found
  - 409: Conflict (occupied cell, capacity, balance floor)
  - 500: Internal errors
  ConflictError payloads carry the blocking sessions so the UI can show
  which records caused the rejection.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Timesheet *timesheet.Service
	Directory ledger.Directory
	Log       logrus.FieldLogger
}

// NewHandler creates a new handler around the timesheet service.
func NewHandler(svc *timesheet.Service, dir ledger.Directory, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Timesheet: svc, Directory: dir, Log: log}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.Employees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBalance returns the leave-balance summary as of a date.
// GET /api/employees/{id}/balance?as_of=2026-06-30
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := ledger.EmployeeID(chi.URLParam(r, "id"))
	asOf, err := parseDateParam(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return
	}

	balance, err := h.Timesheet.SelectLeaveRemaining(r.Context(), employeeID, asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID: string(employeeID),
		AsOf:       asOf.String(),
		Quota:      balance.Quota.String(),
		CarryIn:    balance.CarryIn.String(),
		Used:       balance.Used.String(),
		Remaining:  balance.Remaining.String(),
	})
}

// GetLeaveValue returns the full-day leave valuation for a date.
// GET /api/employees/{id}/leave-value?date=2026-06-30
func (h *Handler) GetLeaveValue(w http.ResponseWriter, r *http.Request) {
	employeeID := ledger.EmployeeID(chi.URLParam(r, "id"))
	date, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	value, method, err := h.Timesheet.SelectLeaveDayValue(r.Context(), employeeID, date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LeaveValueDTO{
		EmployeeID:       string(employeeID),
		Date:             date.String(),
		Value:            value.Value.String(),
		Method:           string(method.Method),
		MethodSource:     string(method.Source),
		Description:      method.Describe(),
		InsufficientData: value.InsufficientData,
		PreStartDate:     value.PreStartDate,
	})
}

// GetDays returns the day records for an employee in a date range.
// GET /api/employees/{id}/days?from=2026-06-01&to=2026-06-30
func (h *Handler) GetDays(w http.ResponseWriter, r *http.Request) {
	employeeID := ledger.EmployeeID(chi.URLParam(r, "id"))
	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	sessions, err := h.Timesheet.DayRecords(r.Context(), employeeID, from, to)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// SaveWorkDay saves the work segments of one day.
// POST /api/workdays
func (h *Handler) SaveWorkDay(w http.ResponseWriter, r *http.Request) {
	var req SaveWorkDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	segments, err := toSegments(req.Segments)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid segment hours", err)
		return
	}
	removeIDs := make([]ledger.SessionID, 0, len(req.RemoveSessionIDs))
	for _, id := range req.RemoveSessionIDs {
		removeIDs = append(removeIDs, ledger.SessionID(id))
	}

	result, err := h.Timesheet.SaveWorkDay(r.Context(), timesheet.WorkDayInput{
		EmployeeID:       ledger.EmployeeID(req.EmployeeID),
		Date:             date,
		Segments:         segments,
		RemoveSessionIDs: removeIDs,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SaveWorkDayResponse{
		Inserted: result.InsertedCount,
		Updated:  result.UpdatedCount,
	})
}

// SaveLeaveDay saves a leave day, a half-day split, or a confirmation
// resubmission.
// POST /api/leave-days
func (h *Handler) SaveLeaveDay(w http.ResponseWriter, r *http.Request) {
	var req SaveLeaveDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	input, err := h.toLeaveDayInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid leave-day request", err)
		return
	}

	result, err := h.Timesheet.SaveLeaveDay(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := SaveLeaveDayResponse{Phase: result.State.Phase.String()}
	if result.NeedsConfirmation {
		resp.NeedsConfirmation = true
		resp.FallbackValue = result.FallbackValue.String()
		resp.Fraction = result.Fraction.String()
		resp.Payable = result.Payable
	} else {
		resp.Inserted = result.Inserted
		resp.Updated = result.Updated
		resp.LedgerInserted = result.LedgerInserted
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) toLeaveDayInput(req SaveLeaveDayRequest) (timesheet.LeaveDayInput, error) {
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		return timesheet.LeaveDayInput{}, err
	}

	input := timesheet.LeaveDayInput{
		EmployeeID: ledger.EmployeeID(req.EmployeeID),
		Date:       date,
		Selection:  toSelection(req.Selection),
		Notes:      req.Notes,
	}

	if req.OverrideDailyValue != "" {
		override, err := decimal.NewFromString(req.OverrideDailyValue)
		if err != nil {
			return timesheet.LeaveDayInput{}, err
		}
		input.OverrideDailyValue = &override
	}

	if req.SecondHalf != nil {
		half := timesheet.SecondHalf{Mode: timesheet.SecondHalfMode(req.SecondHalf.Mode)}
		if len(req.SecondHalf.Segments) > 0 {
			segments, err := toSegments(req.SecondHalf.Segments)
			if err != nil {
				return timesheet.LeaveDayInput{}, err
			}
			half.Segments = segments
		}
		if req.SecondHalf.Selection != nil {
			sel := toSelection(*req.SecondHalf.Selection)
			half.Selection = &sel
		}
		input.SecondHalf = &half
	}

	return input, nil
}

// SaveMixedLeave applies the bulk mixed-leave batch.
// POST /api/leave-days/bulk
func (h *Handler) SaveMixedLeave(w http.ResponseWriter, r *http.Request) {
	var req SaveMixedLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tuples := make([]timesheet.MixedLeaveTuple, 0, len(req.Tuples))
	for _, t := range req.Tuples {
		date, err := ledger.ParseDate(t.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid tuple date", err)
			return
		}
		tuples = append(tuples, timesheet.MixedLeaveTuple{
			EmployeeID: ledger.EmployeeID(t.EmployeeID),
			Date:       date,
			Paid:       t.Paid,
			Subtype:    ledger.LeaveSubtype(t.Subtype),
			HalfDay:    t.HalfDay,
		})
	}

	result, err := h.Timesheet.SaveMixedLeave(r.Context(), timesheet.MixedLeaveInput{
		Tuples: tuples,
		Notes:  req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SaveMixedLeaveResponse{
		Applied:           len(result.Applied),
		Conflicts:         toSkippedTupleDTOs(result.Conflicts),
		InvalidStartDates: toSkippedTupleDTOs(result.InvalidStartDates),
		Skipped:           toSkippedTupleDTOs(result.Skipped),
		Inserted:          result.Inserted,
		LedgerInserted:    result.LedgerInserted,
	})
}

// SaveAdjustments stores manual adjustments for one employee.
// POST /api/adjustments
func (h *Handler) SaveAdjustments(w http.ResponseWriter, r *http.Request) {
	var req SaveAdjustmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	adjustments := make([]timesheet.Adjustment, 0, len(req.Adjustments))
	for _, a := range req.Adjustments {
		date, err := ledger.ParseDate(a.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid adjustment date", err)
			return
		}
		amount, err := decimal.NewFromString(a.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid adjustment amount", err)
			return
		}
		adjustments = append(adjustments, timesheet.Adjustment{
			Date:   date,
			Amount: amount,
			Note:   a.Note,
		})
	}

	result, err := h.Timesheet.SaveAdjustments(r.Context(), timesheet.AdjustmentInput{
		EmployeeID:  ledger.EmployeeID(req.EmployeeID),
		Adjustments: adjustments,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": result.Inserted})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDateParam(r *http.Request, name string) (ledger.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return ledger.DateOf(time.Now()), nil
	}
	return ledger.ParseDate(v)
}

// writeDomainError maps engine errors to HTTP statuses and attaches the
// details/conflicts payload where one exists.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrEmployeeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrAuthRequired):
		status = http.StatusUnauthorized
	case ledger.IsConflict(err),
		errors.Is(err, ledger.ErrLeaveCapacityExceeded),
		errors.Is(err, ledger.ErrLeaveBalanceExceeded):
		status = http.StatusConflict
	case ledger.IsClientError(err):
		status = http.StatusBadRequest
	}

	resp := ErrorResponse{Error: err.Error()}

	var conflict *ledger.ConflictError
	if errors.As(err, &conflict) {
		resp.Conflicts = &ConflictDTO{
			EmployeeID: string(conflict.EmployeeID),
			Date:       conflict.Date.String(),
			Sessions:   toSessionDTOs(conflict.Sessions),
		}
	}
	var capacity *ledger.CapacityError
	if errors.As(err, &capacity) {
		resp.Details = map[string]string{
			"existing_portion": capacity.Existing.String(),
			"proposed_portion": capacity.Proposed.String(),
		}
	}
	var balance *ledger.BalanceError
	if errors.As(err, &balance) {
		resp.Details = map[string]string{
			"remaining": balance.Remaining.String(),
			"delta":     balance.Delta.String(),
		}
	}

	if status == http.StatusInternalServerError {
		h.Log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
