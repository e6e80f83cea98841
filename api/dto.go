/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  Monetary and portion values cross the wire as strings to avoid float
  rounding; they are parsed into decimals at the handler edge.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/timesheet"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	StartDate      string `json:"start_date"`
	LeavePayMethod string `json:"leave_pay_method,omitempty"`
}

// WorkSegmentDTO is one proposed work segment.
type WorkSegmentDTO struct {
	SessionID     string `json:"session_id,omitempty"`
	ServiceID     string `json:"service_id,omitempty"`
	Hours         string `json:"hours,omitempty"`
	SessionsCount int    `json:"sessions_count,omitempty"`
	StudentsCount int    `json:"students_count,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// SaveWorkDayRequest is the request to save a work day.
type SaveWorkDayRequest struct {
	EmployeeID       string           `json:"employee_id"`
	Date             string           `json:"date"`
	Segments         []WorkSegmentDTO `json:"segments"`
	RemoveSessionIDs []string         `json:"remove_session_ids,omitempty"`
}

// SaveWorkDayResponse reports the write summary.
type SaveWorkDayResponse struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// LeaveSelectionDTO is a raw leave selection.
type LeaveSelectionDTO struct {
	Kind    string `json:"kind"`
	Primary string `json:"primary,omitempty"`

	// Mixed parameters, used when kind is "mixed".
	Paid    *bool  `json:"paid,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	HalfDay *bool  `json:"half_day,omitempty"`
}

// SecondHalfDTO describes the other half of a half-day save.
type SecondHalfDTO struct {
	Mode      string             `json:"mode"` // "work" or "leave"
	Segments  []WorkSegmentDTO   `json:"segments,omitempty"`
	Selection *LeaveSelectionDTO `json:"selection,omitempty"`
}

// SaveLeaveDayRequest is the request to save a leave day.
type SaveLeaveDayRequest struct {
	EmployeeID         string            `json:"employee_id"`
	Date               string            `json:"date"`
	Selection          LeaveSelectionDTO `json:"selection"`
	OverrideDailyValue string            `json:"override_daily_value,omitempty"`
	SecondHalf         *SecondHalfDTO    `json:"second_half,omitempty"`
	Notes              string            `json:"notes,omitempty"`
}

// SaveLeaveDayResponse carries either a committed write summary or a
// needs-confirmation payload, distinguished by the phase.
type SaveLeaveDayResponse struct {
	Phase string `json:"phase"`

	NeedsConfirmation bool   `json:"needs_confirmation,omitempty"`
	FallbackValue     string `json:"fallback_value,omitempty"`
	Fraction          string `json:"fraction,omitempty"`
	Payable           bool   `json:"payable,omitempty"`

	Inserted       int `json:"inserted,omitempty"`
	Updated        int `json:"updated,omitempty"`
	LedgerInserted int `json:"ledger_inserted,omitempty"`
}

// MixedLeaveTupleDTO is one employee-day in a bulk request.
type MixedLeaveTupleDTO struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Paid       bool   `json:"paid"`
	Subtype    string `json:"subtype"`
	HalfDay    bool   `json:"half_day,omitempty"`
}

// SaveMixedLeaveRequest is the bulk mixed-leave request.
type SaveMixedLeaveRequest struct {
	Tuples []MixedLeaveTupleDTO `json:"tuples"`
	Notes  string               `json:"notes,omitempty"`
}

// SkippedTupleDTO reports one skipped tuple with its reason.
type SkippedTupleDTO struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
}

// SaveMixedLeaveResponse summarizes a bulk run.
type SaveMixedLeaveResponse struct {
	Applied           int               `json:"applied"`
	Conflicts         []SkippedTupleDTO `json:"conflicts,omitempty"`
	InvalidStartDates []SkippedTupleDTO `json:"invalid_start_dates,omitempty"`
	Skipped           []SkippedTupleDTO `json:"skipped,omitempty"`
	Inserted          int               `json:"inserted"`
	LedgerInserted    int               `json:"ledger_inserted"`
}

// AdjustmentDTO is one manual credit or debit.
type AdjustmentDTO struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

// SaveAdjustmentsRequest groups adjustments for one employee.
type SaveAdjustmentsRequest struct {
	EmployeeID  string          `json:"employee_id"`
	Adjustments []AdjustmentDTO `json:"adjustments"`
}

// BalanceDTO is the leave-balance summary for an employee.
type BalanceDTO struct {
	EmployeeID string `json:"employee_id"`
	AsOf       string `json:"as_of"`
	Quota      string `json:"quota"`
	CarryIn    string `json:"carry_in"`
	Used       string `json:"used"`
	Remaining  string `json:"remaining"`
}

// LeaveValueDTO is the valuation of one full leave day.
type LeaveValueDTO struct {
	EmployeeID       string `json:"employee_id"`
	Date             string `json:"date"`
	Value            string `json:"value"`
	Method           string `json:"method"`
	MethodSource     string `json:"method_source"`
	Description      string `json:"description"`
	InsufficientData bool   `json:"insufficient_data,omitempty"`
	PreStartDate     bool   `json:"pre_start_date,omitempty"`
}

// SessionDTO represents a stored work session.
type SessionDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	ServiceID    string `json:"service_id,omitempty"`
	Date         string `json:"date"`
	EntryType    string `json:"entry_type"`
	Hours        string `json:"hours"`
	RateUsed     string `json:"rate_used"`
	TotalPayment string `json:"total_payment"`
	Payable      bool   `json:"payable"`
	Notes        string `json:"notes,omitempty"`
}

// ConflictDTO enumerates the stored sessions blocking a save.
type ConflictDTO struct {
	EmployeeID string       `json:"employee_id"`
	Date       string       `json:"date"`
	Sessions   []SessionDTO `json:"sessions"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error     string       `json:"error"`
	Details   any          `json:"details,omitempty"`
	Conflicts *ConflictDTO `json:"conflicts,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e ledger.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Type:      string(e.Type),
		StartDate: e.StartDate.String(),
	}
	if e.LeavePayMethod != nil {
		dto.LeavePayMethod = string(*e.LeavePayMethod)
	}
	return dto
}

func toSessionDTO(s ledger.WorkSession) SessionDTO {
	dto := SessionDTO{
		ID:           string(s.ID),
		EmployeeID:   string(s.EmployeeID),
		Date:         s.Date.String(),
		EntryType:    string(s.EntryType),
		Hours:        s.Hours.String(),
		RateUsed:     s.RateUsed.String(),
		TotalPayment: s.TotalPayment.String(),
		Payable:      s.Payable,
		Notes:        s.Notes,
	}
	if s.ServiceID != nil {
		dto.ServiceID = string(*s.ServiceID)
	}
	return dto
}

func toSessionDTOs(sessions []ledger.WorkSession) []SessionDTO {
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

func toSkippedTupleDTOs(skipped []timesheet.SkippedTuple) []SkippedTupleDTO {
	dtos := make([]SkippedTupleDTO, len(skipped))
	for i, s := range skipped {
		dtos[i] = SkippedTupleDTO{
			EmployeeID: string(s.Tuple.EmployeeID),
			Date:       s.Tuple.Date.String(),
			Reason:     s.Reason.Error(),
		}
	}
	return dtos
}

func toSegments(dtos []WorkSegmentDTO) ([]timesheet.WorkSegment, error) {
	segments := make([]timesheet.WorkSegment, 0, len(dtos))
	for _, dto := range dtos {
		seg := timesheet.WorkSegment{
			SessionsCount: dto.SessionsCount,
			StudentsCount: dto.StudentsCount,
			Notes:         dto.Notes,
		}
		if dto.SessionID != "" {
			id := ledger.SessionID(dto.SessionID)
			seg.SessionID = &id
		}
		if dto.ServiceID != "" {
			id := ledger.ServiceID(dto.ServiceID)
			seg.ServiceID = &id
		}
		if dto.Hours != "" {
			hours, err := decimal.NewFromString(dto.Hours)
			if err != nil {
				return nil, err
			}
			seg.Hours = hours
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func toSelection(dto LeaveSelectionDTO) ledger.LeaveSelection {
	sel := ledger.LeaveSelection{
		Kind:    dto.Kind,
		Primary: dto.Primary,
	}
	if sel.Kind == ledger.LeaveMixed {
		mixed := ledger.MixedLeave{Subtype: ledger.LeaveSubtype(dto.Subtype)}
		if dto.Paid != nil {
			mixed.Paid = *dto.Paid
		}
		if dto.HalfDay != nil {
			mixed.HalfDay = *dto.HalfDay
		}
		sel.Mixed = &mixed
	}
	return sel
}
