/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Validation failures are raised before any store mutation; store-call
  failures during the write phase propagate as-is.

ERROR CATEGORIES:
  1. Caller context errors - missing auth/org context
  2. Classification errors - unsupported or disallowed leave kinds
  3. Conflict errors - work/leave mutual exclusion, capacity
  4. Valuation errors - missing rates, invalid overrides
  5. Write-phase errors - ledger/session pairing failures

USAGE:
  Check kinds with errors.Is; structured errors unwrap to their sentinel:

    if errors.Is(err, ledger.ErrWorkConflict) {
        var conflict *ledger.ConflictError
        errors.As(err, &conflict)
        // conflict.Sessions enumerates the offending records
    }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAuthRequired is returned when no caller identity is present.
	ErrAuthRequired = errors.New("authentication required")

	// ErrOrgRequired is returned when no organization is selected.
	ErrOrgRequired = errors.New("organization required")

	// ErrUnsupportedLeaveKind is returned for an unknown leave-type token.
	ErrUnsupportedLeaveKind = errors.New("unsupported leave kind")

	// ErrHalfDayDisabled is returned when a half day is requested while
	// the leave policy disallows half days.
	ErrHalfDayDisabled = errors.New("half-day leave is disabled by policy")

	// ErrIdenticalHalfDayKinds is returned when both halves of a split
	// day carry the same base kind. That is indistinguishable from a full
	// day and must be saved as one.
	ErrIdenticalHalfDayKinds = errors.New("both half-day kinds are identical")

	// ErrWorkConflict is returned when work segments are saved onto a day
	// already occupied by a non-half leave entry.
	ErrWorkConflict = errors.New("day already has a leave entry")

	// ErrLeaveConflict is returned when a leave day is saved onto a day
	// already occupied by work segments.
	ErrLeaveConflict = errors.New("day already has work segments")

	// ErrLeaveCapacityExceeded is returned when the leave portions for a
	// day would exceed 1.0. The engine never truncates or clamps.
	ErrLeaveCapacityExceeded = errors.New("leave capacity for day exceeded")

	// ErrInvalidHoursIncrement is returned for hourly/global work hours
	// not on a quarter-hour boundary.
	ErrInvalidHoursIncrement = errors.New("hours must be in quarter-hour increments")

	// ErrRateMissing is returned when no rate exists for the employee on
	// the target date.
	ErrRateMissing = errors.New("no rate configured for date")

	// ErrGlobalRateFailed is returned when the global daily-rate
	// calculator cannot produce a value.
	ErrGlobalRateFailed = errors.New("global daily rate calculation failed")

	// ErrServiceRequired is returned when an instructor segment carries
	// no service.
	ErrServiceRequired = errors.New("service required for instructor entry")

	// ErrHalfDayWorkMissing is returned when the second half of a split
	// day is declared as work but no segments were supplied.
	ErrHalfDayWorkMissing = errors.New("work segments missing for second half")

	// ErrLeaveBeforeStartDate is returned when leave is recorded before
	// the employee's start date.
	ErrLeaveBeforeStartDate = errors.New("leave date precedes employee start date")

	// ErrLeaveBalanceExceeded is returned when a delta would push the
	// balance past the policy floor.
	ErrLeaveBalanceExceeded = errors.New("insufficient leave balance")

	// ErrInvalidOverride is returned when a confirmation override value
	// is non-numeric or not positive.
	ErrInvalidOverride = errors.New("override day value must be a positive number")

	// ErrLedgerLinkFailure is returned when the store created fewer
	// sessions than requested and ledger entries cannot all be linked.
	ErrLedgerLinkFailure = errors.New("ledger entries could not be linked to sessions")

	// ErrNoValidRows is returned by the bulk path when every row was
	// filtered out.
	ErrNoValidRows = errors.New("no insertable rows")

	// ErrInvalidAdjustment is returned for an adjustment with a zero
	// amount or an empty note.
	ErrInvalidAdjustment = errors.New("adjustment requires a non-zero amount and a note")

	// ErrEmployeeNotFound is returned when a referenced employee does not
	// exist in the snapshot.
	ErrEmployeeNotFound = errors.New("employee not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError enumerates the records occupying a contested day so the
// caller can show which day/employee caused the rejection.
type ConflictError struct {
	EmployeeID EmployeeID
	Date       Date
	Kind       error // ErrWorkConflict or ErrLeaveConflict
	Sessions   []WorkSession
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %s on %s (%d existing records)",
		e.Kind, e.EmployeeID, e.Date, len(e.Sessions))
}

func (e *ConflictError) Unwrap() error { return e.Kind }

// CapacityError reports a capacity invariant violation.
type CapacityError struct {
	EmployeeID EmployeeID
	Date       Date
	Existing   decimal.Decimal
	Proposed   decimal.Decimal
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("leave capacity exceeded for %s on %s: existing %s + proposed %s > 1",
		e.EmployeeID, e.Date, e.Existing, e.Proposed)
}

func (e *CapacityError) Unwrap() error { return ErrLeaveCapacityExceeded }

// BalanceError reports a balance-floor violation.
type BalanceError struct {
	EmployeeID EmployeeID
	Date       Date
	Remaining  decimal.Decimal
	Delta      decimal.Decimal
	Floor      decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for %s on %s: remaining %s, delta %s",
		e.EmployeeID, e.Date, e.Remaining, e.Delta)
}

func (e *BalanceError) Unwrap() error { return ErrLeaveBalanceExceeded }

// RateMissingError carries the store-reported reason for a missing rate.
type RateMissingError struct {
	EmployeeID EmployeeID
	Date       Date
	ServiceID  *ServiceID
	Reason     string
}

func (e *RateMissingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no rate for %s on %s: %s", e.EmployeeID, e.Date, e.Reason)
	}
	return fmt.Sprintf("no rate for %s on %s", e.EmployeeID, e.Date)
}

func (e *RateMissingError) Unwrap() error { return ErrRateMissing }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input
// rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedLeaveKind) ||
		errors.Is(err, ErrHalfDayDisabled) ||
		errors.Is(err, ErrIdenticalHalfDayKinds) ||
		errors.Is(err, ErrWorkConflict) ||
		errors.Is(err, ErrLeaveConflict) ||
		errors.Is(err, ErrLeaveCapacityExceeded) ||
		errors.Is(err, ErrInvalidHoursIncrement) ||
		errors.Is(err, ErrServiceRequired) ||
		errors.Is(err, ErrHalfDayWorkMissing) ||
		errors.Is(err, ErrLeaveBeforeStartDate) ||
		errors.Is(err, ErrLeaveBalanceExceeded) ||
		errors.Is(err, ErrInvalidOverride) ||
		errors.Is(err, ErrInvalidAdjustment) ||
		errors.Is(err, ErrNoValidRows)
}

// IsConflict reports whether the error is a day-occupancy conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrWorkConflict) || errors.Is(err, ErrLeaveConflict)
}
