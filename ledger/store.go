/*
store.go - Collaborator interfaces for persistence and rate lookup

PURPOSE:
  Defines the seams between the engine and its external collaborators.
  The engine consumes these as opaque interfaces; it owns no wire or
  file format - persistence shapes belong to the implementations.

KEY INTERFACES:
  RecordStore:          Work-session read/insert/update/soft-delete
  LedgerStore:          Leave-ledger insert/delete/read
  Directory:            Employee and service lookup
  RateSource:           Rate-for-date lookup
  GlobalRateCalculator: Monthly salary to daily rate conversion

CORRELATION TOKENS:
  CreateSessions must echo back the caller-supplied CorrelationToken on
  every created record. The orchestrator matches created sessions to
  their logical purpose (ledger pairing, primary segments) through the
  token, never through slice order.

IMPLEMENTATIONS:
  - store/sqlite: Production store
  - store/memory: In-memory store for tests and dev
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD STORE - Work-session persistence
// =============================================================================

// SessionQuery filters work sessions. Nil fields are not applied.
// Deleted records are excluded unless IncludeDeleted is set.
type SessionQuery struct {
	EmployeeID     *EmployeeID
	Date           *Date
	From           *Date
	To             *Date
	IncludeDeleted bool
}

// RecordStore is the generic record store the engine writes day records
// through. Soft delete only; the engine never hard-deletes a session.
type RecordStore interface {
	// FetchSessions returns sessions matching the query.
	FetchSessions(ctx context.Context, q SessionQuery) ([]WorkSession, error)

	// CreateSessions persists new sessions and returns the created
	// records with ids assigned and correlation tokens echoed back.
	CreateSessions(ctx context.Context, sessions []WorkSession) ([]WorkSession, error)

	// UpdateSession applies a partial update in place.
	UpdateSession(ctx context.Context, id SessionID, patch SessionPatch) error

	// SoftDeleteSession flags a session deleted with a timestamp.
	SoftDeleteSession(ctx context.Context, id SessionID) error
}

// =============================================================================
// LEDGER STORE - Leave-balance delta persistence
// =============================================================================

// EntryQuery filters leave-ledger entries. Nil fields are not applied.
type EntryQuery struct {
	EmployeeID    *EmployeeID
	To            *Date
	WorkSessionID *SessionID
}

// LedgerStore persists leave-balance deltas. Entries are append-only
// from the engine's perspective; deletion happens only in lockstep with
// deleting or editing the work session that produced them.
type LedgerStore interface {
	CreateEntries(ctx context.Context, entries []LeaveLedgerEntry) ([]LeaveLedgerEntry, error)
	DeleteEntries(ctx context.Context, ids []EntryID) error
	FetchEntries(ctx context.Context, q EntryQuery) ([]LeaveLedgerEntry, error)
}

// =============================================================================
// DIRECTORY - Org records the engine reads
// =============================================================================

// Directory exposes the employees and services owned by the org.
type Directory interface {
	Employee(ctx context.Context, id EmployeeID) (Employee, error)
	Employees(ctx context.Context) ([]Employee, error)
	Services(ctx context.Context) ([]Service, error)
}

// =============================================================================
// RATE LOOKUP
// =============================================================================

// Rate is the outcome of a rate lookup. Missing carries the reason when
// no rate applies.
type Rate struct {
	Value   decimal.Decimal
	Missing string
}

// RateSource resolves the rate that applies to an employee on a date,
// optionally scoped to a service (instructor lookups).
type RateSource interface {
	RateForDate(ctx context.Context, employeeID EmployeeID, date Date, serviceID *ServiceID) (Rate, error)
}

// GlobalRateCalculator converts a global employee's monthly salary into
// a daily rate for a specific date (salary divided by the configured
// working-days count for that month). May fail.
type GlobalRateCalculator interface {
	DailyRate(ctx context.Context, emp Employee, date Date, rate decimal.Decimal) (decimal.Decimal, error)
}

// =============================================================================
// DEFAULT GLOBAL RATE CALCULATOR
// =============================================================================

// WorkdayRateCalculator divides a monthly rate by the month's working
// days. WorkingDays overrides the Monday-Friday count when positive.
type WorkdayRateCalculator struct {
	WorkingDays int
}

func (c WorkdayRateCalculator) DailyRate(_ context.Context, _ Employee, date Date, rate decimal.Decimal) (decimal.Decimal, error) {
	days := c.WorkingDays
	if days <= 0 {
		days = WorkingDaysInMonth(date)
	}
	if days <= 0 {
		return decimal.Zero, ErrGlobalRateFailed
	}
	return rate.Div(decimal.NewFromInt(int64(days))), nil
}
