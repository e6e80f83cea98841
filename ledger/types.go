/*
Package ledger provides the core leave and payroll ledger engine.

PURPOSE:
  This package contains the pure computation layer of the engine: the
  leave classifier, the pay-method resolver, the leave-day value selector
  and the leave-balance selector. It owns the domain types (employees,
  services, work sessions, ledger entries, policies) and the collaborator
  interfaces through which persisted records flow, but performs no I/O
  itself.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee/Service: Read-only org records the engine computes against
  - WorkSession: One "day record" - hours, sessions, a leave day, or an
    adjustment - with soft-delete semantics
  - LeaveLedgerEntry: A signed leave-balance delta paired with the work
    session that produced it
  - LeavePolicy / LeavePayPolicy: Externally configured rules

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for money and day portions to avoid
     floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing employee/service
     and session/entry identifiers
  3. Snapshots: Selectors compute over immutable in-memory collections;
     nothing here mutates persisted state

SEE ALSO:
  - classify.go: Leave-kind classification
  - value.go: Leave-day monetary value
  - balance.go: Ledger replay into {quota, carryIn, used, remaining}
  - store.go: Collaborator interfaces for persistence and rate lookup
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ServiceID string
type SessionID string
type EntryID string

// =============================================================================
// EMPLOYEE
// =============================================================================

// EmployeeType determines how a day of work is valued.
type EmployeeType string

const (
	// EmployeeHourly is paid per quarter-hour of recorded work.
	EmployeeHourly EmployeeType = "hourly"

	// EmployeeInstructor is paid per session or per student, by service.
	EmployeeInstructor EmployeeType = "instructor"

	// EmployeeGlobal draws a monthly salary converted to a daily rate.
	EmployeeGlobal EmployeeType = "global"
)

// Employee is an org-owned record. The engine reads it; only the
// leave-pay override fields are ever written by callers of this core.
type Employee struct {
	ID        EmployeeID
	Name      string
	Type      EmployeeType
	StartDate Date

	// Per-employee leave-pay override. Takes precedence over the org
	// default when the method is recognized.
	LeavePayMethod    *PayMethod
	LeaveFixedDayRate *decimal.Decimal
}

// =============================================================================
// SERVICE
// =============================================================================

// PaymentModel determines how instructor work on a service is paid.
type PaymentModel string

const (
	PayPerSession PaymentModel = "per_session"
	PayPerStudent PaymentModel = "per_student"
)

// Service is used only for instructor rate lookups.
type Service struct {
	ID           ServiceID
	Name         string
	PaymentModel PaymentModel
}

// =============================================================================
// WORK SESSION - One day record
// =============================================================================

// EntryType classifies a WorkSession.
type EntryType string

const (
	EntryHours             EntryType = "hours"
	EntrySession           EntryType = "session"
	EntryLeaveEmployeePaid EntryType = "leave_employee_paid"
	EntryLeaveSystemPaid   EntryType = "leave_system_paid"
	EntryLeaveUnpaid       EntryType = "leave_unpaid"
	EntryAdjustment        EntryType = "adjustment"
)

// IsWork reports whether the entry type records actual work.
func (t EntryType) IsWork() bool {
	return t == EntryHours || t == EntrySession
}

// IsLeave reports whether the entry type records a leave portion.
func (t EntryType) IsLeave() bool {
	return t == EntryLeaveEmployeePaid || t == EntryLeaveSystemPaid || t == EntryLeaveUnpaid
}

// WorkSession is a single day record for one employee. Exactly one of
// Hours / SessionsCount / StudentsCount is meaningful, by entry type.
//
// INVARIANTS (enforced by the timesheet orchestrator before any write):
//   - For a given (EmployeeID, Date), the sum of leave portions across
//     non-deleted leave sessions never exceeds 1.0.
//   - Leave and work sessions are mutually exclusive on a day unless the
//     day is explicitly split into a work half and a leave half.
type WorkSession struct {
	ID           SessionID // empty until persisted
	EmployeeID   EmployeeID
	ServiceID    *ServiceID
	Date         Date
	EntryType    EntryType
	Hours        decimal.Decimal
	SessionsCount int
	StudentsCount int
	RateUsed     decimal.Decimal
	TotalPayment decimal.Decimal
	Payable      bool
	Notes        string
	Meta         SessionMeta

	// CorrelationToken is caller-supplied and must be echoed back by the
	// record store on create, so inserts can be matched to their logical
	// purpose (ledger pairing, primary-segment selection).
	CorrelationToken string

	// Soft delete. Nothing in this core ever hard-deletes a session.
	Deleted   bool
	DeletedAt *time.Time
}

// LeavePortion returns the fraction of the day (1.0 or 0.5) this session
// consumes, or zero for non-leave sessions and deleted records.
func (s WorkSession) LeavePortion() decimal.Decimal {
	if s.Deleted || !s.EntryType.IsLeave() {
		return decimal.Zero
	}
	if s.Meta.Portion.IsZero() {
		return decimal.NewFromInt(1)
	}
	return s.Meta.Portion
}

// SessionPatch carries the updatable fields of a WorkSession. Nil fields
// are left untouched by the record store.
type SessionPatch struct {
	Hours         *decimal.Decimal
	SessionsCount *int
	StudentsCount *int
	RateUsed      *decimal.Decimal
	TotalPayment  *decimal.Decimal
	Payable       *bool
	Notes         *string
	Meta          *SessionMeta
}

// =============================================================================
// LEAVE LEDGER ENTRY - Signed balance delta
// =============================================================================

// EngineEntryPrefix tags ledger entries written by this engine. Entries
// carrying the prefix are created and deleted only in lockstep with the
// work session they reference.
const EngineEntryPrefix = "auto:"

// LeaveLedgerEntry is a signed change to an employee's leave balance.
// Deltas are stored negative for consumption (-1 full day, -0.5 half).
//
/// INVARIANT: every engine-written entry references exactly one persisted
// WorkSession id before the producing transaction is considered complete.
type LeaveLedgerEntry struct {
	ID            EntryID
	EmployeeID    EmployeeID
	EffectiveDate Date
	Delta         decimal.Decimal
	LeaveType     string
	WorkSessionID SessionID
	Notes         string
}

// IsEngineEntry reports whether this entry was written by the engine.
func (e LeaveLedgerEntry) IsEngineEntry() bool {
	return len(e.LeaveType) >= len(EngineEntryPrefix) &&
		e.LeaveType[:len(EngineEntryPrefix)] == EngineEntryPrefix
}

// EngineLeaveType builds the tagged leave-type string for a base kind.
func EngineLeaveType(kind BaseKind) string {
	return EngineEntryPrefix + string(kind)
}

// =============================================================================
// POLICIES - Externally configured, read-only to the core
// =============================================================================

// LeavePolicy governs leave consumption for an org.
type LeavePolicy struct {
	AllowHalfDay bool

	// When false, any delta that leaves the balance at or below zero is
	// rejected. When true, the balance may drop to NegativeFloor.
	AllowNegativeBalance bool
	NegativeFloor        decimal.Decimal

	// Annual quota and carry-in, replayed into LeaveBalance.
	AnnualQuota decimal.Decimal
	CarryIn     decimal.Decimal
}

// LeavePayPolicy governs how a leave day is valued org-wide.
// Per-employee overrides live on the Employee record and win.
type LeavePayPolicy struct {
	DefaultMethod PayMethod

	// Lookback window for the averaging method, in months.
	LookbackMonths int

	// When true, the 12-month window is consulted as well and the better
	// (higher) average wins.
	AllowWiderWindow bool
}

// DefaultLookbackMonths applies when the policy leaves the window unset.
const DefaultLookbackMonths = 3

// =============================================================================
// HISTORY - Immutable snapshot the selectors compute over
// =============================================================================

// History is the full in-memory set of org records one computation runs
// against. Treated as an immutable snapshot for the duration of a call;
// the engine never mutates it.
type History struct {
	Employees []Employee
	Services  []Service
	Sessions  []WorkSession
}

// Employee finds an employee by id.
func (h History) Employee(id EmployeeID) (Employee, bool) {
	for _, e := range h.Employees {
		if e.ID == id {
			return e, true
		}
	}
	return Employee{}, false
}

// Service finds a service by id.
func (h History) Service(id ServiceID) (Service, bool) {
	for _, s := range h.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}
