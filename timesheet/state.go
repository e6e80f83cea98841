/*
state.go - Per-cell state machine and request phases

PURPOSE:
  A "cell" is one (employee, date). Every orchestrator invocation scans
  the cell's persisted records into a fresh, function-local cell value;
  there are no process-wide occupancy caches. The cell classifies into
  the states that guard transitions, and each save request moves through
  an explicit phase union so tests can assert on transitions directly.
*/
package timesheet

import (
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
)

// =============================================================================
// CELL STATE
// =============================================================================

// CellState classifies the persisted occupancy of one (employee, date).
type CellState int

const (
	CellEmpty CellState = iota
	CellWorkOnly
	CellLeaveOnly
	CellHalfWorkHalfLeave
	CellHalfLeaveHalfLeave
	CellAdjustmentOnly
)

func (s CellState) String() string {
	switch s {
	case CellEmpty:
		return "empty"
	case CellWorkOnly:
		return "work_only"
	case CellLeaveOnly:
		return "leave_only"
	case CellHalfWorkHalfLeave:
		return "half_work_half_leave"
	case CellHalfLeaveHalfLeave:
		return "half_leave_half_leave"
	case CellAdjustmentOnly:
		return "adjustment_only"
	default:
		return "unknown"
	}
}

// cell is the function-local view of one (employee, date). Deleted
// records are filtered out on construction.
type cell struct {
	employeeID ledger.EmployeeID
	date       ledger.Date
	sessions   []ledger.WorkSession
}

func newCell(employeeID ledger.EmployeeID, date ledger.Date, sessions []ledger.WorkSession) cell {
	live := make([]ledger.WorkSession, 0, len(sessions))
	for _, s := range sessions {
		if !s.Deleted {
			live = append(live, s)
		}
	}
	return cell{employeeID: employeeID, date: date, sessions: live}
}

func (c cell) workSegments() []ledger.WorkSession {
	var out []ledger.WorkSession
	for _, s := range c.sessions {
		if s.EntryType.IsWork() {
			out = append(out, s)
		}
	}
	return out
}

func (c cell) leaveSessions() []ledger.WorkSession {
	var out []ledger.WorkSession
	for _, s := range c.sessions {
		if s.EntryType.IsLeave() {
			out = append(out, s)
		}
	}
	return out
}

// leavePortion sums the day fractions of the cell's leave sessions,
// skipping any session the current request is about to replace.
func (c cell) leavePortion(except map[ledger.SessionID]bool) decimal.Decimal {
	total := decimal.Zero
	for _, s := range c.sessions {
		if except[s.ID] {
			continue
		}
		total = total.Add(s.LeavePortion())
	}
	return total
}

// paidLeavePortion sums the fractions consumed by payable leave. Used to
// scale a global employee's daily rate to the remainder of the day.
func (c cell) paidLeavePortion(except map[ledger.SessionID]bool) decimal.Decimal {
	total := decimal.Zero
	for _, s := range c.sessions {
		if except[s.ID] || !s.Payable {
			continue
		}
		total = total.Add(s.LeavePortion())
	}
	return total
}

// hasFullLeave reports whether a non-half leave entry occupies the cell.
func (c cell) hasFullLeave() bool {
	for _, s := range c.leaveSessions() {
		if s.LeavePortion().Equal(decimal.NewFromInt(1)) {
			return true
		}
	}
	return false
}

func (c cell) state() CellState {
	work := len(c.workSegments())
	leaves := c.leaveSessions()
	adjustments := 0
	for _, s := range c.sessions {
		if s.EntryType == ledger.EntryAdjustment {
			adjustments++
		}
	}

	switch {
	case work == 0 && len(leaves) == 0 && adjustments == 0:
		return CellEmpty
	case work == 0 && len(leaves) == 0:
		return CellAdjustmentOnly
	case work > 0 && len(leaves) == 0:
		return CellWorkOnly
	case work > 0:
		return CellHalfWorkHalfLeave
	case len(leaves) > 1:
		return CellHalfLeaveHalfLeave
	default:
		return CellLeaveOnly
	}
}

// =============================================================================
// REQUEST PHASES - Tagged union for the save lifecycle
// =============================================================================

// Phase names a stage in a save request's lifecycle.
type Phase int

const (
	PhaseDraft Phase = iota
	PhaseAwaitingConfirmation
	PhaseCommitted
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseDraft:
		return "draft"
	case PhaseAwaitingConfirmation:
		return "awaiting_confirmation"
	case PhaseCommitted:
		return "committed"
	case PhaseRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RequestState is the explicit outcome of one save request. Rejected
// states carry the error kind that caused the rejection.
type RequestState struct {
	Phase      Phase
	RejectKind error
}

func draftState() RequestState            { return RequestState{Phase: PhaseDraft} }
func awaitingState() RequestState         { return RequestState{Phase: PhaseAwaitingConfirmation} }
func committedState() RequestState        { return RequestState{Phase: PhaseCommitted} }
func rejectedState(kind error) RequestState { return RequestState{Phase: PhaseRejected, RejectKind: kind} }

// capacityEpsilon absorbs representation noise when comparing portions.
var capacityEpsilon = decimal.RequireFromString("0.000000001")

// fitsCapacity checks existing + proposed <= 1.0 + epsilon.
func fitsCapacity(existing, proposed decimal.Decimal) bool {
	limit := decimal.NewFromInt(1).Add(capacityEpsilon)
	return existing.Add(proposed).LessThanOrEqual(limit)
}
