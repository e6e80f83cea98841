/*
balance.go - Leave balance replay

PURPOSE:
  Replays the leave ledger into {quota, carryIn, used, remaining} for an
  employee at an evaluation date. Balance is always computed from the
  entries - there is no stored "balance" field that can drift.

ORDERING:
  Entries are totaled by EffectiveDate <= evaluation date; entries
  exactly on the evaluation date are included. Ties among same-date
  entries do not matter - summation is commutative.
*/
package ledger

import "github.com/shopspring/decimal"

// LeaveBalance is the replayed state of an employee's leave account.
// Remaining = CarryIn + Quota - Used.
type LeaveBalance struct {
	Quota     decimal.Decimal
	CarryIn   decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal
}

// LeaveRemaining replays all of the employee's ledger entries at or
// before asOf against the policy quota and carry-in. An employee with no
// history has Used = 0.
//
// Deltas are stored negative for consumption, so Used = -sum(delta).
func LeaveRemaining(employeeID EmployeeID, asOf Date, entries []LeaveLedgerEntry, policy LeavePolicy) LeaveBalance {
	used := decimal.Zero
	for _, e := range entries {
		if e.EmployeeID != employeeID {
			continue
		}
		if e.EffectiveDate.After(asOf) {
			continue
		}
		used = used.Sub(e.Delta)
	}

	remaining := policy.CarryIn.Add(policy.AnnualQuota).Sub(used)
	return LeaveBalance{
		Quota:     policy.AnnualQuota,
		CarryIn:   policy.CarryIn,
		Used:      used,
		Remaining: remaining,
	}
}

// CanConsume checks the policy floor for a proposed delta applied on top
// of the current balance. The boundary is deliberately strict: with
// negative balances disallowed, landing exactly at zero is rejected.
func (b LeaveBalance) CanConsume(delta decimal.Decimal, policy LeavePolicy) bool {
	if delta.GreaterThanOrEqual(decimal.Zero) {
		return true
	}
	after := b.Remaining.Add(delta)
	if !policy.AllowNegativeBalance {
		return after.GreaterThan(decimal.Zero)
	}
	return after.GreaterThanOrEqual(policy.NegativeFloor)
}
