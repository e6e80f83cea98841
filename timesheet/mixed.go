/*
mixed.go - Bulk mixed-leave application

Applies a batch of (employee, date, mixed-leave) tuples in one pass.
Each tuple runs the same classification, valuation, and capacity logic
as the single-day path, but the batch degrades gracefully: conflicting
tuples and pre-start-date tuples are skipped and reported, not fatal.
The call succeeds when at least one tuple committed.

The bulk path never stops to ask for confirmation: a tuple whose
valuation comes back with insufficient history uses the fallback value
directly.
*/
package timesheet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
)

// MixedLeaveTuple is one employee-day in a bulk mixed-leave request.
type MixedLeaveTuple struct {
	EmployeeID ledger.EmployeeID
	Date       ledger.Date
	Paid       bool
	Subtype    ledger.LeaveSubtype
	HalfDay    bool
}

// MixedLeaveInput is a bulk mixed-leave request.
type MixedLeaveInput struct {
	Tuples []MixedLeaveTuple
	Notes  string
}

// SkippedTuple reports one tuple the batch could not apply.
type SkippedTuple struct {
	Tuple  MixedLeaveTuple
	Reason error
}

// MixedLeaveResult summarizes a bulk run. Conflicts and
// InvalidStartDates split the skips by cause; Skipped collects every
// other per-tuple failure.
type MixedLeaveResult struct {
	Applied           []MixedLeaveTuple
	Conflicts         []SkippedTuple
	InvalidStartDates []SkippedTuple
	Skipped           []SkippedTuple

	Inserted       int
	LedgerInserted int
}

// SaveMixedLeave applies each tuple independently, collecting failures
// instead of aborting. An empty batch, or one where every tuple was
// filtered out, fails with ErrNoValidRows.
func (s *Service) SaveMixedLeave(ctx context.Context, in MixedLeaveInput) (MixedLeaveResult, error) {
	var result MixedLeaveResult
	if len(in.Tuples) == 0 {
		return result, ledger.ErrNoValidRows
	}

	for _, t := range in.Tuples {
		dayResult, err := s.saveMixedTuple(ctx, t, in.Notes)
		if err != nil {
			skip := SkippedTuple{Tuple: t, Reason: err}
			switch {
			case errors.Is(err, ledger.ErrLeaveConflict), errors.Is(err, ledger.ErrWorkConflict):
				result.Conflicts = append(result.Conflicts, skip)
			case errors.Is(err, ledger.ErrLeaveBeforeStartDate):
				result.InvalidStartDates = append(result.InvalidStartDates, skip)
			default:
				result.Skipped = append(result.Skipped, skip)
			}
			continue
		}
		result.Applied = append(result.Applied, t)
		result.Inserted += dayResult.Inserted
		result.LedgerInserted += dayResult.LedgerInserted
	}

	if len(result.Applied) == 0 {
		return result, ledger.ErrNoValidRows
	}

	s.Log.WithFields(map[string]interface{}{
		"tuples":   len(in.Tuples),
		"applied":  len(result.Applied),
		"conflict": len(result.Conflicts),
		"skipped":  len(result.Skipped) + len(result.InvalidStartDates),
	}).Info("mixed leave saved")

	return result, nil
}

// saveMixedTuple runs the single-day path for one tuple, resolving a
// needs-confirmation response by resubmitting with the fallback value
// as the override.
func (s *Service) saveMixedTuple(ctx context.Context, t MixedLeaveTuple, notes string) (LeaveDayResult, error) {
	dayInput := LeaveDayInput{
		EmployeeID: t.EmployeeID,
		Date:       t.Date,
		Selection: ledger.LeaveSelection{
			Kind: ledger.LeaveMixed,
			Mixed: &ledger.MixedLeave{
				Paid:    t.Paid,
				Subtype: t.Subtype,
				HalfDay: t.HalfDay,
			},
		},
		Notes: notes,
	}

	res, err := s.SaveLeaveDay(ctx, dayInput)
	if err != nil {
		return res, err
	}
	if !res.NeedsConfirmation {
		return res, nil
	}

	fallback := res.FallbackValue
	if fallback.LessThanOrEqual(decimal.Zero) {
		if res.Payable {
			return res, &ledger.RateMissingError{EmployeeID: t.EmployeeID, Date: t.Date}
		}
		// A zero estimate would fail override validation; for an
		// unpaid day the value never reaches a payment anyway.
		fallback = decimal.NewFromInt(1)
	}
	dayInput.OverrideDailyValue = &fallback
	return s.SaveLeaveDay(ctx, dayInput)
}
