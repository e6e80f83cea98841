/*
classify.go - Leave-kind classification

PURPOSE:
  Maps a raw leave selection (kind token, optional primary half-kind,
  optional mixed triple) to a normalized base kind, whether it is
  payable, the per-day signed ledger delta, and the day multiplier.
  Pure functions, no I/O.

CLASSIFICATION RULES:
  employee_paid    payable, delta -1,   multiplier 1 (consumes quota)
  system_paid      payable, delta  0,   multiplier 1
  vacation_unpaid  unpaid,  delta  0,   multiplier 1
  holiday_unpaid   unpaid,  delta  0,   multiplier 1
  half_day         multiplier 0.5; payable iff its primary half-kind is
                   payable; delta -0.5 iff the primary consumes quota
  mixed            sugar - resolves {paid, subtype, half_day} into one of
                   the kinds above before computing delta/multiplier; it
                   is never persisted as a fifth kind

SEE ALSO:
  - value.go: Monetary value of the classified day
  - timesheet: Applies multiplier and delta during saves
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE SELECTION - Raw caller input
// =============================================================================

// Leave-type tokens accepted from callers.
const (
	LeaveEmployeePaid   = "employee_paid"
	LeaveSystemPaid     = "system_paid"
	LeaveVacationUnpaid = "vacation_unpaid"
	LeaveHolidayUnpaid  = "holiday_unpaid"
	LeaveHalfDay        = "half_day"
	LeaveMixed          = "mixed"
)

// LeaveSubtype distinguishes the two mixed-leave families.
type LeaveSubtype string

const (
	SubtypeVacation LeaveSubtype = "vacation"
	SubtypeHoliday  LeaveSubtype = "holiday"
)

// MixedLeave is the triple supplied alongside the "mixed" token.
type MixedLeave struct {
	Paid    bool
	Subtype LeaveSubtype
	HalfDay bool
}

// LeaveSelection is the raw leave choice a caller submits.
type LeaveSelection struct {
	// Kind is one of the leave-type tokens above.
	Kind string

	// Primary is the full-day token the half day resolves to.
	// Required when Kind is "half_day".
	Primary string

	// Mixed is required when Kind is "mixed".
	Mixed *MixedLeave
}

// =============================================================================
// CLASSIFICATION - Normalized output
// =============================================================================

// BaseKind is a normalized, persistable leave kind.
type BaseKind string

const (
	KindEmployeePaid BaseKind = "employee_paid"
	KindSystemPaid   BaseKind = "system_paid"
	KindUnpaid       BaseKind = "unpaid"
	KindHalfDay      BaseKind = "half_day"
)

// Classification is the normalized result of classifying a selection.
type Classification struct {
	BaseKind BaseKind

	// PrimaryKind is the resolved primary half-kind for half days; for
	// full days it equals the base kind.
	PrimaryKind BaseKind

	Payable     bool
	LedgerDelta decimal.Decimal
	Multiplier  decimal.Decimal
}

// EntryType maps the classification to the persisted session entry type.
func (c Classification) EntryType() EntryType {
	kind := c.BaseKind
	if kind == KindHalfDay {
		kind = c.PrimaryKind
	}
	switch kind {
	case KindEmployeePaid:
		return EntryLeaveEmployeePaid
	case KindSystemPaid:
		return EntryLeaveSystemPaid
	default:
		return EntryLeaveUnpaid
	}
}

var (
	one  = decimal.NewFromInt(1)
	half = decimal.RequireFromString("0.5")
)

// Classify normalizes a leave selection under the given policy.
func Classify(sel LeaveSelection, policy LeavePolicy) (Classification, error) {
	switch sel.Kind {
	case LeaveEmployeePaid:
		return Classification{
			BaseKind:    KindEmployeePaid,
			PrimaryKind: KindEmployeePaid,
			Payable:     true,
			LedgerDelta: one.Neg(),
			Multiplier:  one,
		}, nil

	case LeaveSystemPaid:
		return Classification{
			BaseKind:    KindSystemPaid,
			PrimaryKind: KindSystemPaid,
			Payable:     true,
			LedgerDelta: decimal.Zero,
			Multiplier:  one,
		}, nil

	case LeaveVacationUnpaid, LeaveHolidayUnpaid:
		return Classification{
			BaseKind:    KindUnpaid,
			PrimaryKind: KindUnpaid,
			Payable:     false,
			LedgerDelta: decimal.Zero,
			Multiplier:  one,
		}, nil

	case LeaveHalfDay:
		return classifyHalfDay(sel.Primary, policy)

	case LeaveMixed:
		return classifyMixed(sel.Mixed, policy)

	default:
		return Classification{}, fmt.Errorf("%w: %q", ErrUnsupportedLeaveKind, sel.Kind)
	}
}

func classifyHalfDay(primary string, policy LeavePolicy) (Classification, error) {
	if !policy.AllowHalfDay {
		return Classification{}, ErrHalfDayDisabled
	}
	switch primary {
	case LeaveHalfDay, LeaveMixed:
		// A half day's primary must itself be a full-day kind.
		return Classification{}, fmt.Errorf("%w: half-day primary %q", ErrUnsupportedLeaveKind, primary)
	}
	base, err := Classify(LeaveSelection{Kind: primary}, policy)
	if err != nil {
		return Classification{}, err
	}

	c := Classification{
		BaseKind:    KindHalfDay,
		PrimaryKind: base.BaseKind,
		Payable:     base.Payable,
		LedgerDelta: decimal.Zero,
		Multiplier:  half,
	}
	if base.BaseKind == KindEmployeePaid {
		c.LedgerDelta = half.Neg()
	}
	return c, nil
}

func classifyMixed(m *MixedLeave, policy LeavePolicy) (Classification, error) {
	if m == nil {
		return Classification{}, fmt.Errorf("%w: mixed selection without parameters", ErrUnsupportedLeaveKind)
	}
	resolved, err := resolveMixedToken(*m)
	if err != nil {
		return Classification{}, err
	}
	if m.HalfDay {
		return classifyHalfDay(resolved, policy)
	}
	return Classify(LeaveSelection{Kind: resolved}, policy)
}

// resolveMixedToken reduces the mixed triple to a full-day token.
// Paid vacation draws on the employee's quota; a paid holiday is covered
// by the org and does not.
func resolveMixedToken(m MixedLeave) (string, error) {
	switch m.Subtype {
	case SubtypeVacation:
		if m.Paid {
			return LeaveEmployeePaid, nil
		}
		return LeaveVacationUnpaid, nil
	case SubtypeHoliday:
		if m.Paid {
			return LeaveSystemPaid, nil
		}
		return LeaveHolidayUnpaid, nil
	default:
		return "", fmt.Errorf("%w: mixed subtype %q", ErrUnsupportedLeaveKind, m.Subtype)
	}
}
