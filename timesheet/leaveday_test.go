package timesheet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/timesheet"
)

var leaveDate = date(2024, time.June, 12)

func saveLeave(t *testing.T, f *fixture, in timesheet.LeaveDayInput) timesheet.LeaveDayResult {
	t.Helper()
	res, err := f.svc.SaveLeaveDay(context.Background(), in)
	require.NoError(t, err)
	return res
}

// =============================================================================
// FULL DAYS
// =============================================================================

func TestSaveLeaveDayFullDay(t *testing.T) {
	ctx := context.Background()

	t.Run("employee-paid day pays the day value and consumes quota", func(t *testing.T) {
		// GIVEN an hourly employee at 50/h valued by current rate
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		// WHEN saving an employee-paid day
		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})

		// THEN the request committed one session and one ledger entry
		assert.Equal(t, timesheet.PhaseCommitted, res.State.Phase)
		assert.Equal(t, 1, res.Inserted)
		assert.Equal(t, 1, res.LedgerInserted)
		assert.False(t, res.NeedsConfirmation)

		sessions := f.sessionsOn(t, "emp-h", leaveDate)
		require.Len(t, sessions, 1)
		s := sessions[0]
		assert.Equal(t, ledger.EntryLeaveEmployeePaid, s.EntryType)
		assert.True(t, s.Payable)
		assert.True(t, s.TotalPayment.Equal(dec("400")), "payment %s", s.TotalPayment)
		assert.Equal(t, "current_rate", s.Meta.Source)
		assert.Equal(t, ledger.KindEmployeePaid, s.Meta.Kind)
		assert.True(t, s.Meta.Portion.Equal(dec("1")))

		entries := f.entriesFor(t, "emp-h")
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Delta.Equal(dec("-1")))
		assert.Equal(t, "auto:employee_paid", entries[0].LeaveType)
		assert.Equal(t, s.ID, entries[0].WorkSessionID)

		// AND the balance reflects the consumption
		bal, err := f.svc.SelectLeaveRemaining(ctx, "emp-h", leaveDate)
		require.NoError(t, err)
		assert.True(t, bal.Used.Equal(dec("1")))
		assert.True(t, bal.Remaining.Equal(dec("19")))
	})

	t.Run("system-paid day pays without touching the quota", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveSystemPaid},
		})

		sessions := f.sessionsOn(t, "emp-h", leaveDate)
		require.Len(t, sessions, 1)
		assert.True(t, sessions[0].TotalPayment.Equal(dec("400")))

		// The entry exists for pairing, with a zero delta.
		entries := f.entriesFor(t, "emp-h")
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Delta.IsZero())

		bal, err := f.svc.SelectLeaveRemaining(context.Background(), "emp-h", leaveDate)
		require.NoError(t, err)
		assert.True(t, bal.Used.IsZero())
	})

	t.Run("unpaid day records zero payment", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveVacationUnpaid},
		})

		sessions := f.sessionsOn(t, "emp-h", leaveDate)
		require.Len(t, sessions, 1)
		assert.Equal(t, ledger.EntryLeaveUnpaid, sessions[0].EntryType)
		assert.False(t, sessions[0].Payable)
		assert.True(t, sessions[0].TotalPayment.IsZero())
	})

	t.Run("leave before the start date is rejected", func(t *testing.T) {
		f := defaultFixture(t)
		f.store.AddEmployee(ledger.Employee{
			ID: "emp-new", Type: ledger.EmployeeHourly,
			StartDate: date(2024, time.July, 1),
		})
		f.store.SetRate("emp-new", ledger.Rate{Value: dec("50")})

		res, err := f.svc.SaveLeaveDay(context.Background(), timesheet.LeaveDayInput{
			EmployeeID: "emp-new",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})
		assert.True(t, errors.Is(err, ledger.ErrLeaveBeforeStartDate))
		assert.Equal(t, timesheet.PhaseRejected, res.State.Phase)
	})
}

// =============================================================================
// MUTUAL EXCLUSION AND CAPACITY
// =============================================================================

func TestSaveLeaveDayOccupancy(t *testing.T) {
	ctx := context.Background()

	t.Run("a worked day blocks a full leave day", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		_, err := f.svc.SaveWorkDay(ctx, timesheet.WorkDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Segments:   []timesheet.WorkSegment{{Hours: dec("8")}},
		})
		require.NoError(t, err)

		res, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrLeaveConflict))
		assert.Equal(t, timesheet.PhaseRejected, res.State.Phase)

		// Nothing was written.
		assert.Empty(t, f.entriesFor(t, "emp-h"))
	})

	t.Run("a half day tolerates existing work on the other half", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		_, err := f.svc.SaveWorkDay(ctx, timesheet.WorkDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Segments:   []timesheet.WorkSegment{{Hours: dec("4")}},
		})
		require.NoError(t, err)

		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
		})
		assert.Equal(t, timesheet.PhaseCommitted, res.State.Phase)
	})

	t.Run("portions over a full day are rejected, never clamped", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
		})

		// A full system-paid day on top of the half exceeds 1.0.
		res, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveSystemPaid},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrLeaveCapacityExceeded))
		assert.Equal(t, timesheet.PhaseRejected, res.State.Phase)

		var capErr *ledger.CapacityError
		require.True(t, errors.As(err, &capErr))
		assert.True(t, capErr.Existing.Equal(dec("0.5")))
		assert.True(t, capErr.Proposed.Equal(dec("1")))
	})

	t.Run("half days need the policy to allow them", func(t *testing.T) {
		f := newFixture(t,
			ledger.LeavePolicy{AllowHalfDay: false, AnnualQuota: dec("20")},
			ledger.LeavePayPolicy{DefaultMethod: ledger.MethodCurrentRate},
		)
		f.addHourly("emp-h", "50")

		_, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
		})
		assert.True(t, errors.Is(err, ledger.ErrHalfDayDisabled))
	})
}

// =============================================================================
// HALF-DAY SPLITS
// =============================================================================

func TestSaveLeaveDaySplits(t *testing.T) {
	ctx := context.Background()

	t.Run("two leave halves of different kinds", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
			SecondHalf: &timesheet.SecondHalf{
				Mode:      timesheet.SecondHalfLeave,
				Selection: &ledger.LeaveSelection{Kind: ledger.LeaveSystemPaid},
			},
		})
		assert.Equal(t, 2, res.Inserted)
		assert.Equal(t, 2, res.LedgerInserted)

		sessions := f.sessionsOn(t, "emp-h", leaveDate)
		require.Len(t, sessions, 2)
		for _, s := range sessions {
			assert.True(t, s.Meta.Portion.Equal(dec("0.5")))
			// Each half pays half the day value.
			assert.True(t, s.TotalPayment.Equal(dec("200")), "payment %s", s.TotalPayment)
		}

		// Only the employee-paid half consumed quota.
		bal, err := f.svc.SelectLeaveRemaining(ctx, "emp-h", leaveDate)
		require.NoError(t, err)
		assert.True(t, bal.Used.Equal(dec("0.5")))
	})

	t.Run("split totals are order independent", func(t *testing.T) {
		// GIVEN two identical employees
		f := defaultFixture(t)
		f.addHourly("emp-a", "50")
		f.addHourly("emp-b", "50")

		// WHEN one saves employee_paid+system_paid and the other the
		// reversed pair
		saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-a",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
			SecondHalf: &timesheet.SecondHalf{
				Mode:      timesheet.SecondHalfLeave,
				Selection: &ledger.LeaveSelection{Kind: ledger.LeaveSystemPaid},
			},
		})
		saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-b",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveSystemPaid,
			},
			SecondHalf: &timesheet.SecondHalf{
				Mode:      timesheet.SecondHalfLeave,
				Selection: &ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
			},
		})

		// THEN both days pay the same total
		sum := func(emp ledger.EmployeeID) decimal.Decimal {
			total := decimal.Zero
			for _, s := range f.sessionsOn(t, emp, leaveDate) {
				total = total.Add(s.TotalPayment)
			}
			return total
		}
		a, b := sum("emp-a"), sum("emp-b")
		assert.True(t, a.Equal(b), "totals %s vs %s", a, b)
		assert.True(t, a.Equal(dec("400")), "total %s", a)
	})

	t.Run("two halves of the same kind must be a full day", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		_, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
			SecondHalf: &timesheet.SecondHalf{
				Mode:      timesheet.SecondHalfLeave,
				Selection: &ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
			},
		})
		assert.True(t, errors.Is(err, ledger.ErrIdenticalHalfDayKinds))
	})

	t.Run("a second half requires a half-day primary", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		_, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
			SecondHalf: &timesheet.SecondHalf{
				Mode:      timesheet.SecondHalfLeave,
				Selection: &ledger.LeaveSelection{Kind: ledger.LeaveSystemPaid},
			},
		})
		assert.True(t, errors.Is(err, ledger.ErrUnsupportedLeaveKind))
	})

	t.Run("declared work half without segments", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		_, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
			SecondHalf: &timesheet.SecondHalf{Mode: timesheet.SecondHalfWork},
		})
		assert.True(t, errors.Is(err, ledger.ErrHalfDayWorkMissing))
	})

	t.Run("global half leave plus half work pays exactly one daily rate", func(t *testing.T) {
		// GIVEN a global employee at 6000/month (300/day)
		f := defaultFixture(t)
		f.addGlobal("emp-g", "6000")

		// WHEN saving half employee-paid leave with a work second half
		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-g",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
			SecondHalf: &timesheet.SecondHalf{
				Mode:     timesheet.SecondHalfWork,
				Segments: []timesheet.WorkSegment{{Hours: dec("4")}},
			},
		})
		assert.Equal(t, 2, res.Inserted)

		// THEN leave pays 150, work pays the remaining 150
		sessions := f.sessionsOn(t, "emp-g", leaveDate)
		require.Len(t, sessions, 2)
		total := decimal.Zero
		for _, s := range sessions {
			total = total.Add(s.TotalPayment)
			if s.EntryType.IsLeave() {
				assert.True(t, s.TotalPayment.Equal(dec("150")), "leave %s", s.TotalPayment)
			} else {
				assert.True(t, s.TotalPayment.Equal(dec("150")), "work %s", s.TotalPayment)
			}
		}
		assert.True(t, total.Equal(dec("300")), "day total %s", total)
	})

	t.Run("half leave onto a persisted global work day re-prices it", func(t *testing.T) {
		// GIVEN a global employee whose work day is already persisted at
		// the full daily rate
		f := defaultFixture(t)
		f.addGlobal("emp-g", "6000")

		_, err := f.svc.SaveWorkDay(ctx, timesheet.WorkDayInput{
			EmployeeID: "emp-g",
			Date:       leaveDate,
			Segments:   []timesheet.WorkSegment{{Hours: dec("4")}},
		})
		require.NoError(t, err)
		work := f.sessionsOn(t, "emp-g", leaveDate)
		require.Len(t, work, 1)
		require.True(t, work[0].TotalPayment.Equal(dec("300")))

		// WHEN half employee-paid leave lands on the same day afterwards
		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-g",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveEmployeePaid,
			},
		})
		assert.Equal(t, 1, res.Inserted)
		assert.Equal(t, 1, res.Updated)

		// THEN the persisted segment shrank to the unconsumed half and
		// the day still pays exactly one daily rate
		sessions := f.sessionsOn(t, "emp-g", leaveDate)
		require.Len(t, sessions, 2)
		total := decimal.Zero
		for _, s := range sessions {
			total = total.Add(s.TotalPayment)
			if s.EntryType.IsWork() {
				assert.True(t, s.TotalPayment.Equal(dec("150")), "work %s", s.TotalPayment)
			} else {
				assert.True(t, s.TotalPayment.Equal(dec("150")), "leave %s", s.TotalPayment)
			}
		}
		assert.True(t, total.Equal(dec("300")), "day total %s", total)
	})

	t.Run("unpaid half leave leaves a global work day's payment alone", func(t *testing.T) {
		f := defaultFixture(t)
		f.addGlobal("emp-g", "6000")

		_, err := f.svc.SaveWorkDay(ctx, timesheet.WorkDayInput{
			EmployeeID: "emp-g",
			Date:       leaveDate,
			Segments:   []timesheet.WorkSegment{{Hours: dec("4")}},
		})
		require.NoError(t, err)

		saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-g",
			Date:       leaveDate,
			Selection: ledger.LeaveSelection{
				Kind:    ledger.LeaveHalfDay,
				Primary: ledger.LeaveVacationUnpaid,
			},
		})

		// Unpaid leave consumes no paid portion, so the full daily rate
		// stays on the work segment.
		total := decimal.Zero
		for _, s := range f.sessionsOn(t, "emp-g", leaveDate) {
			total = total.Add(s.TotalPayment)
		}
		assert.True(t, total.Equal(dec("300")), "day total %s", total)
	})
}

// =============================================================================
// WRITE FAILURES
// =============================================================================

func TestSaveLeaveDayWriteFailure(t *testing.T) {
	ctx := context.Background()

	f := defaultFixture(t)
	f.addHourly("emp-h", "50")

	cfg := f.cfg
	cfg.Records = &failingCreates{Store: f.store}
	broken := timesheet.New(cfg)

	res, err := broken.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
		EmployeeID: "emp-h",
		Date:       leaveDate,
		Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
	})

	// A failed store write must not surface as a committed request.
	require.Error(t, err)
	assert.Equal(t, timesheet.PhaseRejected, res.State.Phase)
}

// =============================================================================
// CONFIRMATION ROUND-TRIP
// =============================================================================

func TestSaveLeaveDayConfirmation(t *testing.T) {
	ctx := context.Background()

	averagingFixture := func(t *testing.T) *fixture {
		return newFixture(t,
			ledger.LeavePolicy{AllowHalfDay: true, AnnualQuota: dec("20")},
			ledger.LeavePayPolicy{DefaultMethod: ledger.MethodLegalAverage, LookbackMonths: 3},
		)
	}

	t.Run("insufficient history stops before writing anything", func(t *testing.T) {
		// GIVEN an averaging policy and an employee with no worked days
		f := averagingFixture(t)
		f.addHourly("emp-h", "50")

		// WHEN saving an employee-paid day
		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})

		// THEN the call asks for confirmation with the fallback estimate
		assert.Equal(t, timesheet.PhaseAwaitingConfirmation, res.State.Phase)
		assert.True(t, res.NeedsConfirmation)
		assert.True(t, res.FallbackValue.Equal(dec("400")))
		assert.True(t, res.Fraction.Equal(dec("1")))
		assert.True(t, res.Payable)

		// AND nothing reached the stores
		assert.Empty(t, f.sessionsOn(t, "emp-h", leaveDate))
		assert.Empty(t, f.entriesFor(t, "emp-h"))
	})

	t.Run("resubmitting with the confirmed value commits", func(t *testing.T) {
		f := averagingFixture(t)
		f.addHourly("emp-h", "50")

		confirmed := dec("380")
		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID:         "emp-h",
			Date:               leaveDate,
			Selection:          ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
			OverrideDailyValue: &confirmed,
		})
		assert.Equal(t, timesheet.PhaseCommitted, res.State.Phase)

		sessions := f.sessionsOn(t, "emp-h", leaveDate)
		require.Len(t, sessions, 1)
		assert.True(t, sessions[0].TotalPayment.Equal(dec("380")))
		assert.Equal(t, "override", sessions[0].Meta.Source)
	})

	t.Run("history makes the averaging path commit directly", func(t *testing.T) {
		f := averagingFixture(t)
		f.addHourly("emp-h", "50")

		// Two worked days inside the window.
		for _, d := range []ledger.Date{leaveDate.AddDays(-10), leaveDate.AddDays(-9)} {
			_, err := f.svc.SaveWorkDay(ctx, timesheet.WorkDayInput{
				EmployeeID: "emp-h",
				Date:       d,
				Segments:   []timesheet.WorkSegment{{Hours: dec("6")}},
			})
			require.NoError(t, err)
		}

		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})
		assert.Equal(t, timesheet.PhaseCommitted, res.State.Phase)

		sessions := f.sessionsOn(t, "emp-h", leaveDate)
		require.Len(t, sessions, 1)
		// Both days paid 300, so the average is 300.
		assert.True(t, sessions[0].TotalPayment.Equal(dec("300")))
		assert.Equal(t, "history_average", sessions[0].Meta.Source)
	})

	t.Run("non-positive overrides are invalid", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		zero := decimal.Zero
		_, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID:         "emp-h",
			Date:               leaveDate,
			Selection:          ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
			OverrideDailyValue: &zero,
		})
		assert.True(t, errors.Is(err, ledger.ErrInvalidOverride))
	})
}

// =============================================================================
// BALANCE FLOOR
// =============================================================================

func TestSaveLeaveDayBalanceFloor(t *testing.T) {
	ctx := context.Background()

	t.Run("landing exactly at zero is rejected when negatives are off", func(t *testing.T) {
		f := newFixture(t,
			ledger.LeavePolicy{AllowHalfDay: true, AnnualQuota: dec("2")},
			ledger.LeavePayPolicy{DefaultMethod: ledger.MethodCurrentRate},
		)
		f.addHourly("emp-h", "50")

		// First day: 2 -> 1, fine.
		saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})

		// Second day would land exactly at zero.
		res, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate.AddDays(1),
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrLeaveBalanceExceeded))
		assert.Equal(t, timesheet.PhaseRejected, res.State.Phase)

		var balErr *ledger.BalanceError
		require.True(t, errors.As(err, &balErr))
		assert.True(t, balErr.Remaining.Equal(dec("1")))
		assert.True(t, balErr.Delta.Equal(dec("-1")))
	})

	t.Run("a negative floor admits overdraw down to the floor", func(t *testing.T) {
		f := newFixture(t,
			ledger.LeavePolicy{
				AllowHalfDay:         true,
				AllowNegativeBalance: true,
				NegativeFloor:        dec("-1"),
				AnnualQuota:          dec("1"),
			},
			ledger.LeavePayPolicy{DefaultMethod: ledger.MethodCurrentRate},
		)
		f.addHourly("emp-h", "50")

		// 1 -> 0 -> -1 both allowed, -1 -> -2 is not.
		for i := 0; i < 2; i++ {
			saveLeave(t, f, timesheet.LeaveDayInput{
				EmployeeID: "emp-h",
				Date:       leaveDate.AddDays(i),
				Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
			})
		}
		_, err := f.svc.SaveLeaveDay(ctx, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate.AddDays(2),
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		})
		assert.True(t, errors.Is(err, ledger.ErrLeaveBalanceExceeded))
	})

	t.Run("unpaid leave never hits the floor", func(t *testing.T) {
		f := newFixture(t,
			ledger.LeavePolicy{AnnualQuota: dec("0")},
			ledger.LeavePayPolicy{DefaultMethod: ledger.MethodCurrentRate},
		)
		f.addHourly("emp-h", "50")

		res := saveLeave(t, f, timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveHolidayUnpaid},
		})
		assert.Equal(t, timesheet.PhaseCommitted, res.State.Phase)
	})
}

// =============================================================================
// IDEMPOTENT RE-SAVE
// =============================================================================

func TestSaveLeaveDayResave(t *testing.T) {
	t.Run("re-saving updates in place and replaces the ledger entry", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		in := timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		}
		first := saveLeave(t, f, in)
		assert.Equal(t, 1, first.Inserted)
		firstEntries := f.entriesFor(t, "emp-h")
		require.Len(t, firstEntries, 1)

		// WHEN saving the identical day again
		second := saveLeave(t, f, in)

		// THEN the session was updated, not duplicated
		assert.Equal(t, 0, second.Inserted)
		assert.Equal(t, 1, second.Updated)
		assert.Len(t, f.sessionsOn(t, "emp-h", leaveDate), 1)

		// AND the ledger holds exactly one fresh entry
		secondEntries := f.entriesFor(t, "emp-h")
		require.Len(t, secondEntries, 1)
		assert.NotEqual(t, firstEntries[0].ID, secondEntries[0].ID)
		assert.Equal(t, firstEntries[0].WorkSessionID, secondEntries[0].WorkSessionID)

		// AND the balance did not double-charge
		bal, err := f.svc.SelectLeaveRemaining(context.Background(), "emp-h", leaveDate)
		require.NoError(t, err)
		assert.True(t, bal.Used.Equal(dec("1")))
	})

	t.Run("re-save near the floor does not count its own old entry", func(t *testing.T) {
		// GIVEN a quota of 2 with one day already consumed
		f := newFixture(t,
			ledger.LeavePolicy{AnnualQuota: dec("2")},
			ledger.LeavePayPolicy{DefaultMethod: ledger.MethodCurrentRate},
		)
		f.addHourly("emp-h", "50")

		in := timesheet.LeaveDayInput{
			EmployeeID: "emp-h",
			Date:       leaveDate,
			Selection:  ledger.LeaveSelection{Kind: ledger.LeaveEmployeePaid},
		}
		saveLeave(t, f, in)

		// WHEN re-saving the same day
		res := saveLeave(t, f, in)

		// THEN the save passes: replacing -1 with -1 changes nothing
		assert.Equal(t, timesheet.PhaseCommitted, res.State.Phase)
	})
}
