/*
value.go - Monetary value of one full leave day

PURPOSE:
  Computes what a single leave day is worth for an employee under the
  resolved pay method. Read-only over the in-memory History snapshot;
  the only collaborators touched are the rate lookup and the global
  daily-rate calculator.

METHODS:
  legal_average: Average TotalPayment over distinct worked days in the
    lookback window ending at the target date. An empty window widens to
    12 months when the policy allows it; with both windows populated the
    higher average wins. No usable history at all marks the result
    InsufficientData and falls back to the current-rate estimate.

  fixed_rate: The employee's configured fixed day rate. Never
    insufficient.

  current_rate: The current-rate estimate, used directly as the
    configured method rather than as a fallback.

DETERMINISM:
  Identical history and the same target date always produce the same
  output. No clock reads; "today" is the caller-supplied date.
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// defaultDailyHours is the hours a full day represents when estimating
// from an hourly or global rate without history.
var defaultDailyHours = decimal.NewFromInt(8)

// DayValue is the outcome of valuing one full leave day.
type DayValue struct {
	Value decimal.Decimal

	// InsufficientData marks a legal-average computation that had no
	// usable history and fell back to the current-rate estimate. The
	// orchestrator turns this into a needs-confirmation response.
	InsufficientData bool

	// PreStartDate marks a target date before the employee's start date.
	// Value is zero and callers must treat the day as non-payable.
	PreStartDate bool
}

// ValueSelector computes leave-day values over an immutable snapshot.
type ValueSelector struct {
	History     History
	Rates       RateSource
	GlobalRates GlobalRateCalculator
}

// LeaveDayValue computes the value of one full leave day for the
// employee on the target date under the resolved method.
func (s ValueSelector) LeaveDayValue(ctx context.Context, employeeID EmployeeID, date Date, method ResolvedPayMethod) (DayValue, error) {
	emp, ok := s.History.Employee(employeeID)
	if !ok {
		return DayValue{}, fmt.Errorf("%w: %s", ErrEmployeeNotFound, employeeID)
	}

	if date.Before(emp.StartDate) {
		return DayValue{Value: decimal.Zero, PreStartDate: true}, nil
	}

	switch method.Method {
	case MethodFixedRate:
		rate := method.FixedRate
		if rate.IsZero() && emp.LeaveFixedDayRate != nil {
			rate = *emp.LeaveFixedDayRate
		}
		return DayValue{Value: rate}, nil

	case MethodCurrentRate:
		value, err := s.currentRateEstimate(ctx, emp, date)
		if err != nil {
			return DayValue{}, err
		}
		return DayValue{Value: value}, nil

	default: // MethodLegalAverage
		return s.averageValue(ctx, emp, date, method)
	}
}

// =============================================================================
// LEGAL AVERAGE
// =============================================================================

func (s ValueSelector) averageValue(ctx context.Context, emp Employee, date Date, method ResolvedPayMethod) (DayValue, error) {
	primary, primaryOK := s.windowAverage(emp.ID, date.AddMonths(-method.LookbackMonths), date)

	if method.AllowWiderWindow {
		wider, widerOK := s.windowAverage(emp.ID, date.AddMonths(-12), date)
		switch {
		case primaryOK && widerOK:
			if wider.GreaterThan(primary) {
				return DayValue{Value: wider}, nil
			}
			return DayValue{Value: primary}, nil
		case widerOK:
			return DayValue{Value: wider}, nil
		}
	}
	if primaryOK {
		return DayValue{Value: primary}, nil
	}

	// No usable history in any window: estimate from the current rate
	// and report the fallback so a human can confirm it.
	value, err := s.currentRateEstimate(ctx, emp, date)
	if err != nil {
		return DayValue{}, err
	}
	return DayValue{Value: value, InsufficientData: true}, nil
}

// windowAverage averages TotalPayment over distinct worked days in
// [from, to). Leave, adjustment, unpaid and deleted records never count.
func (s ValueSelector) windowAverage(employeeID EmployeeID, from, to Date) (decimal.Decimal, bool) {
	total := decimal.Zero
	days := map[string]bool{}

	for _, sess := range s.History.Sessions {
		if sess.EmployeeID != employeeID || sess.Deleted || !sess.Payable {
			continue
		}
		if !sess.EntryType.IsWork() {
			continue
		}
		if sess.Date.Before(from) || sess.Date.AfterOrEqual(to) {
			continue
		}
		total = total.Add(sess.TotalPayment)
		days[sess.Date.Key()] = true
	}

	if len(days) == 0 {
		return decimal.Zero, false
	}
	return total.Div(decimal.NewFromInt(int64(len(days)))), true
}

// =============================================================================
// CURRENT-RATE ESTIMATE
// =============================================================================

func (s ValueSelector) currentRateEstimate(ctx context.Context, emp Employee, date Date) (decimal.Decimal, error) {
	rate, err := s.Rates.RateForDate(ctx, emp.ID, date, nil)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.Missing != "" {
		return decimal.Zero, &RateMissingError{EmployeeID: emp.ID, Date: date, Reason: rate.Missing}
	}

	switch emp.Type {
	case EmployeeHourly:
		return rate.Value.Mul(defaultDailyHours), nil

	case EmployeeInstructor:
		// Per-session rate times the mean sessions per worked day; one
		// session a day when no history exists yet.
		return rate.Value.Mul(s.meanSessionsPerDay(emp.ID, date)), nil

	case EmployeeGlobal:
		value, err := s.GlobalRates.DailyRate(ctx, emp, date, rate.Value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrGlobalRateFailed, err)
		}
		return value, nil

	default:
		return rate.Value.Mul(defaultDailyHours), nil
	}
}

func (s ValueSelector) meanSessionsPerDay(employeeID EmployeeID, before Date) decimal.Decimal {
	sessions := 0
	days := map[string]bool{}
	for _, sess := range s.History.Sessions {
		if sess.EmployeeID != employeeID || sess.Deleted || sess.EntryType != EntrySession {
			continue
		}
		if sess.Date.AfterOrEqual(before) {
			continue
		}
		sessions += sess.SessionsCount
		days[sess.Date.Key()] = true
	}
	if len(days) == 0 || sessions == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(sessions)).Div(decimal.NewFromInt(int64(len(days))))
}
