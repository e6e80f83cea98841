/*
paymethod.go - Pay-calculation method resolution

PURPOSE:
  Resolves which pay-calculation method applies to an employee: the
  per-employee override when present and recognized, otherwise the org
  default, otherwise a hard-coded system default. Purely a precedence
  resolution, no I/O.
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAY METHODS
// =============================================================================

// PayMethod names a leave-day valuation method.
type PayMethod string

const (
	// MethodLegalAverage averages historical work-day payments over a
	// lookback window.
	MethodLegalAverage PayMethod = "legal_average"

	// MethodFixedRate uses the employee's configured fixed day rate.
	MethodFixedRate PayMethod = "fixed_rate"

	// MethodCurrentRate values the day from the employee's current rate
	// and type-specific daily formula, with no averaging.
	MethodCurrentRate PayMethod = "current_rate"
)

// systemDefaultMethod applies when neither the employee override nor the
// org default names a recognized method.
const systemDefaultMethod = MethodLegalAverage

func recognizedMethod(m PayMethod) bool {
	switch m {
	case MethodLegalAverage, MethodFixedRate, MethodCurrentRate:
		return true
	}
	return false
}

// =============================================================================
// RESOLUTION
// =============================================================================

// MethodSource records which precedence level produced the resolution.
type MethodSource string

const (
	SourceOverride      MethodSource = "override"
	SourceOrgDefault    MethodSource = "org_default"
	SourceSystemDefault MethodSource = "system_default"
)

// ResolvedPayMethod is a method plus the parameters it runs with.
type ResolvedPayMethod struct {
	Method           PayMethod
	Source           MethodSource
	LookbackMonths   int
	AllowWiderWindow bool
	FixedRate        decimal.Decimal
}

// Describe returns a human-readable summary of the resolution.
func (r ResolvedPayMethod) Describe() string {
	switch r.Method {
	case MethodLegalAverage:
		return fmt.Sprintf("average of worked days over the last %d months (%s)", r.LookbackMonths, r.Source)
	case MethodFixedRate:
		return fmt.Sprintf("fixed day rate %s (%s)", r.FixedRate, r.Source)
	case MethodCurrentRate:
		return fmt.Sprintf("current rate times the daily formula (%s)", r.Source)
	default:
		return string(r.Method)
	}
}

// ResolvePayMethod applies the override > org default > system default
// precedence and fills in the method parameters.
func ResolvePayMethod(emp Employee, policy LeavePayPolicy) ResolvedPayMethod {
	lookback := policy.LookbackMonths
	if lookback <= 0 {
		lookback = DefaultLookbackMonths
	}

	resolved := ResolvedPayMethod{
		Method:           systemDefaultMethod,
		Source:           SourceSystemDefault,
		LookbackMonths:   lookback,
		AllowWiderWindow: policy.AllowWiderWindow,
	}

	if recognizedMethod(policy.DefaultMethod) {
		resolved.Method = policy.DefaultMethod
		resolved.Source = SourceOrgDefault
	}

	if emp.LeavePayMethod != nil && recognizedMethod(*emp.LeavePayMethod) {
		resolved.Method = *emp.LeavePayMethod
		resolved.Source = SourceOverride
	}

	if resolved.Method == MethodFixedRate && emp.LeaveFixedDayRate != nil {
		resolved.FixedRate = *emp.LeaveFixedDayRate
	}

	return resolved
}
