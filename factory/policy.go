/*
Package factory provides JSON to Go policy conversion.

PURPOSE:
  Converts JSON policy definitions into ledger.LeavePolicy and
  ledger.LeavePayPolicy objects. This enables policy configuration
  without code changes - HR can define policies in JSON, and the
  factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify policies
  - Easy integration with admin UI
  - Version control for policy definitions
  - Database storage of policy configs

JSON SCHEMA:
  {
    "id": "org-standard",
    "name": "Standard leave policy",
    "allow_half_day": true,
    "allow_negative_balance": false,
    "negative_floor": -5,
    "annual_quota": 20,
    "carry_in": 0,
    "pay": {
      "default_method": "legal_average",
      "lookback_months": 3,
      "allow_wider_window": true
    }
  }

USAGE:
  factory := NewPolicyFactory()

  // From JSON string
  policy, pay, err := factory.ParsePolicy(jsonString)

  // From a preset (recommended)
  policy, pay, _ := factory.ParsePolicy(StandardPolicyJSON("org-standard", 20))

SEE ALSO:
  - ledger/types.go: Policy type definitions
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of an org leave policy.
type PolicyJSON struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	AllowHalfDay         bool     `json:"allow_half_day"`
	AllowNegativeBalance bool     `json:"allow_negative_balance,omitempty"`
	NegativeFloor        *float64 `json:"negative_floor,omitempty"`
	AnnualQuota          float64  `json:"annual_quota"`
	CarryIn              float64  `json:"carry_in,omitempty"`

	Pay *PayJSON `json:"pay,omitempty"`
}

// PayJSON is the leave-pay section of a policy.
type PayJSON struct {
	DefaultMethod    string `json:"default_method,omitempty"`
	LookbackMonths   int    `json:"lookback_months,omitempty"`
	AllowWiderWindow bool   `json:"allow_wider_window,omitempty"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to Go structs.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into the leave and leave-pay policies.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (ledger.LeavePolicy, ledger.LeavePayPolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return ledger.LeavePolicy{}, ledger.LeavePayPolicy{},
			fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to the ledger policy structs.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (ledger.LeavePolicy, ledger.LeavePayPolicy, error) {
	if pj.AnnualQuota < 0 {
		return ledger.LeavePolicy{}, ledger.LeavePayPolicy{},
			fmt.Errorf("annual_quota must be non-negative, got %v", pj.AnnualQuota)
	}

	policy := ledger.LeavePolicy{
		AllowHalfDay:         pj.AllowHalfDay,
		AllowNegativeBalance: pj.AllowNegativeBalance,
		AnnualQuota:          decimal.NewFromFloat(pj.AnnualQuota),
		CarryIn:              decimal.NewFromFloat(pj.CarryIn),
	}
	if pj.NegativeFloor != nil {
		if *pj.NegativeFloor > 0 {
			return ledger.LeavePolicy{}, ledger.LeavePayPolicy{},
				fmt.Errorf("negative_floor must be zero or negative, got %v", *pj.NegativeFloor)
		}
		policy.NegativeFloor = decimal.NewFromFloat(*pj.NegativeFloor)
	}

	pay := ledger.LeavePayPolicy{
		DefaultMethod:  ledger.PayMethod(""),
		LookbackMonths: ledger.DefaultLookbackMonths,
	}
	if pj.Pay != nil {
		if pj.Pay.DefaultMethod != "" {
			method := ledger.PayMethod(pj.Pay.DefaultMethod)
			switch method {
			case ledger.MethodLegalAverage, ledger.MethodFixedRate, ledger.MethodCurrentRate:
				pay.DefaultMethod = method
			default:
				return ledger.LeavePolicy{}, ledger.LeavePayPolicy{},
					fmt.Errorf("unknown pay method %q", pj.Pay.DefaultMethod)
			}
		}
		if pj.Pay.LookbackMonths > 0 {
			pay.LookbackMonths = pj.Pay.LookbackMonths
		}
		pay.AllowWiderWindow = pj.Pay.AllowWiderWindow
	}

	return policy, pay, nil
}

// ToJSON converts the ledger policy structs back to PolicyJSON.
func (f *PolicyFactory) ToJSON(id, name string, policy ledger.LeavePolicy, pay ledger.LeavePayPolicy) PolicyJSON {
	quota, _ := policy.AnnualQuota.Float64()
	carryIn, _ := policy.CarryIn.Float64()

	pj := PolicyJSON{
		ID:                   id,
		Name:                 name,
		AllowHalfDay:         policy.AllowHalfDay,
		AllowNegativeBalance: policy.AllowNegativeBalance,
		AnnualQuota:          quota,
		CarryIn:              carryIn,
		Pay: &PayJSON{
			DefaultMethod:    string(pay.DefaultMethod),
			LookbackMonths:   pay.LookbackMonths,
			AllowWiderWindow: pay.AllowWiderWindow,
		},
	}
	if !policy.NegativeFloor.IsZero() {
		floor, _ := policy.NegativeFloor.Float64()
		pj.NegativeFloor = &floor
	}
	return pj
}

// =============================================================================
// PRESETS
// =============================================================================

// StandardPolicyJSON builds the common org setup: half days allowed, no
// negative balance, legal-average pay with the default lookback and the
// 12-month widening enabled.
func StandardPolicyJSON(id string, annualQuota float64) string {
	pj := PolicyJSON{
		ID:           id,
		Name:         "Standard leave policy",
		AllowHalfDay: true,
		AnnualQuota:  annualQuota,
		Pay: &PayJSON{
			DefaultMethod:    string(ledger.MethodLegalAverage),
			LookbackMonths:   ledger.DefaultLookbackMonths,
			AllowWiderWindow: true,
		},
	}
	b, _ := json.Marshal(pj)
	return string(b)
}

// FlexiblePolicyJSON allows the balance to run negative down to floor.
func FlexiblePolicyJSON(id string, annualQuota, floor float64) string {
	pj := PolicyJSON{
		ID:                   id,
		Name:                 "Flexible leave policy",
		AllowHalfDay:         true,
		AllowNegativeBalance: true,
		NegativeFloor:        &floor,
		AnnualQuota:          annualQuota,
		Pay: &PayJSON{
			DefaultMethod:    string(ledger.MethodLegalAverage),
			LookbackMonths:   ledger.DefaultLookbackMonths,
			AllowWiderWindow: true,
		},
	}
	b, _ := json.Marshal(pj)
	return string(b)
}

// StrictPolicyJSON disables half days and window widening.
func StrictPolicyJSON(id string, annualQuota float64) string {
	pj := PolicyJSON{
		ID:          id,
		Name:        "Strict leave policy",
		AnnualQuota: annualQuota,
		Pay: &PayJSON{
			DefaultMethod:  string(ledger.MethodLegalAverage),
			LookbackMonths: ledger.DefaultLookbackMonths,
		},
	}
	b, _ := json.Marshal(pj)
	return string(b)
}
