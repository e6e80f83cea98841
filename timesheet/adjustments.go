/*
adjustments.go - Manual payment adjustments

An adjustment is a signed amount credited or debited outside the
hours/leave math: a bonus, a correction, a deduction. Each one is
stored as its own WorkSession with entry type "adjustment" and bypasses
the leave classifier, capacity checks, and the ledger entirely.
*/
package timesheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
)

// Adjustment is one manual credit or debit.
type Adjustment struct {
	Date   ledger.Date
	Amount decimal.Decimal
	Note   string
}

// AdjustmentInput groups adjustments for one employee.
type AdjustmentInput struct {
	EmployeeID  ledger.EmployeeID
	Adjustments []Adjustment
}

// AdjustmentResult reports how many adjustments were stored.
type AdjustmentResult struct {
	Inserted int
}

// SaveAdjustments validates and stores every adjustment, or none. A
// zero amount or a missing note rejects the whole batch before any
// write.
func (s *Service) SaveAdjustments(ctx context.Context, in AdjustmentInput) (AdjustmentResult, error) {
	var result AdjustmentResult
	if len(in.Adjustments) == 0 {
		return result, nil
	}

	if _, err := s.Directory.Employee(ctx, in.EmployeeID); err != nil {
		return result, err
	}

	sessions := make([]ledger.WorkSession, 0, len(in.Adjustments))
	for _, adj := range in.Adjustments {
		if adj.Amount.IsZero() {
			return result, fmt.Errorf("%w: amount is zero on %s", ledger.ErrInvalidAdjustment, adj.Date)
		}
		if strings.TrimSpace(adj.Note) == "" {
			return result, fmt.Errorf("%w: note is required on %s", ledger.ErrInvalidAdjustment, adj.Date)
		}
		sessions = append(sessions, ledger.WorkSession{
			EmployeeID:       in.EmployeeID,
			Date:             adj.Date,
			EntryType:        ledger.EntryAdjustment,
			TotalPayment:     adj.Amount,
			Payable:          true,
			Notes:            adj.Note,
			CorrelationToken: uuid.NewString(),
		})
	}

	created, err := s.Records.CreateSessions(ctx, sessions)
	if err != nil {
		return result, fmt.Errorf("create adjustments: %w", err)
	}
	result.Inserted = len(created)

	s.Log.WithFields(map[string]interface{}{
		"employee_id": in.EmployeeID,
		"inserted":    result.Inserted,
	}).Info("adjustments saved")

	return result, nil
}
