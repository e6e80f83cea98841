/*
workday.go - Saving a day of work segments

INVARIANTS ENFORCED HERE:
  - Quarter-hour granularity for hourly/global segments
  - Work and non-half leave are mutually exclusive on a day
  - Global employees: exactly one primary segment per day carries the
    daily rate, scaled by the portion of the day not already consumed by
    paid leave; every other segment carries zero. Recomputed from the
    persisted segments plus the proposed batch on every save, never
    assumed from client state.
*/
package timesheet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
)

// WorkSegment is one proposed work entry for a day. SessionID set means
// "update this persisted segment in place".
type WorkSegment struct {
	SessionID     *ledger.SessionID
	ServiceID     *ledger.ServiceID
	Hours         decimal.Decimal
	SessionsCount int
	StudentsCount int
	Notes         string
}

// WorkDayInput is a proposed work day for one (employee, date) cell.
type WorkDayInput struct {
	EmployeeID ledger.EmployeeID
	Date       ledger.Date
	Segments   []WorkSegment

	// RemoveSessionIDs are persisted segments the caller dropped from
	// the form; they are soft-deleted in the same save.
	RemoveSessionIDs []ledger.SessionID
}

// WorkDayResult reports what a work-day save wrote.
type WorkDayResult struct {
	InsertedCount int
	UpdatedCount  int
}

// SaveWorkDay validates and persists a day of work segments.
func (s *Service) SaveWorkDay(ctx context.Context, in WorkDayInput) (WorkDayResult, error) {
	if len(in.Segments) == 0 && len(in.RemoveSessionIDs) == 0 {
		return WorkDayResult{}, nil
	}

	emp, err := s.Directory.Employee(ctx, in.EmployeeID)
	if err != nil {
		return WorkDayResult{}, err
	}

	// Re-read the cell right before computing payment; caller copies of
	// the day may be stale.
	dayCell, err := s.readCell(ctx, in.EmployeeID, in.Date)
	if err != nil {
		return WorkDayResult{}, err
	}

	removed := map[ledger.SessionID]bool{}
	for _, id := range in.RemoveSessionIDs {
		removed[id] = true
	}

	// A non-half leave entry blocks work entirely; a half-day leave
	// shares the cell as the other half of the day.
	if dayCell.hasFullLeave() {
		return WorkDayResult{}, &ledger.ConflictError{
			EmployeeID: in.EmployeeID,
			Date:       in.Date,
			Kind:       ledger.ErrWorkConflict,
			Sessions:   dayCell.leaveSessions(),
		}
	}

	if err := s.validateSegments(emp, in.Segments); err != nil {
		return WorkDayResult{}, err
	}

	priced, err := s.priceSegments(ctx, emp, in.Date, dayCell, in.Segments, removed, decimal.Zero)
	if err != nil {
		return WorkDayResult{}, err
	}

	return s.writeWorkDay(ctx, in, priced, removed)
}

// =============================================================================
// VALIDATION
// =============================================================================

func (s *Service) validateSegments(emp ledger.Employee, segments []WorkSegment) error {
	for _, seg := range segments {
		switch emp.Type {
		case ledger.EmployeeHourly, ledger.EmployeeGlobal:
			if err := checkQuarterHour(seg.Hours); err != nil {
				return err
			}
		case ledger.EmployeeInstructor:
			if seg.ServiceID == nil {
				return ledger.ErrServiceRequired
			}
		}
	}
	return nil
}

// checkQuarterHour enforces hours*100 mod 25 == 0.
func checkQuarterHour(hours decimal.Decimal) error {
	if hours.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: %s", ledger.ErrInvalidHoursIncrement, hours)
	}
	hundredths := hours.Mul(decimal.NewFromInt(100))
	if !hundredths.Mod(decimal.NewFromInt(25)).IsZero() {
		return fmt.Errorf("%w: %s", ledger.ErrInvalidHoursIncrement, hours)
	}
	return nil
}

// =============================================================================
// PRICING
// =============================================================================

// pricedSegment pairs a proposed segment with its computed payment.
type pricedSegment struct {
	segment WorkSegment
	session ledger.WorkSession
}

// extraPaidLeave is the paid-leave portion the current request is about
// to add to the day (half-day saves); it scales a global employee's
// remaining daily rate alongside the already-persisted portions.
func (s *Service) priceSegments(ctx context.Context, emp ledger.Employee, date ledger.Date, dayCell cell, segments []WorkSegment, removed map[ledger.SessionID]bool, extraPaidLeave decimal.Decimal) ([]pricedSegment, error) {
	if emp.Type == ledger.EmployeeGlobal {
		return s.priceGlobalSegments(ctx, emp, date, dayCell, segments, removed, extraPaidLeave)
	}

	priced := make([]pricedSegment, 0, len(segments))
	for _, seg := range segments {
		rate, err := s.lookupRate(ctx, emp.ID, date, seg.ServiceID)
		if err != nil {
			return nil, err
		}

		session := ledger.WorkSession{
			EmployeeID:       emp.ID,
			ServiceID:        seg.ServiceID,
			Date:             date,
			RateUsed:         rate,
			Payable:          true,
			Notes:            seg.Notes,
			CorrelationToken: uuid.NewString(),
		}

		switch emp.Type {
		case ledger.EmployeeHourly:
			session.EntryType = ledger.EntryHours
			session.Hours = seg.Hours
			session.TotalPayment = seg.Hours.Mul(rate)

		case ledger.EmployeeInstructor:
			session.EntryType = ledger.EntrySession
			session.SessionsCount = seg.SessionsCount
			session.StudentsCount = seg.StudentsCount
			session.TotalPayment = s.instructorPayment(ctx, seg, rate)
		}

		priced = append(priced, pricedSegment{segment: seg, session: session})
	}
	return priced, nil
}

func (s *Service) instructorPayment(ctx context.Context, seg WorkSegment, rate decimal.Decimal) decimal.Decimal {
	model := ledger.PayPerSession
	if seg.ServiceID != nil {
		if services, err := s.Directory.Services(ctx); err == nil {
			for _, svc := range services {
				if svc.ID == *seg.ServiceID {
					model = svc.PaymentModel
					break
				}
			}
		}
	}
	if model == ledger.PayPerStudent {
		return rate.Mul(decimal.NewFromInt(int64(seg.StudentsCount)))
	}
	return rate.Mul(decimal.NewFromInt(int64(seg.SessionsCount)))
}

// priceGlobalSegments applies the single-payment invariant: one primary
// segment carries dailyRate * (1 - paid leave portion), the rest zero.
// The primary is the surviving persisted segment already marked primary,
// else the first surviving persisted segment, else the first proposed.
func (s *Service) priceGlobalSegments(ctx context.Context, emp ledger.Employee, date ledger.Date, dayCell cell, segments []WorkSegment, removed map[ledger.SessionID]bool, extraPaidLeave decimal.Decimal) ([]pricedSegment, error) {
	rate, err := s.lookupRate(ctx, emp.ID, date, nil)
	if err != nil {
		return nil, err
	}
	dailyRate, err := s.GlobalRates.DailyRate(ctx, emp, date, rate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrGlobalRateFailed, err)
	}

	scale := decimal.NewFromInt(1).Sub(dayCell.paidLeavePortion(removed)).Sub(extraPaidLeave)
	if scale.IsNegative() {
		scale = decimal.Zero
	}
	payment := dailyRate.Mul(scale)

	// Does a surviving persisted work segment already hold the payment?
	primaryTaken := false
	updatedIDs := map[ledger.SessionID]bool{}
	for _, seg := range segments {
		if seg.SessionID != nil {
			updatedIDs[*seg.SessionID] = true
		}
	}
	for _, existing := range dayCell.workSegments() {
		if removed[existing.ID] || updatedIDs[existing.ID] {
			continue
		}
		primaryTaken = true
		break
	}

	priced := make([]pricedSegment, 0, len(segments))
	for i, seg := range segments {
		session := ledger.WorkSession{
			EmployeeID:       emp.ID,
			ServiceID:        seg.ServiceID,
			Date:             date,
			EntryType:        ledger.EntryHours,
			Hours:            seg.Hours,
			RateUsed:         dailyRate,
			Payable:          true,
			Notes:            seg.Notes,
			CorrelationToken: uuid.NewString(),
		}
		if !primaryTaken && i == 0 {
			session.TotalPayment = payment
			session.Meta = ledger.SessionMeta{Primary: true}
		} else {
			session.TotalPayment = decimal.Zero
		}
		priced = append(priced, pricedSegment{segment: seg, session: session})
	}
	return priced, nil
}

func (s *Service) lookupRate(ctx context.Context, employeeID ledger.EmployeeID, date ledger.Date, serviceID *ledger.ServiceID) (decimal.Decimal, error) {
	rate, err := s.Rates.RateForDate(ctx, employeeID, date, serviceID)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.Missing != "" {
		return decimal.Zero, &ledger.RateMissingError{
			EmployeeID: employeeID,
			Date:       date,
			ServiceID:  serviceID,
			Reason:     rate.Missing,
		}
	}
	return rate.Value, nil
}

// =============================================================================
// WRITE PHASE
// =============================================================================

func (s *Service) writeWorkDay(ctx context.Context, in WorkDayInput, priced []pricedSegment, removed map[ledger.SessionID]bool) (WorkDayResult, error) {
	var toCreate []ledger.WorkSession
	var result WorkDayResult

	for _, p := range priced {
		if p.segment.SessionID == nil {
			toCreate = append(toCreate, p.session)
		}
	}

	if len(toCreate) > 0 {
		created, err := s.Records.CreateSessions(ctx, toCreate)
		if err != nil {
			return result, fmt.Errorf("create work segments: %w", err)
		}
		result.InsertedCount = len(created)
	}

	for _, p := range priced {
		if p.segment.SessionID == nil {
			continue
		}
		patch := ledger.SessionPatch{
			Hours:         &p.session.Hours,
			SessionsCount: &p.session.SessionsCount,
			StudentsCount: &p.session.StudentsCount,
			RateUsed:      &p.session.RateUsed,
			TotalPayment:  &p.session.TotalPayment,
			Payable:       &p.session.Payable,
			Notes:         &p.session.Notes,
			Meta:          &p.session.Meta,
		}
		if err := s.Records.UpdateSession(ctx, *p.segment.SessionID, patch); err != nil {
			return result, fmt.Errorf("update work segment %s: %w", *p.segment.SessionID, err)
		}
		result.UpdatedCount++
	}

	for id := range removed {
		if err := s.Records.SoftDeleteSession(ctx, id); err != nil {
			return result, fmt.Errorf("remove work segment %s: %w", id, err)
		}
		// Engine ledger entries die with the session that owned them.
		sessionID := id
		entries, err := s.Ledger.FetchEntries(ctx, ledger.EntryQuery{WorkSessionID: &sessionID})
		if err != nil {
			return result, fmt.Errorf("fetch paired ledger entries: %w", err)
		}
		var entryIDs []ledger.EntryID
		for _, e := range entries {
			if e.IsEngineEntry() {
				entryIDs = append(entryIDs, e.ID)
			}
		}
		if len(entryIDs) > 0 {
			if err := s.Ledger.DeleteEntries(ctx, entryIDs); err != nil {
				return result, fmt.Errorf("delete paired ledger entries: %w", err)
			}
		}
	}

	s.Log.WithFields(map[string]interface{}{
		"employee_id": in.EmployeeID,
		"date":        in.Date.String(),
		"inserted":    result.InsertedCount,
		"updated":     result.UpdatedCount,
	}).Info("work day saved")

	return result, nil
}
