/*
Package timesheet implements the time-entry transaction orchestrator.

PURPOSE:
  The stateful core of the engine. Each entry point validates a proposed
  day record (work segments, a leave day, a half-day split, a bulk
  mixed-leave batch, or an adjustment) against current persisted state,
  computes payment through the ledger selectors, enforces the capacity
  and mutual-exclusion invariants, and issues the minimal set of
  create/update/soft-delete calls plus the matching ledger writes.

ORDERING:
  Every entry point re-reads persisted state for the target
  (employee, date) immediately before computing payment, rather than
  trusting caller-supplied copies. This narrows - but does not close -
  the race window between two concurrent saves; the record store offers
  no locking primitive, so this is a documented limitation, not a
  serializability guarantee.

WRITE PHASE:
  Once the invariant checks pass, the store calls run to completion in a
  fixed order (creates, updates, soft-deletes, ledger writes) with no
  rollback of earlier calls if a later one fails. Compensation is the
  caller's concern.

SEE ALSO:
  - ledger: Pure classification/valuation/balance layer
  - state.go: Per-cell state machine and request phases
*/
package timesheet

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/payroll-engine/ledger"
)

// Service orchestrates day-record transactions against the stores.
type Service struct {
	Records     ledger.RecordStore
	Ledger      ledger.LedgerStore
	Directory   ledger.Directory
	Rates       ledger.RateSource
	GlobalRates ledger.GlobalRateCalculator
	Policy      ledger.LeavePolicy
	PayPolicy   ledger.LeavePayPolicy
	Log         logrus.FieldLogger
}

// Config carries the collaborators a Service needs.
type Config struct {
	Records     ledger.RecordStore
	Ledger      ledger.LedgerStore
	Directory   ledger.Directory
	Rates       ledger.RateSource
	GlobalRates ledger.GlobalRateCalculator
	Policy      ledger.LeavePolicy
	PayPolicy   ledger.LeavePayPolicy
	Log         logrus.FieldLogger
}

// New builds a Service, filling in the default global-rate calculator
// and a standard logger when none are supplied.
func New(cfg Config) *Service {
	if cfg.GlobalRates == nil {
		cfg.GlobalRates = ledger.WorkdayRateCalculator{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Service{
		Records:     cfg.Records,
		Ledger:      cfg.Ledger,
		Directory:   cfg.Directory,
		Rates:       cfg.Rates,
		GlobalRates: cfg.GlobalRates,
		Policy:      cfg.Policy,
		PayPolicy:   cfg.PayPolicy,
		Log:         cfg.Log,
	}
}

// =============================================================================
// SELECTORS - Read-only entry points
// =============================================================================

// SelectLeaveRemaining replays the employee's ledger at the given date.
func (s *Service) SelectLeaveRemaining(ctx context.Context, employeeID ledger.EmployeeID, date ledger.Date) (ledger.LeaveBalance, error) {
	entries, err := s.Ledger.FetchEntries(ctx, ledger.EntryQuery{EmployeeID: &employeeID, To: &date})
	if err != nil {
		return ledger.LeaveBalance{}, fmt.Errorf("fetch ledger entries: %w", err)
	}
	return ledger.LeaveRemaining(employeeID, date, entries, s.Policy), nil
}

// SelectLeaveDayValue values one full leave day for the employee on the
// given date, returning both the valuation and the resolved pay method.
func (s *Service) SelectLeaveDayValue(ctx context.Context, employeeID ledger.EmployeeID, date ledger.Date) (ledger.DayValue, ledger.ResolvedPayMethod, error) {
	emp, err := s.Directory.Employee(ctx, employeeID)
	if err != nil {
		return ledger.DayValue{}, ledger.ResolvedPayMethod{}, err
	}
	selector, err := s.valueSelector(ctx, employeeID)
	if err != nil {
		return ledger.DayValue{}, ledger.ResolvedPayMethod{}, err
	}
	method := ledger.ResolvePayMethod(emp, s.PayPolicy)
	value, err := selector.LeaveDayValue(ctx, employeeID, date, method)
	return value, method, err
}

// DayRecords returns the non-deleted sessions for an employee across an
// inclusive date range so callers can re-render the grid after a save.
func (s *Service) DayRecords(ctx context.Context, employeeID ledger.EmployeeID, from, to ledger.Date) ([]ledger.WorkSession, error) {
	return s.Records.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &employeeID, From: &from, To: &to})
}

// =============================================================================
// INTERNAL SNAPSHOT HELPERS
// =============================================================================

// valueSelector assembles the immutable history snapshot the value
// selector computes over.
func (s *Service) valueSelector(ctx context.Context, employeeID ledger.EmployeeID) (ledger.ValueSelector, error) {
	employees, err := s.Directory.Employees(ctx)
	if err != nil {
		return ledger.ValueSelector{}, fmt.Errorf("load employees: %w", err)
	}
	services, err := s.Directory.Services(ctx)
	if err != nil {
		return ledger.ValueSelector{}, fmt.Errorf("load services: %w", err)
	}
	sessions, err := s.Records.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &employeeID})
	if err != nil {
		return ledger.ValueSelector{}, fmt.Errorf("load sessions: %w", err)
	}
	return ledger.ValueSelector{
		History:     ledger.History{Employees: employees, Services: services, Sessions: sessions},
		Rates:       s.Rates,
		GlobalRates: s.GlobalRates,
	}, nil
}

// readCell re-reads the current persisted state of one cell.
func (s *Service) readCell(ctx context.Context, employeeID ledger.EmployeeID, date ledger.Date) (cell, error) {
	sessions, err := s.Records.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &employeeID, Date: &date})
	if err != nil {
		return cell{}, fmt.Errorf("read day records: %w", err)
	}
	return newCell(employeeID, date, sessions), nil
}
