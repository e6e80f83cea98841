// Package memory provides in-memory store implementations for tests and
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/payroll-engine/ledger"
)

// =============================================================================
// STORE - In-memory RecordStore + LedgerStore + Directory + RateSource
// =============================================================================

// Store holds every collection behind one lock. All reads return deep
// copies; callers never share slices with the store.
type Store struct {
	mu        sync.RWMutex
	sessions  map[ledger.SessionID]ledger.WorkSession
	entries   map[ledger.EntryID]ledger.LeaveLedgerEntry
	employees map[ledger.EmployeeID]ledger.Employee
	services  map[ledger.ServiceID]ledger.Service
	rates     map[rateKey]ledger.Rate
}

type rateKey struct {
	EmployeeID ledger.EmployeeID
	ServiceID  ledger.ServiceID // empty for the employee-level rate
}

func New() *Store {
	return &Store{
		sessions:  make(map[ledger.SessionID]ledger.WorkSession),
		entries:   make(map[ledger.EntryID]ledger.LeaveLedgerEntry),
		employees: make(map[ledger.EmployeeID]ledger.Employee),
		services:  make(map[ledger.ServiceID]ledger.Service),
		rates:     make(map[rateKey]ledger.Rate),
	}
}

// =============================================================================
// SEEDING - test/dev setup helpers
// =============================================================================

func (s *Store) AddEmployee(e ledger.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
}

func (s *Store) AddService(svc ledger.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

// SetRate installs the employee-level rate.
func (s *Store) SetRate(employeeID ledger.EmployeeID, rate ledger.Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rateKey{EmployeeID: employeeID}] = rate
}

// SetServiceRate installs a per-service rate for an instructor.
func (s *Store) SetServiceRate(employeeID ledger.EmployeeID, serviceID ledger.ServiceID, rate ledger.Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rateKey{EmployeeID: employeeID, ServiceID: serviceID}] = rate
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (s *Store) FetchSessions(_ context.Context, q ledger.SessionQuery) ([]ledger.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.WorkSession
	for _, session := range s.sessions {
		if !matchSession(session, q) {
			continue
		}
		result = append(result, session)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func matchSession(session ledger.WorkSession, q ledger.SessionQuery) bool {
	if session.Deleted && !q.IncludeDeleted {
		return false
	}
	if q.EmployeeID != nil && session.EmployeeID != *q.EmployeeID {
		return false
	}
	if q.Date != nil && !session.Date.Equal(*q.Date) {
		return false
	}
	if q.From != nil && session.Date.Before(*q.From) {
		return false
	}
	if q.To != nil && session.Date.After(*q.To) {
		return false
	}
	return true
}

func (s *Store) CreateSessions(_ context.Context, sessions []ledger.WorkSession) ([]ledger.WorkSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]ledger.WorkSession, 0, len(sessions))
	for _, session := range sessions {
		session.ID = ledger.SessionID(uuid.NewString())
		s.sessions[session.ID] = session
		created = append(created, session)
	}
	return created, nil
}

func (s *Store) UpdateSession(_ context.Context, id ledger.SessionID, patch ledger.SessionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	if patch.Hours != nil {
		session.Hours = *patch.Hours
	}
	if patch.SessionsCount != nil {
		session.SessionsCount = *patch.SessionsCount
	}
	if patch.StudentsCount != nil {
		session.StudentsCount = *patch.StudentsCount
	}
	if patch.RateUsed != nil {
		session.RateUsed = *patch.RateUsed
	}
	if patch.TotalPayment != nil {
		session.TotalPayment = *patch.TotalPayment
	}
	if patch.Payable != nil {
		session.Payable = *patch.Payable
	}
	if patch.Notes != nil {
		session.Notes = *patch.Notes
	}
	if patch.Meta != nil {
		session.Meta = *patch.Meta
	}
	s.sessions[id] = session
	return nil
}

func (s *Store) SoftDeleteSession(_ context.Context, id ledger.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	now := time.Now()
	session.Deleted = true
	session.DeletedAt = &now
	s.sessions[id] = session
	return nil
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) CreateEntries(_ context.Context, entries []ledger.LeaveLedgerEntry) ([]ledger.LeaveLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]ledger.LeaveLedgerEntry, 0, len(entries))
	for _, e := range entries {
		e.ID = ledger.EntryID(uuid.NewString())
		s.entries[e.ID] = e
		created = append(created, e)
	}
	return created, nil
}

func (s *Store) DeleteEntries(_ context.Context, ids []ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

func (s *Store) FetchEntries(_ context.Context, q ledger.EntryQuery) ([]ledger.LeaveLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.LeaveLedgerEntry
	for _, e := range s.entries {
		if q.EmployeeID != nil && e.EmployeeID != *q.EmployeeID {
			continue
		}
		if q.To != nil && e.EffectiveDate.After(*q.To) {
			continue
		}
		if q.WorkSessionID != nil && e.WorkSessionID != *q.WorkSessionID {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EffectiveDate.Equal(result[j].EffectiveDate) {
			return result[i].EffectiveDate.Before(result[j].EffectiveDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *Store) Employee(_ context.Context, id ledger.EmployeeID) (ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[id]
	if !ok {
		return ledger.Employee{}, fmt.Errorf("%w: %s", ledger.ErrEmployeeNotFound, id)
	}
	return e, nil
}

func (s *Store) Employees(_ context.Context) ([]ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) Services(_ context.Context) ([]ledger.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Service, 0, len(s.services))
	for _, svc := range s.services {
		result = append(result, svc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// RATE SOURCE
// =============================================================================

// RateForDate returns the service-scoped rate when one exists, falling
// back to the employee-level rate. No rate at all reports Missing.
func (s *Store) RateForDate(_ context.Context, employeeID ledger.EmployeeID, _ ledger.Date, serviceID *ledger.ServiceID) (ledger.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if serviceID != nil {
		if rate, ok := s.rates[rateKey{EmployeeID: employeeID, ServiceID: *serviceID}]; ok {
			return rate, nil
		}
	}
	if rate, ok := s.rates[rateKey{EmployeeID: employeeID}]; ok {
		return rate, nil
	}
	return ledger.Rate{Missing: "no rate configured"}, nil
}
