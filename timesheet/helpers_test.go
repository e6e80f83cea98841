package timesheet_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/timesheet"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) ledger.Date { return ledger.NewDate(y, m, d) }

// fixture wires a Service to one in-memory store acting as every
// collaborator at once. The config is kept so a test can rebuild the
// service with one collaborator swapped out.
type fixture struct {
	store *memory.Store
	svc   *timesheet.Service
	cfg   timesheet.Config
}

func newFixture(t *testing.T, policy ledger.LeavePolicy, pay ledger.LeavePayPolicy) *fixture {
	t.Helper()
	store := memory.New()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := timesheet.Config{
		Records:     store,
		Ledger:      store,
		Directory:   store,
		Rates:       store,
		GlobalRates: ledger.WorkdayRateCalculator{WorkingDays: 20},
		Policy:      policy,
		PayPolicy:   pay,
		Log:         log,
	}
	return &fixture{store: store, svc: timesheet.New(cfg), cfg: cfg}
}

// failingCreates wraps the store and fails every session insert.
type failingCreates struct {
	*memory.Store
}

func (f *failingCreates) CreateSessions(ctx context.Context, sessions []ledger.WorkSession) ([]ledger.WorkSession, error) {
	return nil, errors.New("create sessions: disk full")
}

// defaultFixture allows half days and values leave from the current
// rate, so saves never stop to ask for confirmation.
func defaultFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixture(t,
		ledger.LeavePolicy{AllowHalfDay: true, AnnualQuota: dec("20")},
		ledger.LeavePayPolicy{DefaultMethod: ledger.MethodCurrentRate},
	)
}

func (f *fixture) addHourly(id ledger.EmployeeID, rate string) {
	f.store.AddEmployee(ledger.Employee{
		ID:        id,
		Name:      string(id),
		Type:      ledger.EmployeeHourly,
		StartDate: date(2023, time.January, 1),
	})
	f.store.SetRate(id, ledger.Rate{Value: dec(rate)})
}

func (f *fixture) addGlobal(id ledger.EmployeeID, monthlyRate string) {
	f.store.AddEmployee(ledger.Employee{
		ID:        id,
		Name:      string(id),
		Type:      ledger.EmployeeGlobal,
		StartDate: date(2023, time.January, 1),
	})
	f.store.SetRate(id, ledger.Rate{Value: dec(monthlyRate)})
}

func (f *fixture) addInstructor(id ledger.EmployeeID) {
	f.store.AddEmployee(ledger.Employee{
		ID:        id,
		Name:      string(id),
		Type:      ledger.EmployeeInstructor,
		StartDate: date(2023, time.January, 1),
	})
}

// sessionsOn fetches the live sessions of one cell straight from the
// store, bypassing the service.
func (f *fixture) sessionsOn(t *testing.T, emp ledger.EmployeeID, d ledger.Date) []ledger.WorkSession {
	t.Helper()
	q := ledger.SessionQuery{EmployeeID: &emp, Date: &d}
	sessions, err := f.store.FetchSessions(context.Background(), q)
	if err != nil {
		t.Fatalf("fetch sessions: %v", err)
	}
	return sessions
}

func (f *fixture) entriesFor(t *testing.T, emp ledger.EmployeeID) []ledger.LeaveLedgerEntry {
	t.Helper()
	entries, err := f.store.FetchEntries(context.Background(), ledger.EntryQuery{EmployeeID: &emp})
	if err != nil {
		t.Fatalf("fetch entries: %v", err)
	}
	return entries
}
