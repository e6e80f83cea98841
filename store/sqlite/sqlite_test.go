package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testDate = ledger.NewDate(2024, time.June, 10)

func workSession(emp ledger.EmployeeID, date ledger.Date) ledger.WorkSession {
	return ledger.WorkSession{
		EmployeeID:       emp,
		Date:             date,
		EntryType:        ledger.EntryHours,
		Hours:            dec("8"),
		RateUsed:         dec("50"),
		TotalPayment:     dec("400"),
		Payable:          true,
		Notes:            "regular day",
		CorrelationToken: "tok-1",
	}
}

// =============================================================================
// WORK SESSIONS
// =============================================================================

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// GIVEN a session with typed metadata
	in := workSession("emp-1", testDate)
	in.Meta = ledger.SessionMeta{
		Method:  ledger.MethodLegalAverage,
		Source:  "history_average",
		Kind:    ledger.KindEmployeePaid,
		Portion: dec("0.5"),
	}

	// WHEN creating and fetching it
	created, err := store.CreateSessions(ctx, []ledger.WorkSession{in})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.NotEmpty(t, created[0].ID)
	assert.Equal(t, "tok-1", created[0].CorrelationToken, "token must be echoed back")

	emp := ledger.EmployeeID("emp-1")
	fetched, err := store.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &emp})
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	// THEN every field survives, metadata included
	got := fetched[0]
	assert.Equal(t, created[0].ID, got.ID)
	assert.Equal(t, ledger.EntryHours, got.EntryType)
	assert.True(t, got.Hours.Equal(dec("8")))
	assert.True(t, got.TotalPayment.Equal(dec("400")))
	assert.True(t, got.Payable)
	assert.Equal(t, "regular day", got.Notes)
	assert.Equal(t, ledger.MethodLegalAverage, got.Meta.Method)
	assert.Equal(t, ledger.KindEmployeePaid, got.Meta.Kind)
	assert.True(t, got.Meta.Portion.Equal(dec("0.5")))
}

func TestSessionQueryFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	days := []ledger.Date{
		ledger.NewDate(2024, time.June, 1),
		ledger.NewDate(2024, time.June, 15),
		ledger.NewDate(2024, time.July, 1),
	}
	for _, d := range days {
		_, err := store.CreateSessions(ctx, []ledger.WorkSession{workSession("emp-1", d)})
		require.NoError(t, err)
	}
	_, err := store.CreateSessions(ctx, []ledger.WorkSession{workSession("emp-2", days[0])})
	require.NoError(t, err)

	emp := ledger.EmployeeID("emp-1")

	t.Run("by exact date", func(t *testing.T) {
		d := days[1]
		got, err := store.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &emp, Date: &d})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Date.Equal(d))
	})

	t.Run("by inclusive range", func(t *testing.T) {
		from := ledger.NewDate(2024, time.June, 1)
		to := ledger.NewDate(2024, time.June, 30)
		got, err := store.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &emp, From: &from, To: &to})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by employee", func(t *testing.T) {
		got, err := store.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &emp})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestSessionUpdateAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.CreateSessions(ctx, []ledger.WorkSession{workSession("emp-1", testDate)})
	require.NoError(t, err)
	id := created[0].ID

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		hours := dec("6")
		payment := dec("300")
		err := store.UpdateSession(ctx, id, ledger.SessionPatch{
			Hours:        &hours,
			TotalPayment: &payment,
		})
		require.NoError(t, err)

		emp := ledger.EmployeeID("emp-1")
		got, err := store.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &emp})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Hours.Equal(dec("6")))
		assert.True(t, got[0].TotalPayment.Equal(dec("300")))
		assert.Equal(t, "regular day", got[0].Notes)
		assert.True(t, got[0].RateUsed.Equal(dec("50")))
	})

	t.Run("soft delete hides the row but keeps it", func(t *testing.T) {
		require.NoError(t, store.SoftDeleteSession(ctx, id))

		emp := ledger.EmployeeID("emp-1")
		visible, err := store.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &emp})
		require.NoError(t, err)
		assert.Empty(t, visible)

		all, err := store.FetchSessions(ctx, ledger.SessionQuery{EmployeeID: &emp, IncludeDeleted: true})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].Deleted)
		assert.NotNil(t, all[0].DeletedAt)
	})

	t.Run("updating a deleted session fails", func(t *testing.T) {
		notes := "late edit"
		err := store.UpdateSession(ctx, id, ledger.SessionPatch{Notes: &notes})
		assert.Error(t, err)
	})
}

func TestUniqueLeaveGuard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	leave := workSession("emp-1", testDate)
	leave.EntryType = ledger.EntryLeaveEmployeePaid

	_, err := store.CreateSessions(ctx, []ledger.WorkSession{leave})
	require.NoError(t, err)

	// A second live employee-paid leave session on the same day trips
	// the partial unique index.
	_, err = store.CreateSessions(ctx, []ledger.WorkSession{leave})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrLeaveConflict))

	// A different leave type on the same day is fine.
	other := leave
	other.EntryType = ledger.EntryLeaveSystemPaid
	_, err = store.CreateSessions(ctx, []ledger.WorkSession{other})
	assert.NoError(t, err)

	// Work sessions are never guarded.
	_, err = store.CreateSessions(ctx, []ledger.WorkSession{workSession("emp-3", testDate)})
	require.NoError(t, err)
	_, err = store.CreateSessions(ctx, []ledger.WorkSession{workSession("emp-3", testDate)})
	assert.NoError(t, err)
}

// =============================================================================
// LEAVE LEDGER
// =============================================================================

func TestLedgerEntries(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sessionID := ledger.SessionID("sess-1")
	entries := []ledger.LeaveLedgerEntry{
		{
			EmployeeID:    "emp-1",
			EffectiveDate: ledger.NewDate(2024, time.May, 1),
			Delta:         dec("-1"),
			LeaveType:     ledger.EngineLeaveType(ledger.KindEmployeePaid),
			WorkSessionID: sessionID,
		},
		{
			EmployeeID:    "emp-1",
			EffectiveDate: ledger.NewDate(2024, time.July, 1),
			Delta:         dec("-0.5"),
			LeaveType:     ledger.EngineLeaveType(ledger.KindEmployeePaid),
			WorkSessionID: "sess-2",
		},
		{
			EmployeeID:    "emp-2",
			EffectiveDate: ledger.NewDate(2024, time.May, 1),
			Delta:         dec("-1"),
			LeaveType:     "grant",
		},
	}
	created, err := store.CreateEntries(ctx, entries)
	require.NoError(t, err)
	require.Len(t, created, 3)

	emp := ledger.EmployeeID("emp-1")

	t.Run("filters by employee and date ceiling", func(t *testing.T) {
		to := ledger.NewDate(2024, time.June, 1)
		got, err := store.FetchEntries(ctx, ledger.EntryQuery{EmployeeID: &emp, To: &to})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Delta.Equal(dec("-1")))
	})

	t.Run("filters by work session", func(t *testing.T) {
		got, err := store.FetchEntries(ctx, ledger.EntryQuery{WorkSessionID: &sessionID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].IsEngineEntry())
	})

	t.Run("hard delete removes rows for good", func(t *testing.T) {
		require.NoError(t, store.DeleteEntries(ctx, []ledger.EntryID{created[0].ID}))
		got, err := store.FetchEntries(ctx, ledger.EntryQuery{EmployeeID: &emp})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestEmployeeDirectory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	method := ledger.MethodFixedRate
	rate := dec("275")
	full := ledger.Employee{
		ID:                "emp-1",
		Name:              "Dana",
		Type:              ledger.EmployeeHourly,
		StartDate:         ledger.NewDate(2023, time.January, 15),
		LeavePayMethod:    &method,
		LeaveFixedDayRate: &rate,
	}
	require.NoError(t, store.SaveEmployee(ctx, full))
	require.NoError(t, store.SaveEmployee(ctx, ledger.Employee{
		ID: "emp-2", Name: "Noa", Type: ledger.EmployeeGlobal,
		StartDate: ledger.NewDate(2022, time.March, 1),
	}))

	t.Run("lookup preserves the optional override fields", func(t *testing.T) {
		got, err := store.Employee(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, "Dana", got.Name)
		assert.Equal(t, "2023-01-15", got.StartDate.String())
		require.NotNil(t, got.LeavePayMethod)
		assert.Equal(t, ledger.MethodFixedRate, *got.LeavePayMethod)
		require.NotNil(t, got.LeaveFixedDayRate)
		assert.True(t, got.LeaveFixedDayRate.Equal(dec("275")))
	})

	t.Run("nil overrides stay nil", func(t *testing.T) {
		got, err := store.Employee(ctx, "emp-2")
		require.NoError(t, err)
		assert.Nil(t, got.LeavePayMethod)
		assert.Nil(t, got.LeaveFixedDayRate)
	})

	t.Run("missing employee", func(t *testing.T) {
		_, err := store.Employee(ctx, "ghost")
		assert.True(t, errors.Is(err, ledger.ErrEmployeeNotFound))
	})

	t.Run("listing", func(t *testing.T) {
		all, err := store.Employees(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("re-save upserts", func(t *testing.T) {
		full.Name = "Dana L."
		require.NoError(t, store.SaveEmployee(ctx, full))
		got, err := store.Employee(ctx, "emp-1")
		require.NoError(t, err)
		assert.Equal(t, "Dana L.", got.Name)
	})
}

func TestServices(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveService(ctx, ledger.Service{
		ID: "svc-1", Name: "Yoga", PaymentModel: ledger.PayPerSession,
	}))
	require.NoError(t, store.SaveService(ctx, ledger.Service{
		ID: "svc-2", Name: "Swim", PaymentModel: ledger.PayPerStudent,
	}))

	services, err := store.Services(ctx)
	require.NoError(t, err)
	require.Len(t, services, 2)

	// Listing is name-ordered.
	assert.Equal(t, "Swim", services[0].Name)

	byID := map[ledger.ServiceID]ledger.Service{}
	for _, svc := range services {
		byID[svc.ID] = svc
	}
	assert.Equal(t, ledger.PayPerSession, byID["svc-1"].PaymentModel)
	assert.Equal(t, ledger.PayPerStudent, byID["svc-2"].PaymentModel)
}

// =============================================================================
// RATES
// =============================================================================

func TestRateForDate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	jan := ledger.NewDate(2024, time.January, 1)
	may := ledger.NewDate(2024, time.May, 1)
	require.NoError(t, store.SaveRate(ctx, "emp-1", "", dec("45"), jan))
	require.NoError(t, store.SaveRate(ctx, "emp-1", "", dec("50"), may))
	require.NoError(t, store.SaveRate(ctx, "emp-1", "svc-1", dec("40"), jan))

	t.Run("newest effective rate at or before the date wins", func(t *testing.T) {
		rate, err := store.RateForDate(ctx, "emp-1", ledger.NewDate(2024, time.June, 1), nil)
		require.NoError(t, err)
		assert.Empty(t, rate.Missing)
		assert.True(t, rate.Value.Equal(dec("50")))

		rate, err = store.RateForDate(ctx, "emp-1", ledger.NewDate(2024, time.March, 1), nil)
		require.NoError(t, err)
		assert.True(t, rate.Value.Equal(dec("45")))
	})

	t.Run("service-scoped rate is preferred", func(t *testing.T) {
		svc := ledger.ServiceID("svc-1")
		rate, err := store.RateForDate(ctx, "emp-1", ledger.NewDate(2024, time.June, 1), &svc)
		require.NoError(t, err)
		assert.True(t, rate.Value.Equal(dec("40")))
	})

	t.Run("unknown service falls back to the employee rate", func(t *testing.T) {
		svc := ledger.ServiceID("svc-none")
		rate, err := store.RateForDate(ctx, "emp-1", ledger.NewDate(2024, time.June, 1), &svc)
		require.NoError(t, err)
		assert.True(t, rate.Value.Equal(dec("50")))
	})

	t.Run("no rate at all reports missing", func(t *testing.T) {
		rate, err := store.RateForDate(ctx, "emp-1", ledger.NewDate(2023, time.June, 1), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, rate.Missing)
	})

	t.Run("unknown employee reports missing", func(t *testing.T) {
		rate, err := store.RateForDate(ctx, "ghost", ledger.NewDate(2024, time.June, 1), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, rate.Missing)
	})
}
