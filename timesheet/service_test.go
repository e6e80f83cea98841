package timesheet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/timesheet"
)

func TestSelectLeaveDayValue(t *testing.T) {
	ctx := context.Background()

	t.Run("reports the value and the resolved method", func(t *testing.T) {
		f := defaultFixture(t)
		f.addHourly("emp-h", "50")

		v, method, err := f.svc.SelectLeaveDayValue(ctx, "emp-h", date(2024, time.June, 12))
		require.NoError(t, err)
		assert.True(t, v.Value.Equal(dec("400")))
		assert.Equal(t, ledger.MethodCurrentRate, method.Method)
		assert.Equal(t, ledger.SourceOrgDefault, method.Source)
	})

	t.Run("employee override wins over the org default", func(t *testing.T) {
		f := defaultFixture(t)
		fixed := ledger.MethodFixedRate
		rate := dec("275")
		f.store.AddEmployee(ledger.Employee{
			ID: "emp-f", Type: ledger.EmployeeHourly,
			StartDate:         date(2023, time.January, 1),
			LeavePayMethod:    &fixed,
			LeaveFixedDayRate: &rate,
		})

		v, method, err := f.svc.SelectLeaveDayValue(ctx, "emp-f", date(2024, time.June, 12))
		require.NoError(t, err)
		assert.Equal(t, ledger.MethodFixedRate, method.Method)
		assert.Equal(t, ledger.SourceOverride, method.Source)
		assert.True(t, v.Value.Equal(dec("275")))
	})
}

func TestDayRecords(t *testing.T) {
	ctx := context.Background()

	f := defaultFixture(t)
	f.addHourly("emp-h", "50")

	for _, d := range []ledger.Date{
		date(2024, time.June, 3),
		date(2024, time.June, 10),
		date(2024, time.July, 1),
	} {
		_, err := f.svc.SaveWorkDay(ctx, timesheet.WorkDayInput{
			EmployeeID: "emp-h",
			Date:       d,
			Segments:   []timesheet.WorkSegment{{Hours: dec("4")}},
		})
		require.NoError(t, err)
	}

	// The range is inclusive on both ends.
	records, err := f.svc.DayRecords(ctx, "emp-h",
		date(2024, time.June, 1), date(2024, time.June, 30))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-06-03", records[0].Date.String())
	assert.Equal(t, "2024-06-10", records[1].Date.String())
}
