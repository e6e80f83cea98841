package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/ledger"
)

func TestSessionMetaCodec(t *testing.T) {
	t.Run("empty metadata encodes to the empty string", func(t *testing.T) {
		s, err := ledger.EncodeSessionMeta(ledger.SessionMeta{})
		require.NoError(t, err)
		assert.Equal(t, "", s)

		m, err := ledger.DecodeSessionMeta("")
		require.NoError(t, err)
		assert.True(t, m.IsZero())
	})

	t.Run("round trip preserves every field", func(t *testing.T) {
		in := ledger.SessionMeta{
			Method:  ledger.MethodLegalAverage,
			Source:  "history_average",
			Kind:    ledger.KindEmployeePaid,
			Portion: dec("0.5"),
			Primary: true,
		}
		s, err := ledger.EncodeSessionMeta(in)
		require.NoError(t, err)

		out, err := ledger.DecodeSessionMeta(s)
		require.NoError(t, err)
		assert.Equal(t, in.Method, out.Method)
		assert.Equal(t, in.Source, out.Source)
		assert.Equal(t, in.Kind, out.Kind)
		assert.True(t, in.Portion.Equal(out.Portion))
		assert.True(t, out.Primary)
	})

	t.Run("the stored form is versioned JSON", func(t *testing.T) {
		s, err := ledger.EncodeSessionMeta(ledger.SessionMeta{Source: "override"})
		require.NoError(t, err)
		assert.Contains(t, s, `"v":1`)
	})

	t.Run("unknown versions fail instead of guessing", func(t *testing.T) {
		_, err := ledger.DecodeSessionMeta(`{"v":99,"source":"override"}`)
		assert.Error(t, err)
	})

	t.Run("garbage fails loudly", func(t *testing.T) {
		_, err := ledger.DecodeSessionMeta("{not json")
		assert.Error(t, err)
	})
}

func TestLeavePortionDefaults(t *testing.T) {
	// GIVEN a leave session persisted before portions were recorded
	s := ledger.WorkSession{EntryType: ledger.EntryLeaveSystemPaid}

	// THEN a zero portion reads as a full day
	assert.True(t, s.LeavePortion().Equal(dec("1")))

	// AND half-day sessions report their stored fraction
	s.Meta.Portion = dec("0.5")
	assert.True(t, s.LeavePortion().Equal(dec("0.5")))

	// AND deleted or non-leave sessions consume nothing
	s.Deleted = true
	assert.True(t, s.LeavePortion().IsZero())
	work := ledger.WorkSession{EntryType: ledger.EntryHours}
	assert.True(t, work.LeavePortion().IsZero())
}

func TestEngineEntryTagging(t *testing.T) {
	e := ledger.LeaveLedgerEntry{LeaveType: ledger.EngineLeaveType(ledger.KindEmployeePaid)}
	assert.True(t, e.IsEngineEntry())
	assert.Equal(t, "auto:employee_paid", e.LeaveType)

	manual := ledger.LeaveLedgerEntry{LeaveType: "grant"}
	assert.False(t, manual.IsEngineEntry())
}
