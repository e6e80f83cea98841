/*
leaveday.go - Saving a leave day, a half-day split, or a confirmation
resubmission

FLOW:
  1. Classify the selection (and the second half, when present)
  2. Re-read the cell; check mutual exclusion and capacity
  3. Value the full day - an insufficient-history valuation without an
     explicit override stops here and returns a needs-confirmation
     response, writing nothing
  4. Check the balance floor against the proposed ledger delta
  5. Write: creates, updates, ledger deletes, ledger inserts; every
     inserted ledger entry is linked to its created session through the
     store-echoed correlation token

IDEMPOTENT RE-SAVE:
  Re-saving a day updates the matching persisted leave session in place
  and replaces its ledger entry (delete + insert). The ledger never
  accumulates a second entry for the same saved day.
*/
package timesheet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
)

// SecondHalfMode selects what occupies the other half of a split day.
type SecondHalfMode string

const (
	SecondHalfWork  SecondHalfMode = "work"
	SecondHalfLeave SecondHalfMode = "leave"
)

// SecondHalf describes the other half of a half-day save.
type SecondHalf struct {
	Mode SecondHalfMode

	// Segments hold the work entries when Mode is "work".
	Segments []WorkSegment

	// Selection is the second leave kind when Mode is "leave". It must
	// resolve to a different base kind than the primary half.
	Selection *ledger.LeaveSelection
}

// LeaveDayInput is one proposed leave day.
type LeaveDayInput struct {
	EmployeeID ledger.EmployeeID
	Date       ledger.Date
	Selection  ledger.LeaveSelection

	// OverrideDailyValue, when set, is the human-confirmed full-day
	// value; it skips the estimation branch entirely.
	OverrideDailyValue *decimal.Decimal

	SecondHalf *SecondHalf
	Notes      string
}

// LeaveDayResult is either a committed write summary or a
// needs-confirmation response, distinguished by State.Phase.
type LeaveDayResult struct {
	State RequestState

	// Confirmation branch
	NeedsConfirmation bool
	FallbackValue     decimal.Decimal
	Fraction          decimal.Decimal
	Payable           bool

	// Write summary
	Inserted         int
	Updated          int
	LedgerDeletedIDs []ledger.EntryID
	LedgerInserted   int
}

// leavePart is one classified leave half (or the whole day).
type leavePart struct {
	classification ledger.Classification
	existing       *ledger.WorkSession // session to update in place, if any
	token          string
}

// SaveLeaveDay validates and persists a leave day for one cell.
func (s *Service) SaveLeaveDay(ctx context.Context, in LeaveDayInput) (LeaveDayResult, error) {
	rejected := func(kind error, err error) (LeaveDayResult, error) {
		return LeaveDayResult{State: rejectedState(kind)}, err
	}

	emp, err := s.Directory.Employee(ctx, in.EmployeeID)
	if err != nil {
		return rejected(err, err)
	}

	primary, err := ledger.Classify(in.Selection, s.Policy)
	if err != nil {
		return rejected(err, err)
	}

	second, err := s.classifySecondHalf(primary, in.SecondHalf)
	if err != nil {
		return rejected(err, err)
	}

	if in.Date.Before(emp.StartDate) {
		return rejected(ledger.ErrLeaveBeforeStartDate,
			fmt.Errorf("%w: %s starts %s", ledger.ErrLeaveBeforeStartDate, emp.ID, emp.StartDate))
	}

	// Current persisted state, read immediately before computing payment.
	dayCell, err := s.readCell(ctx, in.EmployeeID, in.Date)
	if err != nil {
		return rejected(err, err)
	}

	parts := []leavePart{{classification: primary, token: uuid.NewString()}}
	if second != nil && in.SecondHalf.Mode == SecondHalfLeave {
		parts = append(parts, leavePart{classification: *second, token: uuid.NewString()})
	}
	s.matchExistingLeave(dayCell, parts)

	replaced := map[ledger.SessionID]bool{}
	for _, p := range parts {
		if p.existing != nil {
			replaced[p.existing.ID] = true
		}
	}

	if err := s.checkLeaveOccupancy(dayCell, primary, in.SecondHalf, replaced); err != nil {
		return rejected(err, err)
	}

	proposedPortion := decimal.Zero
	for _, p := range parts {
		proposedPortion = proposedPortion.Add(p.classification.Multiplier)
	}
	existingPortion := dayCell.leavePortion(replaced)
	if !fitsCapacity(existingPortion, proposedPortion) {
		capErr := &ledger.CapacityError{
			EmployeeID: in.EmployeeID,
			Date:       in.Date,
			Existing:   existingPortion,
			Proposed:   proposedPortion,
		}
		return rejected(ledger.ErrLeaveCapacityExceeded, capErr)
	}

	// Full-day value: either the confirmed override or a fresh valuation.
	fullValue, source, confirm, err := s.resolveDayValue(ctx, emp, in, primary)
	if err != nil {
		return rejected(err, err)
	}
	if confirm != nil {
		return *confirm, nil
	}

	// Ledger entries about to be replaced don't count against the floor.
	oldEntryIDs, err := s.replacedEntryIDs(ctx, replaced)
	if err != nil {
		return rejected(err, err)
	}
	if err := s.checkBalanceFloor(ctx, in.EmployeeID, in.Date, parts, oldEntryIDs); err != nil {
		return rejected(err, err)
	}

	return s.writeLeaveDay(ctx, emp, in, parts, fullValue, source, oldEntryIDs, dayCell, replaced)
}

// =============================================================================
// CLASSIFICATION OF THE SECOND HALF
// =============================================================================

func (s *Service) classifySecondHalf(primary ledger.Classification, half *SecondHalf) (*ledger.Classification, error) {
	if half == nil {
		return nil, nil
	}
	if primary.BaseKind != ledger.KindHalfDay {
		return nil, fmt.Errorf("%w: a second half requires a half-day primary", ledger.ErrUnsupportedLeaveKind)
	}

	switch half.Mode {
	case SecondHalfWork:
		if len(half.Segments) == 0 {
			return nil, ledger.ErrHalfDayWorkMissing
		}
		return nil, nil

	case SecondHalfLeave:
		if half.Selection == nil {
			return nil, fmt.Errorf("%w: second-half leave kind missing", ledger.ErrUnsupportedLeaveKind)
		}
		c, err := s.classifyAsHalf(*half.Selection)
		if err != nil {
			return nil, err
		}
		if c.PrimaryKind == primary.PrimaryKind {
			return nil, ledger.ErrIdenticalHalfDayKinds
		}
		return &c, nil

	default:
		return nil, fmt.Errorf("%w: second-half mode %q", ledger.ErrUnsupportedLeaveKind, half.Mode)
	}
}

// classifyAsHalf forces a selection into its half-day form.
func (s *Service) classifyAsHalf(sel ledger.LeaveSelection) (ledger.Classification, error) {
	switch sel.Kind {
	case ledger.LeaveHalfDay:
		return ledger.Classify(sel, s.Policy)
	case ledger.LeaveMixed:
		if sel.Mixed == nil {
			return ledger.Classification{}, fmt.Errorf("%w: mixed selection without parameters", ledger.ErrUnsupportedLeaveKind)
		}
		m := *sel.Mixed
		m.HalfDay = true
		return ledger.Classify(ledger.LeaveSelection{Kind: ledger.LeaveMixed, Mixed: &m}, s.Policy)
	default:
		return ledger.Classify(ledger.LeaveSelection{Kind: ledger.LeaveHalfDay, Primary: sel.Kind}, s.Policy)
	}
}

// =============================================================================
// OCCUPANCY AND MATCHING
// =============================================================================

// matchExistingLeave pairs proposed parts with persisted leave sessions
// of the same entry type and portion, so a re-save updates in place.
func (s *Service) matchExistingLeave(dayCell cell, parts []leavePart) {
	taken := map[ledger.SessionID]bool{}
	for i := range parts {
		want := parts[i].classification.EntryType()
		portion := parts[i].classification.Multiplier
		for _, existing := range dayCell.leaveSessions() {
			if taken[existing.ID] || existing.EntryType != want {
				continue
			}
			if !existing.LeavePortion().Equal(portion) {
				continue
			}
			matched := existing
			parts[i].existing = &matched
			taken[existing.ID] = true
			break
		}
	}
}

// checkLeaveOccupancy enforces work/leave mutual exclusion. A full leave
// day never shares a cell with work; a half day may pair with work
// segments (existing or submitted as the second half).
func (s *Service) checkLeaveOccupancy(dayCell cell, primary ledger.Classification, half *SecondHalf, replaced map[ledger.SessionID]bool) error {
	work := dayCell.workSegments()
	if len(work) == 0 {
		return nil
	}

	fullDay := primary.BaseKind != ledger.KindHalfDay
	bothHalvesLeave := half != nil && half.Mode == SecondHalfLeave
	if fullDay || bothHalvesLeave {
		return &ledger.ConflictError{
			EmployeeID: dayCell.employeeID,
			Date:       dayCell.date,
			Kind:       ledger.ErrLeaveConflict,
			Sessions:   work,
		}
	}
	return nil
}

// =============================================================================
// VALUATION AND FLOOR
// =============================================================================

// resolveDayValue returns the full-day value and its provenance, or a
// needs-confirmation result when history is insufficient and no override
// was supplied.
func (s *Service) resolveDayValue(ctx context.Context, emp ledger.Employee, in LeaveDayInput, primary ledger.Classification) (decimal.Decimal, string, *LeaveDayResult, error) {
	if in.OverrideDailyValue != nil {
		if in.OverrideDailyValue.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, "", nil,
				fmt.Errorf("%w: %s", ledger.ErrInvalidOverride, in.OverrideDailyValue)
		}
		return *in.OverrideDailyValue, "override", nil, nil
	}

	selector, err := s.valueSelector(ctx, emp.ID)
	if err != nil {
		return decimal.Zero, "", nil, err
	}
	method := ledger.ResolvePayMethod(emp, s.PayPolicy)
	dv, err := selector.LeaveDayValue(ctx, emp.ID, in.Date, method)
	if err != nil {
		return decimal.Zero, "", nil, err
	}
	if dv.PreStartDate {
		return decimal.Zero, "", nil,
			fmt.Errorf("%w: %s starts %s", ledger.ErrLeaveBeforeStartDate, emp.ID, emp.StartDate)
	}
	if dv.InsufficientData {
		confirm := &LeaveDayResult{
			State:             awaitingState(),
			NeedsConfirmation: true,
			FallbackValue:     dv.Value,
			Fraction:          primary.Multiplier,
			Payable:           primary.Payable,
		}
		return decimal.Zero, "", confirm, nil
	}

	source := "history_average"
	switch method.Method {
	case ledger.MethodFixedRate:
		source = "fixed_rate"
	case ledger.MethodCurrentRate:
		source = "current_rate"
	}
	return dv.Value, source, nil, nil
}

func (s *Service) replacedEntryIDs(ctx context.Context, replaced map[ledger.SessionID]bool) ([]ledger.EntryID, error) {
	var ids []ledger.EntryID
	for sessionID := range replaced {
		id := sessionID
		entries, err := s.Ledger.FetchEntries(ctx, ledger.EntryQuery{WorkSessionID: &id})
		if err != nil {
			return nil, fmt.Errorf("fetch paired ledger entries: %w", err)
		}
		for _, e := range entries {
			if e.IsEngineEntry() {
				ids = append(ids, e.ID)
			}
		}
	}
	return ids, nil
}

func (s *Service) checkBalanceFloor(ctx context.Context, employeeID ledger.EmployeeID, date ledger.Date, parts []leavePart, excluded []ledger.EntryID) error {
	delta := decimal.Zero
	for _, p := range parts {
		delta = delta.Add(p.classification.LedgerDelta)
	}
	if delta.GreaterThanOrEqual(decimal.Zero) {
		return nil
	}

	entries, err := s.Ledger.FetchEntries(ctx, ledger.EntryQuery{EmployeeID: &employeeID, To: &date})
	if err != nil {
		return fmt.Errorf("fetch ledger entries: %w", err)
	}
	skip := map[ledger.EntryID]bool{}
	for _, id := range excluded {
		skip[id] = true
	}
	kept := entries[:0:0]
	for _, e := range entries {
		if !skip[e.ID] {
			kept = append(kept, e)
		}
	}

	balance := ledger.LeaveRemaining(employeeID, date, kept, s.Policy)
	if !balance.CanConsume(delta, s.Policy) {
		return &ledger.BalanceError{
			EmployeeID: employeeID,
			Date:       date,
			Remaining:  balance.Remaining,
			Delta:      delta,
			Floor:      s.Policy.NegativeFloor,
		}
	}
	return nil
}

// =============================================================================
// WRITE PHASE
// =============================================================================

func (s *Service) writeLeaveDay(ctx context.Context, emp ledger.Employee, in LeaveDayInput, parts []leavePart, fullValue decimal.Decimal, source string, oldEntryIDs []ledger.EntryID, dayCell cell, replaced map[ledger.SessionID]bool) (LeaveDayResult, error) {
	// The request stays a draft until every store call lands; a failed
	// write returns a rejected state, never a committed one.
	result := LeaveDayResult{State: draftState()}
	fail := func(err error) (LeaveDayResult, error) {
		result.State = rejectedState(err)
		return result, err
	}
	method := ledger.ResolvePayMethod(emp, s.PayPolicy)

	// Build the leave sessions.
	var toCreate []ledger.WorkSession
	var toUpdate []struct {
		id      ledger.SessionID
		session ledger.WorkSession
	}
	for _, p := range parts {
		session := s.buildLeaveSession(emp.ID, in, p, fullValue, source, method)
		if p.existing != nil {
			toUpdate = append(toUpdate, struct {
				id      ledger.SessionID
				session ledger.WorkSession
			}{p.existing.ID, session})
		} else {
			toCreate = append(toCreate, session)
		}
	}

	// Work segments ride in the same write batch: the proposed work half
	// plus, for a global employee, the cell's surviving persisted
	// segments. Those must be re-priced here because the single daily
	// payment shrinks by the paid-leave portion this save adds.
	var workSegments []WorkSegment
	if in.SecondHalf != nil && in.SecondHalf.Mode == SecondHalfWork {
		if err := s.validateSegments(emp, in.SecondHalf.Segments); err != nil {
			return fail(err)
		}
		workSegments = in.SecondHalf.Segments
	}
	if emp.Type == ledger.EmployeeGlobal {
		workSegments = append(survivingWorkUpdates(dayCell, workSegments), workSegments...)
	}

	var pricedWork []pricedSegment
	if len(workSegments) > 0 {
		paidHalf := decimal.Zero
		for _, p := range parts {
			if p.classification.Payable {
				paidHalf = paidHalf.Add(p.classification.Multiplier)
			}
		}
		priced, err := s.priceSegments(ctx, emp, in.Date, dayCell, workSegments, replaced, paidHalf)
		if err != nil {
			return fail(err)
		}
		pricedWork = priced
		for _, p := range priced {
			if p.segment.SessionID == nil {
				toCreate = append(toCreate, p.session)
			}
		}
	}

	// Creates first; the store echoes correlation tokens back.
	createdByToken := map[string]ledger.WorkSession{}
	if len(toCreate) > 0 {
		created, err := s.Records.CreateSessions(ctx, toCreate)
		if err != nil {
			return fail(fmt.Errorf("create leave sessions: %w", err))
		}
		if len(created) != len(toCreate) {
			return fail(fmt.Errorf("%w: requested %d, created %d",
				ledger.ErrLedgerLinkFailure, len(toCreate), len(created)))
		}
		for _, c := range created {
			createdByToken[c.CorrelationToken] = c
		}
		result.Inserted = len(created)
	}

	// Updates.
	for _, u := range toUpdate {
		patch := ledger.SessionPatch{
			RateUsed:     &u.session.RateUsed,
			TotalPayment: &u.session.TotalPayment,
			Payable:      &u.session.Payable,
			Notes:        &u.session.Notes,
			Meta:         &u.session.Meta,
		}
		if err := s.Records.UpdateSession(ctx, u.id, patch); err != nil {
			return fail(fmt.Errorf("update leave session %s: %w", u.id, err))
		}
		result.Updated++
	}
	for _, p := range pricedWork {
		if p.segment.SessionID == nil {
			continue
		}
		patch := ledger.SessionPatch{
			Hours:        &p.session.Hours,
			RateUsed:     &p.session.RateUsed,
			TotalPayment: &p.session.TotalPayment,
			Payable:      &p.session.Payable,
			Notes:        &p.session.Notes,
		}
		if err := s.Records.UpdateSession(ctx, *p.segment.SessionID, patch); err != nil {
			return fail(fmt.Errorf("update work segment %s: %w", *p.segment.SessionID, err))
		}
		result.Updated++
	}

	// Replace the paired ledger entries: delete old, insert fresh.
	if len(oldEntryIDs) > 0 {
		if err := s.Ledger.DeleteEntries(ctx, oldEntryIDs); err != nil {
			return fail(fmt.Errorf("delete paired ledger entries: %w", err))
		}
		result.LedgerDeletedIDs = oldEntryIDs
	}

	entries, err := s.buildLedgerEntries(in, parts, createdByToken)
	if err != nil {
		return fail(err)
	}
	if len(entries) > 0 {
		inserted, err := s.Ledger.CreateEntries(ctx, entries)
		if err != nil {
			return fail(fmt.Errorf("insert ledger entries: %w", err))
		}
		result.LedgerInserted = len(inserted)
	}
	result.State = committedState()

	s.Log.WithFields(map[string]interface{}{
		"employee_id":     in.EmployeeID,
		"date":            in.Date.String(),
		"inserted":        result.Inserted,
		"updated":         result.Updated,
		"ledger_inserted": result.LedgerInserted,
	}).Info("leave day saved")

	return result, nil
}

func (s *Service) buildLeaveSession(employeeID ledger.EmployeeID, in LeaveDayInput, p leavePart, fullValue decimal.Decimal, source string, method ledger.ResolvedPayMethod) ledger.WorkSession {
	c := p.classification
	payment := decimal.Zero
	if c.Payable {
		payment = fullValue.Mul(c.Multiplier)
	}
	kind := c.BaseKind
	if kind == ledger.KindHalfDay {
		kind = c.PrimaryKind
	}
	return ledger.WorkSession{
		EmployeeID:   employeeID,
		Date:         in.Date,
		EntryType:    c.EntryType(),
		RateUsed:     fullValue,
		TotalPayment: payment,
		Payable:      c.Payable,
		Notes:        in.Notes,
		Meta: ledger.SessionMeta{
			Method:  method.Method,
			Source:  source,
			Kind:    kind,
			Portion: c.Multiplier,
		},
		CorrelationToken: p.token,
	}
}

// buildLedgerEntries links every leave part to its persisted session id
// through the correlation token. An unmatched token is a link failure.
func (s *Service) buildLedgerEntries(in LeaveDayInput, parts []leavePart, createdByToken map[string]ledger.WorkSession) ([]ledger.LeaveLedgerEntry, error) {
	var entries []ledger.LeaveLedgerEntry
	for _, p := range parts {
		var sessionID ledger.SessionID
		if p.existing != nil {
			sessionID = p.existing.ID
		} else {
			created, ok := createdByToken[p.token]
			if !ok || created.ID == "" {
				return nil, fmt.Errorf("%w: no created session for token", ledger.ErrLedgerLinkFailure)
			}
			sessionID = created.ID
		}
		kind := p.classification.BaseKind
		if kind == ledger.KindHalfDay {
			kind = p.classification.PrimaryKind
		}
		entries = append(entries, ledger.LeaveLedgerEntry{
			EmployeeID:    in.EmployeeID,
			EffectiveDate: in.Date,
			Delta:         p.classification.LedgerDelta,
			LeaveType:     ledger.EngineLeaveType(kind),
			WorkSessionID: sessionID,
			Notes:         in.Notes,
		})
	}
	return entries, nil
}

// survivingWorkUpdates turns the cell's persisted work segments into
// in-place updates so the pricing pass covers them, the primary segment
// first. Segments the proposal already addresses are skipped.
func survivingWorkUpdates(dayCell cell, proposed []WorkSegment) []WorkSegment {
	addressed := map[ledger.SessionID]bool{}
	for _, seg := range proposed {
		if seg.SessionID != nil {
			addressed[*seg.SessionID] = true
		}
	}

	var out []WorkSegment
	for _, existing := range dayCell.workSegments() {
		if addressed[existing.ID] {
			continue
		}
		id := existing.ID
		seg := WorkSegment{
			SessionID:     &id,
			ServiceID:     existing.ServiceID,
			Hours:         existing.Hours,
			SessionsCount: existing.SessionsCount,
			StudentsCount: existing.StudentsCount,
			Notes:         existing.Notes,
		}
		if existing.Meta.Primary {
			out = append([]WorkSegment{seg}, out...)
			continue
		}
		out = append(out, seg)
	}
	return out
}
