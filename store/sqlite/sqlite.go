/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (RecordStore, LedgerStore,
  Directory, RateSource) using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.RecordStore: Work-session persistence (soft delete only)
  ledger.LedgerStore: Leave-balance delta persistence
  ledger.Directory:   Employee and service lookup
  ledger.RateSource:  Rate-for-date lookup

SOFT DELETE ENFORCEMENT:
  work_sessions rows are never removed; deletion sets the deleted flag
  and timestamp. leave_ledger rows ARE hard-deleted, but only by the
  orchestrator in lockstep with the session edit that owned them.

KEY TABLES:
  work_sessions: Day records (work, leave, adjustments)
  leave_ledger:  Signed leave-balance deltas
  employees:     Directory records
  services:      Instructor services
  rates:         Employee and per-service rates

INDEXES:
  - idx_sessions_employee_date: Cell reads (hot path)
  - idx_ledger_employee_date:   Balance replay
  - idx_ledger_session:          Ledger/session pairing lookups
  - idx_unique_full_leave:       Guards duplicate non-deleted leave
    sessions of the same type on one day (last line of defense behind
    the orchestrator's own checks)

METADATA:
  SessionMeta is a typed struct in-core; it crosses this boundary as
  versioned JSON via ledger.EncodeSessionMeta / DecodeSessionMeta.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Work sessions (day records; soft delete only)
	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		service_id TEXT,
		date TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		hours TEXT NOT NULL DEFAULT '0',
		sessions_count INTEGER NOT NULL DEFAULT 0,
		students_count INTEGER NOT NULL DEFAULT 0,
		rate_used TEXT NOT NULL DEFAULT '0',
		total_payment TEXT NOT NULL DEFAULT '0',
		payable BOOLEAN NOT NULL DEFAULT TRUE,
		notes TEXT,
		metadata_json TEXT,
		correlation_token TEXT,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_employee_date
		ON work_sessions(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_sessions_date
		ON work_sessions(date);

	-- Guard duplicate non-deleted leave sessions of one type per day.
	-- The orchestrator checks this too; the index is the last line of
	-- defense under concurrent writers.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_full_leave
		ON work_sessions(employee_id, date, entry_type)
		WHERE deleted = FALSE
		  AND entry_type IN ('leave_employee_paid', 'leave_system_paid', 'leave_unpaid');

	-- Leave ledger (signed balance deltas)
	CREATE TABLE IF NOT EXISTS leave_ledger (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		delta TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		work_session_id TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_employee_date
		ON leave_ledger(employee_id, effective_date);
	CREATE INDEX IF NOT EXISTS idx_ledger_session
		ON leave_ledger(work_session_id) WHERE work_session_id IS NOT NULL;

	-- Employees (directory)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		leave_pay_method TEXT,
		leave_fixed_day_rate TEXT,
		created_at TEXT NOT NULL
	);

	-- Services (instructor rate scoping)
	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payment_model TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Rates (employee-level; service-scoped when service_id is set)
	CREATE TABLE IF NOT EXISTS rates (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		service_id TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(employee_id, service_id, effective_from)
	);

	CREATE INDEX IF NOT EXISTS idx_rates_employee
		ON rates(employee_id, service_id, effective_from DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (ledger.RecordStore interface)
// =============================================================================

const sessionColumns = `id, employee_id, service_id, date, entry_type, hours,
	sessions_count, students_count, rate_used, total_payment, payable,
	notes, metadata_json, correlation_token, deleted, deleted_at`

// FetchSessions returns sessions matching the query.
func (s *Store) FetchSessions(ctx context.Context, q ledger.SessionQuery) ([]ledger.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + sessionColumns + " FROM work_sessions WHERE 1=1"
	var args []any

	if q.EmployeeID != nil {
		query += " AND employee_id = ?"
		args = append(args, string(*q.EmployeeID))
	}
	if q.Date != nil {
		query += " AND date = ?"
		args = append(args, q.Date.String())
	}
	if q.From != nil {
		query += " AND date >= ?"
		args = append(args, q.From.String())
	}
	if q.To != nil {
		query += " AND date <= ?"
		args = append(args, q.To.String())
	}
	if !q.IncludeDeleted {
		query += " AND deleted = FALSE"
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ledger.WorkSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// CreateSessions persists new sessions atomically, assigning ids and
// echoing correlation tokens back.
func (s *Store) CreateSessions(ctx context.Context, sessions []ledger.WorkSession) ([]ledger.WorkSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO work_sessions
		(id, employee_id, service_id, date, entry_type, hours, sessions_count,
		 students_count, rate_used, total_payment, payable, notes,
		 metadata_json, correlation_token, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?)
	`

	created := make([]ledger.WorkSession, 0, len(sessions))
	for _, session := range sessions {
		session.ID = ledger.SessionID(uuid.NewString())

		metaJSON := ""
		if !session.Meta.IsZero() {
			encoded, err := ledger.EncodeSessionMeta(session.Meta)
			if err != nil {
				return nil, fmt.Errorf("failed to encode session metadata: %w", err)
			}
			metaJSON = encoded
		}

		var serviceID *string
		if session.ServiceID != nil {
			v := string(*session.ServiceID)
			serviceID = &v
		}

		_, err := sqlTx.ExecContext(ctx, query,
			string(session.ID),
			string(session.EmployeeID),
			serviceID,
			session.Date.String(),
			string(session.EntryType),
			session.Hours.String(),
			session.SessionsCount,
			session.StudentsCount,
			session.RateUsed.String(),
			session.TotalPayment.String(),
			session.Payable,
			session.Notes,
			nullString(metaJSON),
			nullString(session.CorrelationToken),
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return nil, fmt.Errorf("%w: %s on %s", ledger.ErrLeaveConflict,
					session.EntryType, session.Date)
			}
			return nil, fmt.Errorf("failed to insert session: %w", err)
		}
		created = append(created, session)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return created, nil
}

// UpdateSession applies a partial update in place.
func (s *Store) UpdateSession(ctx context.Context, id ledger.SessionID, patch ledger.SessionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sets []string
	var args []any

	if patch.Hours != nil {
		sets = append(sets, "hours = ?")
		args = append(args, patch.Hours.String())
	}
	if patch.SessionsCount != nil {
		sets = append(sets, "sessions_count = ?")
		args = append(args, *patch.SessionsCount)
	}
	if patch.StudentsCount != nil {
		sets = append(sets, "students_count = ?")
		args = append(args, *patch.StudentsCount)
	}
	if patch.RateUsed != nil {
		sets = append(sets, "rate_used = ?")
		args = append(args, patch.RateUsed.String())
	}
	if patch.TotalPayment != nil {
		sets = append(sets, "total_payment = ?")
		args = append(args, patch.TotalPayment.String())
	}
	if patch.Payable != nil {
		sets = append(sets, "payable = ?")
		args = append(args, *patch.Payable)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	if patch.Meta != nil {
		encoded, err := ledger.EncodeSessionMeta(*patch.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode session metadata: %w", err)
		}
		sets = append(sets, "metadata_json = ?")
		args = append(args, encoded)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, string(id))
	query := "UPDATE work_sessions SET " + strings.Join(sets, ", ") + " WHERE id = ? AND deleted = FALSE"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// SoftDeleteSession flags a session deleted with a timestamp.
func (s *Store) SoftDeleteSession(ctx context.Context, id ledger.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE work_sessions SET deleted = TRUE, deleted_at = ? WHERE id = ? AND deleted = FALSE",
		time.Now().UTC().Format(time.RFC3339), string(id),
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

func scanSession(rows *sql.Rows) (ledger.WorkSession, error) {
	var (
		session          ledger.WorkSession
		id               string
		employeeID       string
		serviceID        sql.NullString
		date             string
		entryType        string
		hours            string
		rateUsed         string
		totalPayment     string
		notes            sql.NullString
		metadataJSON     sql.NullString
		correlationToken sql.NullString
		deletedAt        sql.NullString
	)

	err := rows.Scan(
		&id, &employeeID, &serviceID, &date, &entryType, &hours,
		&session.SessionsCount, &session.StudentsCount, &rateUsed,
		&totalPayment, &session.Payable, &notes, &metadataJSON,
		&correlationToken, &session.Deleted, &deletedAt,
	)
	if err != nil {
		return session, fmt.Errorf("failed to scan session: %w", err)
	}

	session.ID = ledger.SessionID(id)
	session.EmployeeID = ledger.EmployeeID(employeeID)
	if serviceID.Valid && serviceID.String != "" {
		svc := ledger.ServiceID(serviceID.String)
		session.ServiceID = &svc
	}
	session.Date, err = ledger.ParseDate(date)
	if err != nil {
		return session, fmt.Errorf("failed to parse session date: %w", err)
	}
	session.EntryType = ledger.EntryType(entryType)
	session.Hours = mustDecimal(hours)
	session.RateUsed = mustDecimal(rateUsed)
	session.TotalPayment = mustDecimal(totalPayment)
	session.Notes = notes.String
	session.CorrelationToken = correlationToken.String
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339, deletedAt.String)
		session.DeletedAt = &t
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		meta, err := ledger.DecodeSessionMeta(metadataJSON.String)
		if err != nil {
			return session, fmt.Errorf("failed to decode session metadata: %w", err)
		}
		session.Meta = meta
	}

	return session, nil
}

// =============================================================================
// LEDGER STORE (ledger.LedgerStore interface)
// =============================================================================

// CreateEntries persists leave-ledger entries atomically, assigning ids.
func (s *Store) CreateEntries(ctx context.Context, entries []ledger.LeaveLedgerEntry) ([]ledger.LeaveLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO leave_ledger
		(id, employee_id, effective_date, delta, leave_type, work_session_id, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	created := make([]ledger.LeaveLedgerEntry, 0, len(entries))
	for _, e := range entries {
		e.ID = ledger.EntryID(uuid.NewString())
		_, err := sqlTx.ExecContext(ctx, query,
			string(e.ID),
			string(e.EmployeeID),
			e.EffectiveDate.String(),
			e.Delta.String(),
			e.LeaveType,
			nullString(string(e.WorkSessionID)),
			e.Notes,
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		created = append(created, e)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return created, nil
}

// DeleteEntries hard-deletes the given entries.
func (s *Store) DeleteEntries(ctx context.Context, ids []ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, id := range ids {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM leave_ledger WHERE id = ?", string(id)); err != nil {
			return fmt.Errorf("failed to delete ledger entry: %w", err)
		}
	}
	return sqlTx.Commit()
}

// FetchEntries returns ledger entries matching the query.
func (s *Store) FetchEntries(ctx context.Context, q ledger.EntryQuery) ([]ledger.LeaveLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, employee_id, effective_date, delta, leave_type, work_session_id, notes
		FROM leave_ledger WHERE 1=1`
	var args []any

	if q.EmployeeID != nil {
		query += " AND employee_id = ?"
		args = append(args, string(*q.EmployeeID))
	}
	if q.To != nil {
		query += " AND effective_date <= ?"
		args = append(args, q.To.String())
	}
	if q.WorkSessionID != nil {
		query += " AND work_session_id = ?"
		args = append(args, string(*q.WorkSessionID))
	}
	query += " ORDER BY effective_date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.LeaveLedgerEntry
	for rows.Next() {
		var (
			e             ledger.LeaveLedgerEntry
			id            string
			employeeID    string
			effectiveDate string
			delta         string
			workSessionID sql.NullString
			notes         sql.NullString
		)
		if err := rows.Scan(&id, &employeeID, &effectiveDate, &delta, &e.LeaveType, &workSessionID, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.ID = ledger.EntryID(id)
		e.EmployeeID = ledger.EmployeeID(employeeID)
		e.EffectiveDate, err = ledger.ParseDate(effectiveDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ledger date: %w", err)
		}
		e.Delta = mustDecimal(delta)
		e.WorkSessionID = ledger.SessionID(workSessionID.String)
		e.Notes = notes.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// DIRECTORY (ledger.Directory interface)
// =============================================================================

// SaveEmployee inserts or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp ledger.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var method *string
	if emp.LeavePayMethod != nil {
		v := string(*emp.LeavePayMethod)
		method = &v
	}
	var fixedRate *string
	if emp.LeaveFixedDayRate != nil {
		v := emp.LeaveFixedDayRate.String()
		fixedRate = &v
	}

	query := `
		INSERT INTO employees (id, name, type, start_date, leave_pay_method, leave_fixed_day_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			start_date = excluded.start_date,
			leave_pay_method = excluded.leave_pay_method,
			leave_fixed_day_rate = excluded.leave_fixed_day_rate
	`
	_, err := s.db.ExecContext(ctx, query,
		string(emp.ID), emp.Name, string(emp.Type), emp.StartDate.String(),
		method, fixedRate, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Employee retrieves an employee by id.
func (s *Store) Employee(ctx context.Context, id ledger.EmployeeID) (ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, type, start_date, leave_pay_method, leave_fixed_day_rate FROM employees WHERE id = ?",
		string(id),
	)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return ledger.Employee{}, fmt.Errorf("%w: %s", ledger.ErrEmployeeNotFound, id)
	}
	return emp, err
}

// Employees returns all employees.
func (s *Store) Employees(ctx context.Context) ([]ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, type, start_date, leave_pay_method, leave_fixed_day_rate FROM employees ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []ledger.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (ledger.Employee, error) {
	var (
		emp       ledger.Employee
		id        string
		empType   string
		startDate string
		method    sql.NullString
		fixedRate sql.NullString
	)
	if err := row.Scan(&id, &emp.Name, &empType, &startDate, &method, &fixedRate); err != nil {
		return emp, err
	}
	emp.ID = ledger.EmployeeID(id)
	emp.Type = ledger.EmployeeType(empType)
	var err error
	emp.StartDate, err = ledger.ParseDate(startDate)
	if err != nil {
		return emp, fmt.Errorf("failed to parse start date: %w", err)
	}
	if method.Valid && method.String != "" {
		m := ledger.PayMethod(method.String)
		emp.LeavePayMethod = &m
	}
	if fixedRate.Valid && fixedRate.String != "" {
		v := mustDecimal(fixedRate.String)
		emp.LeaveFixedDayRate = &v
	}
	return emp, nil
}

// SaveService inserts or updates a service.
func (s *Store) SaveService(ctx context.Context, svc ledger.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO services (id, name, payment_model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			payment_model = excluded.payment_model
	`
	_, err := s.db.ExecContext(ctx, query,
		string(svc.ID), svc.Name, string(svc.PaymentModel),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Services returns all services.
func (s *Store) Services(ctx context.Context) ([]ledger.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, payment_model FROM services ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []ledger.Service
	for rows.Next() {
		var svc ledger.Service
		var id, model string
		if err := rows.Scan(&id, &svc.Name, &model); err != nil {
			return nil, err
		}
		svc.ID = ledger.ServiceID(id)
		svc.PaymentModel = ledger.PaymentModel(model)
		services = append(services, svc)
	}
	return services, rows.Err()
}

// =============================================================================
// RATE SOURCE (ledger.RateSource interface)
// =============================================================================

// SaveRate installs a rate effective from a date. An empty serviceID
// stores the employee-level rate.
func (s *Store) SaveRate(ctx context.Context, employeeID ledger.EmployeeID, serviceID ledger.ServiceID, value decimal.Decimal, from ledger.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rates (id, employee_id, service_id, value, effective_from, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, service_id, effective_from) DO UPDATE SET
			value = excluded.value
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), string(employeeID), string(serviceID),
		value.String(), from.String(), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RateForDate returns the newest rate effective on or before the date,
// preferring a service-scoped rate over the employee-level one.
func (s *Store) RateForDate(ctx context.Context, employeeID ledger.EmployeeID, date ledger.Date, serviceID *ledger.ServiceID) (ledger.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT value FROM rates
		WHERE employee_id = ? AND service_id = ? AND effective_from <= ?
		ORDER BY effective_from DESC
		LIMIT 1
	`

	if serviceID != nil {
		var value string
		err := s.db.QueryRowContext(ctx, query,
			string(employeeID), string(*serviceID), date.String()).Scan(&value)
		if err == nil {
			return ledger.Rate{Value: mustDecimal(value)}, nil
		}
		if err != sql.ErrNoRows {
			return ledger.Rate{}, err
		}
	}

	var value string
	err := s.db.QueryRowContext(ctx, query,
		string(employeeID), "", date.String()).Scan(&value)
	if err == sql.ErrNoRows {
		return ledger.Rate{Missing: "no rate configured"}, nil
	}
	if err != nil {
		return ledger.Rate{}, err
	}
	return ledger.Rate{Value: mustDecimal(value)}, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"work_sessions", "leave_ledger", "rates", "services", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
