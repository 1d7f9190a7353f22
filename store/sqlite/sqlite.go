/*
Package sqlite provides the SQLite-backed implementation of nrega.Store.

PURPOSE:
  Persists the four related tables plus the extended-metrics extension.
  The composite uniqueness of (district, fin year, month) is enforced
  here, at the storage layer, not just in application logic — concurrent
  reconciliation transactions converge on the same rows instead of
  duplicating them.

KEY TABLES:
  states:              code PK, name unique (NOCASE)
  districts:           code PK, state_code FK, (state_code, name) unique
  fin_years:           label PK, derived start/end years
  performance_records: natural key UNIQUE(district_code, fin_year, month)
  extended_metrics:    record_id UNIQUE FK, insert-only

UPSERTS:
  INSERT ... ON CONFLICT DO UPDATE for states/districts/records,
  ON CONFLICT DO NOTHING for fin years and extended metrics. The stored
  score/grade columns are a denormalized cache; every read path overwrites
  them (see nrega.Rescore).

WAL MODE:
  Opened with WAL and foreign_keys=on: readers don't block, a single
  writer at a time, FK violations fail the transaction.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gramstat/nrega-insights/nrega"
)

// Store implements nrega.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes ingest transactions; reads go direct
}

// New creates a SQLite store with the given database path.
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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS states (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS districts (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE,
		state_code TEXT NOT NULL REFERENCES states(code),
		UNIQUE(state_code, name)
	);

	CREATE INDEX IF NOT EXISTS idx_districts_state
		ON districts(state_code);

	CREATE TABLE IF NOT EXISTS fin_years (
		label TEXT PRIMARY KEY,
		start_year INTEGER NOT NULL,
		end_year INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS performance_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		district_code TEXT NOT NULL REFERENCES districts(code),
		fin_year TEXT NOT NULL REFERENCES fin_years(label),
		month TEXT NOT NULL,

		approved_labour_budget REAL NOT NULL DEFAULT 0,
		average_wage_rate REAL NOT NULL DEFAULT 0,
		average_days_employment REAL NOT NULL DEFAULT 0,
		households_worked REAL NOT NULL DEFAULT 0,
		individuals_worked REAL NOT NULL DEFAULT 0,
		completed_works REAL NOT NULL DEFAULT 0,
		ongoing_works REAL NOT NULL DEFAULT 0,
		payment_within_15_days_pct REAL NOT NULL DEFAULT 0,
		women_persondays_pct REAL NOT NULL DEFAULT 0,
		sc_persondays_pct REAL NOT NULL DEFAULT 0,
		st_persondays_pct REAL NOT NULL DEFAULT 0,
		total_expenditure REAL NOT NULL DEFAULT 0,
		wages_expenditure REAL NOT NULL DEFAULT 0,
		material_expenditure REAL NOT NULL DEFAULT 0,
		admin_expenditure REAL NOT NULL DEFAULT 0,

		-- Denormalized cache only; the read path recomputes these.
		score INTEGER NOT NULL DEFAULT 0,
		grade TEXT NOT NULL DEFAULT '',

		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,

		UNIQUE(district_code, fin_year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_records_district_year
		ON performance_records(district_code, fin_year);
	CREATE INDEX IF NOT EXISTS idx_records_year
		ON performance_records(fin_year);

	CREATE TABLE IF NOT EXISTS extended_metrics (
		record_id INTEGER NOT NULL UNIQUE
			REFERENCES performance_records(id),
		active_job_cards REAL NOT NULL DEFAULT 0,
		active_workers REAL NOT NULL DEFAULT 0,
		job_cards_issued REAL NOT NULL DEFAULT 0,
		total_workers REAL NOT NULL DEFAULT 0,
		differently_abled_worked REAL NOT NULL DEFAULT 0,
		gps_with_nil_expenditure REAL NOT NULL DEFAULT 0,
		category_b_works_pct REAL NOT NULL DEFAULT 0,
		persondays_central_liability REAL NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READ SIDE (nrega.Store)
// =============================================================================

// GetStateByName resolves a state by case-insensitive name.
func (s *Store) GetStateByName(ctx context.Context, name string) (*nrega.State, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, name FROM states WHERE name = ? COLLATE NOCASE`, name)
	var state nrega.State
	if err := row.Scan(&state.Code, &state.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// ListStates returns all states ordered by name.
func (s *Store) ListStates(ctx context.Context) ([]nrega.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, name FROM states ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []nrega.State
	for rows.Next() {
		var st nrega.State
		if err := rows.Scan(&st.Code, &st.Name); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// GetDistrictByName resolves a district by case-insensitive name within a state.
func (s *Store) GetDistrictByName(ctx context.Context, stateCode, name string) (*nrega.District, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, name, state_code FROM districts
		 WHERE state_code = ? AND name = ? COLLATE NOCASE`, stateCode, name)
	var d nrega.District
	if err := row.Scan(&d.Code, &d.Name, &d.StateCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// ListDistricts returns a state's districts ordered by name.
func (s *Store) ListDistricts(ctx context.Context, stateCode string) ([]nrega.District, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, state_code FROM districts
		 WHERE state_code = ? ORDER BY name`, stateCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var districts []nrega.District
	for rows.Next() {
		var d nrega.District
		if err := rows.Scan(&d.Code, &d.Name, &d.StateCode); err != nil {
			return nil, err
		}
		districts = append(districts, d)
	}
	return districts, rows.Err()
}

// ListFinYears returns known fin years, most recent first.
func (s *Store) ListFinYears(ctx context.Context) ([]nrega.FinYear, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, start_year, end_year FROM fin_years ORDER BY start_year DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []nrega.FinYear
	for rows.Next() {
		var y nrega.FinYear
		if err := rows.Scan(&y.Label, &y.StartYear, &y.EndYear); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

const recordColumns = `
	r.id, r.district_code, d.name, d.state_code, st.name, r.fin_year, r.month,
	r.approved_labour_budget, r.average_wage_rate, r.average_days_employment,
	r.households_worked, r.individuals_worked, r.completed_works,
	r.ongoing_works, r.payment_within_15_days_pct, r.women_persondays_pct,
	r.sc_persondays_pct, r.st_persondays_pct, r.total_expenditure,
	r.wages_expenditure, r.material_expenditure, r.admin_expenditure,
	r.score, r.grade, r.created_at, r.updated_at`

// QueryRecords returns records matching the filter, ordered by month
// descending (within the financial year) then last-modified descending.
func (s *Store) QueryRecords(ctx context.Context, q nrega.RecordQuery) ([]nrega.PerformanceRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM performance_records r
		JOIN districts d ON d.code = r.district_code
		JOIN states st ON st.code = d.state_code
		WHERE d.state_code = ?`
	args := []any{q.StateCode}

	if q.DistrictCode != "" {
		query += ` AND r.district_code = ?`
		args = append(args, q.DistrictCode)
	}
	if q.FinYear != "" {
		query += ` AND r.fin_year = ?`
		args = append(args, q.FinYear)
	}
	if q.Month != "" {
		query += ` AND r.month = ? COLLATE NOCASE`
		args = append(args, q.Month)
	}
	query += `
		ORDER BY CASE r.month
			WHEN 'Total' THEN 13 WHEN 'Mar' THEN 12 WHEN 'Feb' THEN 11
			WHEN 'Jan' THEN 10 WHEN 'Dec' THEN 9 WHEN 'Nov' THEN 8
			WHEN 'Oct' THEN 7 WHEN 'Sep' THEN 6 WHEN 'Aug' THEN 5
			WHEN 'Jul' THEN 4 WHEN 'Jun' THEN 3 WHEN 'May' THEN 2
			WHEN 'Apr' THEN 1 ELSE 0 END DESC,
		r.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []nrega.PerformanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetExtendedMetrics returns the extension row, or (nil, nil) when absent.
func (s *Store) GetExtendedMetrics(ctx context.Context, recordID int64) (*nrega.ExtendedMetrics, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record_id, active_job_cards, active_workers, job_cards_issued,
			total_workers, differently_abled_worked, gps_with_nil_expenditure,
			category_b_works_pct, persondays_central_liability
		 FROM extended_metrics WHERE record_id = ?`, recordID)
	var em nrega.ExtendedMetrics
	err := row.Scan(&em.RecordID, &em.ActiveJobCards, &em.ActiveWorkers,
		&em.JobCardsIssued, &em.TotalWorkers, &em.DifferentlyAbledWorked,
		&em.GPsWithNilExpenditure, &em.CategoryBWorksPct,
		&em.PersondaysCentralLiability)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &em, nil
}

func scanRecord(rows *sql.Rows) (nrega.PerformanceRecord, error) {
	var rec nrega.PerformanceRecord
	var createdAt, updatedAt string
	err := rows.Scan(
		&rec.ID, &rec.DistrictCode, &rec.DistrictName, &rec.StateCode,
		&rec.StateName, &rec.FinYear, &rec.Month,
		&rec.ApprovedLabourBudget, &rec.AverageWageRate,
		&rec.AverageDaysEmployment, &rec.HouseholdsWorked,
		&rec.IndividualsWorked, &rec.CompletedWorks, &rec.OngoingWorks,
		&rec.PaymentWithin15DaysPct, &rec.WomenPersondaysPct,
		&rec.SCPersondaysPct, &rec.STPersondaysPct, &rec.TotalExpenditure,
		&rec.WagesExpenditure, &rec.MaterialExpenditure, &rec.AdminExpenditure,
		&rec.Score, &rec.Grade, &createdAt, &updatedAt,
	)
	if err != nil {
		return rec, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return rec, nil
}

// =============================================================================
// WRITE SIDE (nrega.IngestTx)
// =============================================================================

// IngestTx runs fn inside a single database transaction.
func (s *Store) IngestTx(ctx context.Context, fn func(tx nrega.IngestTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(&ingestTx{tx: sqlTx, ctx: ctx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type ingestTx struct {
	tx  *sql.Tx
	ctx context.Context
}

func (t *ingestTx) UpsertState(state nrega.State) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO states (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name`,
		state.Code, state.Name)
	return err
}

func (t *ingestTx) UpsertDistrict(district nrega.District) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO districts (code, name, state_code) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			state_code = excluded.state_code`,
		district.Code, district.Name, district.StateCode)
	return err
}

func (t *ingestTx) UpsertFinYear(year nrega.FinYear) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO fin_years (label, start_year, end_year) VALUES (?, ?, ?)
		ON CONFLICT(label) DO NOTHING`,
		year.Label, year.StartYear, year.EndYear)
	return err
}

func (t *ingestTx) UpsertRecord(rec *nrega.PerformanceRecord) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO performance_records (
			district_code, fin_year, month,
			approved_labour_budget, average_wage_rate, average_days_employment,
			households_worked, individuals_worked, completed_works,
			ongoing_works, payment_within_15_days_pct, women_persondays_pct,
			sc_persondays_pct, st_persondays_pct, total_expenditure,
			wages_expenditure, material_expenditure, admin_expenditure,
			score, grade, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(district_code, fin_year, month) DO UPDATE SET
			approved_labour_budget = excluded.approved_labour_budget,
			average_wage_rate = excluded.average_wage_rate,
			average_days_employment = excluded.average_days_employment,
			households_worked = excluded.households_worked,
			individuals_worked = excluded.individuals_worked,
			completed_works = excluded.completed_works,
			ongoing_works = excluded.ongoing_works,
			payment_within_15_days_pct = excluded.payment_within_15_days_pct,
			women_persondays_pct = excluded.women_persondays_pct,
			sc_persondays_pct = excluded.sc_persondays_pct,
			st_persondays_pct = excluded.st_persondays_pct,
			total_expenditure = excluded.total_expenditure,
			wages_expenditure = excluded.wages_expenditure,
			material_expenditure = excluded.material_expenditure,
			admin_expenditure = excluded.admin_expenditure,
			score = excluded.score,
			grade = excluded.grade,
			updated_at = excluded.updated_at`,
		rec.DistrictCode, rec.FinYear, rec.Month,
		rec.ApprovedLabourBudget, rec.AverageWageRate,
		rec.AverageDaysEmployment, rec.HouseholdsWorked,
		rec.IndividualsWorked, rec.CompletedWorks, rec.OngoingWorks,
		rec.PaymentWithin15DaysPct, rec.WomenPersondaysPct,
		rec.SCPersondaysPct, rec.STPersondaysPct, rec.TotalExpenditure,
		rec.WagesExpenditure, rec.MaterialExpenditure, rec.AdminExpenditure,
		rec.Score, rec.Grade, now, now,
	)
	if err != nil {
		return err
	}

	// The upsert may have updated an existing row, so LastInsertId is not
	// reliable; read the id back by natural key.
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, created_at FROM performance_records
		WHERE district_code = ? AND fin_year = ? AND month = ?`,
		rec.DistrictCode, rec.FinYear, rec.Month)
	var createdAt string
	if err := row.Scan(&rec.ID, &createdAt); err != nil {
		return err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return nil
}

func (t *ingestTx) InsertExtendedMetrics(em nrega.ExtendedMetrics) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO extended_metrics (
			record_id, active_job_cards, active_workers, job_cards_issued,
			total_workers, differently_abled_worked, gps_with_nil_expenditure,
			category_b_works_pct, persondays_central_liability
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(record_id) DO NOTHING`,
		em.RecordID, em.ActiveJobCards, em.ActiveWorkers, em.JobCardsIssued,
		em.TotalWorkers, em.DifferentlyAbledWorked, em.GPsWithNilExpenditure,
		em.CategoryBWorksPct, em.PersondaysCentralLiability)
	return err
}
