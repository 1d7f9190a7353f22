/*
types.go - Core domain types for the performance statistics engine

PURPOSE:
  Defines the entities shared by every layer: states, districts, financial
  years, performance records and their optional extended metrics, plus the
  canonical record shape the upstream client normalizes into.

DESIGN DECISIONS:
  1. Natural keys: states and districts are keyed by their codes, records by
     (district, fin year, month). No UUIDs anywhere.
  2. Numerics are float64 defaulting to zero, never pointers: downstream
     arithmetic (score, ratios, sums) must never meet a null.
  3. Score/grade on PerformanceRecord are a denormalized cache. The read
     path recomputes and overwrites them; storage is never the authority.

SEE ALSO:
  - codes.go: state/district code derivation
  - period.go: fin year parsing and fallback ordering
  - scoring.go: derived score and grade
  - store.go: persistence interfaces over these types
*/
package nrega

import "time"

// =============================================================================
// GEOGRAPHIC ENTITIES
// =============================================================================

// State is a state-equivalent region. Code is the stable identity; Name is
// the case-insensitive match key used by the resolver.
type State struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// District belongs to exactly one State. Code is derived deterministically
// when the upstream omits one (see DeriveDistrictCode).
type District struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	StateCode string `json:"state_code"`
}

// FinYear is a reporting period labeled "YYYY-YYYY". Immutable once created.
type FinYear struct {
	Label     string `json:"label"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`
}

// =============================================================================
// PERFORMANCE RECORDS
// =============================================================================

// Metrics holds the primary numeric indicators of a performance record.
// Percent fields are 0-100. All fields default to zero.
type Metrics struct {
	ApprovedLabourBudget   float64 `json:"approved_labour_budget"`
	AverageWageRate        float64 `json:"average_wage_rate"`
	AverageDaysEmployment  float64 `json:"average_days_employment"`
	HouseholdsWorked       float64 `json:"households_worked"`
	IndividualsWorked      float64 `json:"individuals_worked"`
	CompletedWorks         float64 `json:"completed_works"`
	OngoingWorks           float64 `json:"ongoing_works"`
	PaymentWithin15DaysPct float64 `json:"payment_within_15_days_pct"`
	WomenPersondaysPct     float64 `json:"women_persondays_pct"`
	SCPersondaysPct        float64 `json:"sc_persondays_pct"`
	STPersondaysPct        float64 `json:"st_persondays_pct"`
	TotalExpenditure       float64 `json:"total_expenditure"`
	WagesExpenditure       float64 `json:"wages_expenditure"`
	MaterialExpenditure    float64 `json:"material_expenditure"`
	AdminExpenditure       float64 `json:"admin_expenditure"`
}

// PerformanceRecord is the fact table row. The natural key is
// (DistrictCode, FinYear, Month); re-ingesting the same key updates the
// metric fields and bumps UpdatedAt, never creating a duplicate.
type PerformanceRecord struct {
	ID           int64  `json:"id"`
	DistrictCode string `json:"district_code"`
	DistrictName string `json:"district_name"`
	StateCode    string `json:"state_code"`
	StateName    string `json:"state_name"`
	FinYear      string `json:"fin_year"`
	Month        string `json:"month"`

	Metrics

	// Recomputed on every read, stored only as a denormalized cache.
	Score int    `json:"score"`
	Grade string `json:"grade"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtendedMetrics is a one-to-one optional extension of a PerformanceRecord
// holding secondary indicators. Inserted once per record; ingestion does not
// currently refresh it (see reconcile.Engine).
type ExtendedMetrics struct {
	RecordID                   int64   `json:"record_id"`
	ActiveJobCards             float64 `json:"active_job_cards"`
	ActiveWorkers              float64 `json:"active_workers"`
	JobCardsIssued             float64 `json:"job_cards_issued"`
	TotalWorkers               float64 `json:"total_workers"`
	DifferentlyAbledWorked     float64 `json:"differently_abled_worked"`
	GPsWithNilExpenditure      float64 `json:"gps_with_nil_expenditure"`
	CategoryBWorksPct          float64 `json:"category_b_works_pct"`
	PersondaysCentralLiability float64 `json:"persondays_central_liability"`
}

// =============================================================================
// CANONICAL RECORDS (upstream -> reconciliation)
// =============================================================================

// CanonicalRecord is the normalized shape the upstream client produces and
// the reconciliation engine consumes. Codes are always populated: the client
// derives them when the upstream omits them.
type CanonicalRecord struct {
	StateName    string
	StateCode    string
	DistrictName string
	DistrictCode string
	FinYear      string
	Month        string

	Metrics
	Extended ExtendedMetrics
}
