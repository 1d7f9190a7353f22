/*
store.go - Persistence interfaces

PURPOSE:
  Defines the storage contract the engine works against. Two
  implementations exist:
  - store/sqlite: production SQLite store (WAL, foreign keys, upserts)
  - store/memory: in-memory store for tests

TRANSACTION MODEL:
  Reads go through Store directly. All mutation happens inside IngestTx:
  the reconciliation engine opens one transaction, performs the ordered
  upserts through the IngestTx interface, and the whole batch commits or
  rolls back atomically. Partial ingestion is never observable.

SEE ALSO:
  - reconcile/engine.go: the only caller of IngestTx
  - resolver/resolver.go: the main read-side caller
*/
package nrega

import "context"

// RecordQuery filters PerformanceRecords. StateCode is required; the rest
// narrow the result. Results are ordered by month descending, then
// last-modified descending.
type RecordQuery struct {
	StateCode    string
	DistrictCode string
	FinYear      string
	Month        string
}

// Store is the read-mostly persistence contract.
type Store interface {
	// GetStateByName resolves a state by case-insensitive display name.
	// Returns (nil, nil) when absent; errors are storage failures only.
	GetStateByName(ctx context.Context, name string) (*State, error)
	ListStates(ctx context.Context) ([]State, error)

	// GetDistrictByName resolves a district by case-insensitive name,
	// scoped to a state. Returns (nil, nil) when absent.
	GetDistrictByName(ctx context.Context, stateCode, name string) (*District, error)
	ListDistricts(ctx context.Context, stateCode string) ([]District, error)

	ListFinYears(ctx context.Context) ([]FinYear, error)

	QueryRecords(ctx context.Context, q RecordQuery) ([]PerformanceRecord, error)
	GetExtendedMetrics(ctx context.Context, recordID int64) (*ExtendedMetrics, error)

	// IngestTx runs fn inside a single transaction. Any error from fn rolls
	// everything back and is returned wrapped as ErrStorage by callers.
	IngestTx(ctx context.Context, fn func(tx IngestTx) error) error

	Close() error
}

// IngestTx is the write surface available inside a reconciliation
// transaction. Implementations enforce the key constraints; the
// reconciliation engine enforces the call order.
type IngestTx interface {
	// UpsertState inserts the state or, on code conflict, updates the name.
	UpsertState(state State) error

	// UpsertDistrict inserts the district or updates name/state on conflict.
	UpsertDistrict(district District) error

	// UpsertFinYear inserts the fin year; existing labels are left as-is.
	UpsertFinYear(year FinYear) error

	// UpsertRecord inserts or, on natural-key conflict, updates all metric
	// fields and bumps updated_at. Sets rec.ID on return either way.
	UpsertRecord(rec *PerformanceRecord) error

	// InsertExtendedMetrics inserts the extension row, skipping silently if
	// the record already has one.
	InsertExtendedMetrics(em ExtendedMetrics) error
}
