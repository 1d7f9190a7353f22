/*
Package reconcile merges canonical upstream records into local storage.

PURPOSE:
  The reconciliation engine is the single mutation path of the system. It
  takes a batch of normalized records and performs an idempotent,
  transactional bulk upsert across the related tables in dependency order:

    1. states        (insert, or update name only; code is the stable key)
    2. districts
    3. fin years     (malformed labels default to the current span)
    4. performance records (natural-key upsert; score/grade written only
       as a denormalized cache, never read back as authority)
    5. extended metrics    (insert-only, skip-on-conflict)

  The order is mandatory: each step's targets are referenced by the next.
  Any failure rolls back the whole batch; partial ingestion is never
  observable. Re-running the same batch is a no-op overwrite, which is
  what makes concurrent "thundering herd" reconciliation safe.

KNOWN LIMITATION (preserved deliberately):
  Step 5 never updates an existing extended-metrics row, so re-ingesting a
  period refreshes the primary record but not the secondary indicators.
*/
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/VictoriaMetrics/metrics"

	"github.com/gramstat/nrega-insights/nrega"
)

var (
	ingestBatches = metrics.NewCounter("ingest_batches_total")
	ingestRecords = metrics.NewCounter("ingest_records_total")
)

// Engine performs transactional ingestion against a Store.
type Engine struct {
	store nrega.Store
}

// NewEngine creates a reconciliation engine.
func NewEngine(store nrega.Store) *Engine {
	return &Engine{store: store}
}

// Ingest merges a batch of canonical records into storage inside one
// transaction and returns the persisted performance records (ids set).
// An empty batch is a successful no-op.
func (e *Engine) Ingest(ctx context.Context, records []nrega.CanonicalRecord) ([]nrega.PerformanceRecord, error) {
	if len(records) == 0 {
		return []nrega.PerformanceRecord{}, nil
	}
	ingestBatches.Inc()

	persisted := make([]nrega.PerformanceRecord, 0, len(records))
	err := e.store.IngestTx(ctx, func(tx nrega.IngestTx) error {
		// 1. States referenced by the batch.
		for _, state := range distinctStates(records) {
			if err := tx.UpsertState(state); err != nil {
				return fmt.Errorf("upserting state %s: %w", state.Code, err)
			}
		}

		// 2. Districts; parents exist after step 1.
		for _, district := range distinctDistricts(records) {
			if err := tx.UpsertDistrict(district); err != nil {
				return fmt.Errorf("upserting district %s: %w", district.Code, err)
			}
		}

		// 3. Fin years.
		for _, year := range distinctFinYears(records) {
			if err := tx.UpsertFinYear(year); err != nil {
				return fmt.Errorf("upserting fin year %s: %w", year.Label, err)
			}
		}

		// 4. Performance records by natural key.
		for _, cr := range records {
			rec := nrega.PerformanceRecord{
				DistrictCode: cr.DistrictCode,
				DistrictName: cr.DistrictName,
				StateCode:    cr.StateCode,
				StateName:    cr.StateName,
				FinYear:      cr.FinYear,
				Month:        cr.Month,
				Metrics:      cr.Metrics,
			}
			nrega.Rescore(&rec)
			if err := tx.UpsertRecord(&rec); err != nil {
				return fmt.Errorf("upserting record %s/%s/%s: %w",
					cr.DistrictCode, cr.FinYear, cr.Month, err)
			}
			persisted = append(persisted, rec)

			// 5. Extension rows, insert-only.
			em := cr.Extended
			em.RecordID = rec.ID
			if err := tx.InsertExtendedMetrics(em); err != nil {
				return fmt.Errorf("inserting extended metrics for record %d: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nrega.ErrStorage, err)
	}

	ingestRecords.Add(len(persisted))
	return persisted, nil
}

// distinctStates extracts the unique states in a batch, sorted by code so
// identical batches always replay identically.
func distinctStates(records []nrega.CanonicalRecord) []nrega.State {
	byCode := make(map[string]nrega.State)
	for _, r := range records {
		if r.StateCode == "" {
			continue
		}
		byCode[r.StateCode] = nrega.State{Code: r.StateCode, Name: r.StateName}
	}
	states := make([]nrega.State, 0, len(byCode))
	for _, s := range byCode {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Code < states[j].Code })
	return states
}

func distinctDistricts(records []nrega.CanonicalRecord) []nrega.District {
	byCode := make(map[string]nrega.District)
	for _, r := range records {
		if r.DistrictCode == "" {
			continue
		}
		byCode[r.DistrictCode] = nrega.District{
			Code:      r.DistrictCode,
			Name:      r.DistrictName,
			StateCode: r.StateCode,
		}
	}
	districts := make([]nrega.District, 0, len(byCode))
	for _, d := range byCode {
		districts = append(districts, d)
	}
	sort.Slice(districts, func(i, j int) bool { return districts[i].Code < districts[j].Code })
	return districts
}

func distinctFinYears(records []nrega.CanonicalRecord) []nrega.FinYear {
	byLabel := make(map[string]nrega.FinYear)
	for _, r := range records {
		if r.FinYear == "" {
			continue
		}
		byLabel[r.FinYear] = nrega.ParseFinYear(r.FinYear)
	}
	years := make([]nrega.FinYear, 0, len(byLabel))
	for _, y := range byLabel {
		years = append(years, y)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Label < years[j].Label })
	return years
}
