package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramstat/nrega-insights/nrega"
	"github.com/gramstat/nrega-insights/store/memory"
)

func canonical(district, month string, days float64) nrega.CanonicalRecord {
	stateCode := nrega.DeriveStateCode("KERALA")
	return nrega.CanonicalRecord{
		StateName:    "KERALA",
		StateCode:    stateCode,
		DistrictName: district,
		DistrictCode: nrega.DeriveDistrictCode(district, stateCode),
		FinYear:      "2024-2025",
		Month:        month,
		Metrics: nrega.Metrics{
			AverageDaysEmployment:  days,
			PaymentWithin15DaysPct: 90,
			CompletedWorks:         10,
		},
		Extended: nrega.ExtendedMetrics{ActiveJobCards: 1000},
	}
}

// =============================================================================
// INGESTION TESTS
// =============================================================================

func TestIngest_CreatesAllEntities(t *testing.T) {
	// GIVEN: no local data and a batch of 3 district records
	// WHEN: ingesting
	// THEN: 1 state, 3 districts, 1 fin year, 3 records, 3 extension rows

	store := memory.New()
	engine := NewEngine(store)
	ctx := context.Background()

	batch := []nrega.CanonicalRecord{
		canonical("IDUKKI", "Total", 60),
		canonical("WAYANAD", "Total", 55),
		canonical("PALAKKAD", "Total", 70),
	}

	persisted, err := engine.Ingest(ctx, batch)
	require.NoError(t, err)
	require.Len(t, persisted, 3)

	states, _ := store.ListStates(ctx)
	require.Len(t, states, 1)
	assert.Equal(t, "KERALA", states[0].Name)

	districts, _ := store.ListDistricts(ctx, "KL")
	assert.Len(t, districts, 3)

	years, _ := store.ListFinYears(ctx)
	require.Len(t, years, 1)
	assert.Equal(t, 2024, years[0].StartYear)

	assert.Equal(t, 3, store.RecordCount())
	assert.Equal(t, 3, store.ExtendedCount())
}

func TestIngest_Idempotent(t *testing.T) {
	// Ingesting the same batch twice yields the same row counts and field
	// values as ingesting it once.
	store := memory.New()
	engine := NewEngine(store)
	ctx := context.Background()

	batch := []nrega.CanonicalRecord{
		canonical("IDUKKI", "Total", 60),
		canonical("WAYANAD", "Total", 55),
	}

	first, err := engine.Ingest(ctx, batch)
	require.NoError(t, err)
	second, err := engine.Ingest(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, 2, store.RecordCount())
	assert.Equal(t, 2, store.ExtendedCount())

	// Same natural keys map to the same ids.
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Metrics, second[i].Metrics)
	}
}

func TestIngest_UpdatesMetricsOnReingest(t *testing.T) {
	store := memory.New()
	engine := NewEngine(store)
	ctx := context.Background()

	_, err := engine.Ingest(ctx, []nrega.CanonicalRecord{canonical("IDUKKI", "Total", 60)})
	require.NoError(t, err)

	updated := canonical("IDUKKI", "Total", 75)
	persisted, err := engine.Ingest(ctx, []nrega.CanonicalRecord{updated})
	require.NoError(t, err)

	records, _ := store.QueryRecords(ctx, nrega.RecordQuery{StateCode: "KL"})
	require.Len(t, records, 1)
	assert.Equal(t, 75.0, records[0].AverageDaysEmployment)
	assert.Equal(t, persisted[0].ID, records[0].ID, "merge, not append")
}

func TestIngest_ExtendedMetricsNotRefreshed(t *testing.T) {
	// Extension rows are insert-only: re-ingesting with changed secondary
	// indicators keeps the original row. Deliberate, documented behavior.
	store := memory.New()
	engine := NewEngine(store)
	ctx := context.Background()

	first := canonical("IDUKKI", "Total", 60)
	persisted, err := engine.Ingest(ctx, []nrega.CanonicalRecord{first})
	require.NoError(t, err)

	changed := first
	changed.Extended.ActiveJobCards = 9999
	_, err = engine.Ingest(ctx, []nrega.CanonicalRecord{changed})
	require.NoError(t, err)

	em, err := store.GetExtendedMetrics(ctx, persisted[0].ID)
	require.NoError(t, err)
	require.NotNil(t, em)
	assert.Equal(t, 1000.0, em.ActiveJobCards)
	assert.Equal(t, 1, store.ExtendedCount())
}

func TestIngest_ReferentialOrder(t *testing.T) {
	// After a commit, every district's parent state exists and every
	// record's district exists.
	store := memory.New()
	engine := NewEngine(store)
	ctx := context.Background()

	batch := []nrega.CanonicalRecord{
		canonical("IDUKKI", "Jan", 60),
		canonical("IDUKKI", "Feb", 61),
		canonical("WAYANAD", "Jan", 50),
	}
	_, err := engine.Ingest(ctx, batch)
	require.NoError(t, err)

	records, _ := store.QueryRecords(ctx, nrega.RecordQuery{StateCode: "KL"})
	for _, rec := range records {
		d, err := store.GetDistrictByName(ctx, rec.StateCode, rec.DistrictName)
		require.NoError(t, err)
		require.NotNil(t, d, "district %s must exist", rec.DistrictName)

		st, err := store.GetStateByName(ctx, rec.StateName)
		require.NoError(t, err)
		require.NotNil(t, st, "state %s must exist", rec.StateName)
	}
}

func TestIngest_EmptyBatchIsANoOp(t *testing.T) {
	store := memory.New()
	engine := NewEngine(store)

	persisted, err := engine.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, persisted)
	assert.Equal(t, 0, store.RecordCount())
}

func TestIngest_MalformedFinYearDoesNotFailBatch(t *testing.T) {
	store := memory.New()
	engine := NewEngine(store)
	ctx := context.Background()

	rec := canonical("IDUKKI", "Total", 60)
	rec.FinYear = "not-a-year"
	_, err := engine.Ingest(ctx, []nrega.CanonicalRecord{rec})
	require.NoError(t, err)

	years, _ := store.ListFinYears(ctx)
	require.Len(t, years, 1)
	assert.Equal(t, "not-a-year", years[0].Label, "label survives as key")
}

// failingStore rejects every transaction, standing in for a broken database.
type failingStore struct {
	*memory.Store
}

func (f *failingStore) IngestTx(ctx context.Context, fn func(tx nrega.IngestTx) error) error {
	return errors.New("disk full")
}

func TestIngest_StorageFailureWrapsErrStorage(t *testing.T) {
	engine := NewEngine(&failingStore{memory.New()})

	_, err := engine.Ingest(context.Background(), []nrega.CanonicalRecord{canonical("IDUKKI", "Total", 60)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, nrega.ErrStorage))
}
