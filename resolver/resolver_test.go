package resolver

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramstat/nrega-insights/nrega"
	"github.com/gramstat/nrega-insights/reconcile"
	"github.com/gramstat/nrega-insights/store/memory"
)

// fakeSource serves canned record sets per "STATE/year" and counts calls.
type fakeSource struct {
	calls   atomic.Int64
	byQuery map[string][]nrega.CanonicalRecord
	err     error
}

func (f *fakeSource) FetchRecords(_ context.Context, state, finYear, district string) ([]nrega.CanonicalRecord, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	records := f.byQuery[strings.ToUpper(state)+"/"+finYear]
	if district == "" {
		return records, nil
	}
	var scoped []nrega.CanonicalRecord
	for _, rec := range records {
		if strings.EqualFold(rec.DistrictName, district) {
			scoped = append(scoped, rec)
		}
	}
	return scoped, nil
}

func keralaRecord(district, month string) nrega.CanonicalRecord {
	return nrega.CanonicalRecord{
		StateName:    "KERALA",
		StateCode:    "KL",
		DistrictName: district,
		DistrictCode: nrega.DeriveDistrictCode(district, "KL"),
		FinYear:      "2024-2025",
		Month:        month,
		Metrics: nrega.Metrics{
			AverageDaysEmployment:  60,
			PaymentWithin15DaysPct: 90,
			WomenPersondaysPct:     55,
			CompletedWorks:         100,
		},
		Extended: nrega.ExtendedMetrics{ActiveJobCards: 1000},
	}
}

func newResolver(source Source) (*Resolver, *memory.Store) {
	store := memory.New()
	return New(store, source, reconcile.NewEngine(store)), store
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestResolve_MissingParamsRejectedBeforeAnyLookup(t *testing.T) {
	source := &fakeSource{}
	r, _ := newResolver(source)

	_, err := r.Resolve(context.Background(), Query{FinYear: "2024-2025"})
	assert.True(t, errors.Is(err, nrega.ErrValidation))

	_, err = r.Resolve(context.Background(), Query{State: "KERALA"})
	assert.True(t, errors.Is(err, nrega.ErrValidation))

	assert.EqualValues(t, 0, source.calls.Load(), "validation failures must have no side effects")
}

// =============================================================================
// FETCH-THEN-BACKFILL PROTOCOL
// =============================================================================

func TestResolve_ColdStart_FetchesReconcilesAndServes(t *testing.T) {
	// GIVEN: no local data; upstream has 3 district records for the year
	// WHEN: resolving KERALA/2024-2025
	// THEN: records are fetched, reconciled, and served from local storage
	//       within the same request

	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2024-2025": {
			keralaRecord("IDUKKI", "Total"),
			keralaRecord("WAYANAD", "Total"),
			keralaRecord("PALAKKAD", "Total"),
		},
	}}
	r, store := newResolver(source)

	result, err := r.Resolve(context.Background(), Query{State: "KERALA", FinYear: "2024-2025"})
	require.NoError(t, err)
	assert.Len(t, result.Records, 3)
	assert.Equal(t, "KL", result.State.Code)
	assert.False(t, result.FreshAsOf.IsZero())

	// Reconciliation created the full entity graph.
	assert.Equal(t, 3, store.RecordCount())
	assert.Equal(t, 3, store.ExtendedCount())

	// Scores are recomputed on the way out.
	for _, rec := range result.Records {
		assert.Equal(t, nrega.Score(rec.Metrics), rec.Score)
	}
}

func TestResolve_WarmPath_ZeroUpstreamCalls(t *testing.T) {
	// A request with fully populated local data makes no upstream calls.
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2024-2025": {keralaRecord("IDUKKI", "Total")},
	}}
	r, _ := newResolver(source)
	ctx := context.Background()

	_, err := r.Resolve(ctx, Query{State: "KERALA", FinYear: "2024-2025"})
	require.NoError(t, err)
	warmupCalls := source.calls.Load()

	_, err = r.Resolve(ctx, Query{State: "KERALA", FinYear: "2024-2025"})
	require.NoError(t, err)
	assert.Equal(t, warmupCalls, source.calls.Load(), "warm request must not call upstream")
}

func TestResolve_BoundedUpstreamCalls_WhenNothingExists(t *testing.T) {
	// No local data, no upstream data anywhere: the protocol tries the
	// requested year plus each fallback year, then fails — never unbounded.
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{}}
	r, _ := newResolver(source)

	_, err := r.Resolve(context.Background(), Query{State: "NOWHERE", FinYear: "2024-2025"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, nrega.ErrStateNotFound))

	maxCalls := int64(len(nrega.FallbackFinYears) + 2) // fallback walk + district + general passes
	assert.LessOrEqual(t, source.calls.Load(), maxCalls)
	assert.Greater(t, source.calls.Load(), int64(0))
}

func TestResolve_FallbackYearYieldsData_NoDataNotStateNotFound(t *testing.T) {
	// GIVEN: upstream empty for the requested year but populated for a
	// fallback year
	// WHEN: resolving the unknown state for the requested year
	// THEN: the outcome is "no data for period" (the state became known via
	//       the fallback), with the fallback year among the suggestions

	fallback := keralaRecord("IDUKKI", "Total")
	fallback.FinYear = "2023-2024"
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2023-2024": {fallback},
	}}
	r, _ := newResolver(source)

	_, err := r.Resolve(context.Background(), Query{State: "KERALA", FinYear: "2024-2025"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, nrega.ErrNoData), "state is known, period has no data")
	assert.False(t, errors.Is(err, nrega.ErrStateNotFound))

	var nf *nrega.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"2023-2024"}, nf.Suggestions,
		"only periods that actually yielded data are suggested")
}

func TestResolve_FullMonthNameMatchesStoredRecord(t *testing.T) {
	// Month labels are stored in normalized three-letter form; a natural
	// spelling in the query must still find them instead of burning the
	// backfill pass and reporting no data.
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2024-2025": {
			keralaRecord("IDUKKI", "Jan"),
			keralaRecord("IDUKKI", "Total"),
		},
	}}
	r, _ := newResolver(source)
	ctx := context.Background()

	_, err := r.Resolve(ctx, Query{State: "KERALA", FinYear: "2024-2025"})
	require.NoError(t, err)
	warmupCalls := source.calls.Load()

	for _, month := range []string{"January", "JAN", "jan"} {
		result, err := r.Resolve(ctx, Query{State: "KERALA", FinYear: "2024-2025", Month: month})
		require.NoError(t, err, "month spelling %q", month)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "Jan", result.Records[0].Month)
	}
	assert.Equal(t, warmupCalls, source.calls.Load(), "local data must answer without a backfill pass")
}

func TestResolve_DistrictFilter(t *testing.T) {
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2024-2025": {
			keralaRecord("IDUKKI", "Total"),
			keralaRecord("WAYANAD", "Total"),
		},
	}}
	r, _ := newResolver(source)

	result, err := r.Resolve(context.Background(), Query{
		State: "kerala", FinYear: "2024-2025", District: "idukki",
	})
	require.NoError(t, err)
	require.NotNil(t, result.District)
	assert.Equal(t, "IDUKKI", result.District.Name)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "IDUKKI", result.Records[0].DistrictName)
}

func TestResolve_UnknownDistrict_DistinctOutcome(t *testing.T) {
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2024-2025": {keralaRecord("IDUKKI", "Total")},
	}}
	r, _ := newResolver(source)

	_, err := r.Resolve(context.Background(), Query{
		State: "KERALA", FinYear: "2024-2025", District: "ATLANTIS",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, nrega.ErrDistrictNotFound))
	assert.False(t, errors.Is(err, nrega.ErrNoData))
}

// =============================================================================
// UPSTREAM DEGRADATION
// =============================================================================

func TestResolve_UpstreamDownWithLocalData_StillSucceeds(t *testing.T) {
	// Local data exists for a different month filter path: a failing
	// upstream during optional backfill must not cascade into failure.
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2024-2025": {keralaRecord("IDUKKI", "Total")},
	}}
	r, _ := newResolver(source)
	ctx := context.Background()

	_, err := r.Resolve(ctx, Query{State: "KERALA", FinYear: "2024-2025"})
	require.NoError(t, err)

	// Upstream goes dark; local data still answers.
	source.err = &nrega.UpstreamError{Status: 503}
	result, err := r.Resolve(ctx, Query{State: "KERALA", FinYear: "2024-2025"})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestResolve_UpstreamDownNoLocalData_UpstreamUnavailable(t *testing.T) {
	// With nothing local and every fetch failing, the honest outcome is
	// "upstream unavailable", not a misleading not-found.
	source := &fakeSource{err: &nrega.UpstreamError{Status: 503}}
	r, _ := newResolver(source)

	_, err := r.Resolve(context.Background(), Query{State: "KERALA", FinYear: "2024-2025"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, nrega.ErrUpstreamUnavailable))
}

// =============================================================================
// CONCURRENT RECONCILIATION (thundering herd)
// =============================================================================

func TestResolve_ConcurrentColdRequests_NoDuplicates(t *testing.T) {
	source := &fakeSource{byQuery: map[string][]nrega.CanonicalRecord{
		"KERALA/2024-2025": {
			keralaRecord("IDUKKI", "Total"),
			keralaRecord("WAYANAD", "Total"),
		},
	}}
	r, store := newResolver(source)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := r.Resolve(context.Background(), Query{State: "KERALA", FinYear: "2024-2025"})
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}

	// Duplicated upstream calls are acceptable; duplicated rows are not.
	assert.Equal(t, 2, store.RecordCount())
	assert.Equal(t, 2, store.ExtendedCount())
}
