/*
Package resolver implements the fetch-then-backfill decision protocol.

PURPOSE:
  For any incoming performance query, decide whether local storage
  suffices; when it does not, fetch from the upstream source, reconcile
  the result into storage, and retry the local lookup — failing only after
  a small, fixed number of upstream attempts.

PROTOCOL (per request):
  1. Resolve the state by case-insensitive name. Unknown locally ->
     fetch the requested year, then the ordered fallback years, until one
     yields data; reconcile; re-resolve. Still unknown -> not-found,
     distinguishing "state unknown anywhere" from "state known, no data
     for the period".
  2. Resolve the optional district filter the same way, with at most one
     district-scoped fetch+reconcile pass.
  3. Query local records (month desc, last-modified desc).
  4. Empty -> exactly one more general fetch+reconcile pass, requery once.
  5. Still empty -> not-found with alternate-period suggestions.
  6. Attach recomputed score/grade and the freshness timestamp.

  Upstream calls per request are bounded by: len(fallback years) + 1
  district-scoped attempt + 1 general attempt. A successful fetch is
  reconciled before the retry, so it is queryable within the same request.

UPSTREAM DEGRADATION:
  Upstream errors during an optional backfill are logged and treated as
  "no new data" — the request can still succeed on local records. Only
  when no local data exists at all does ErrUpstreamUnavailable propagate.
*/
package resolver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gramstat/nrega-insights/nrega"
	"github.com/gramstat/nrega-insights/reconcile"
)

// Source is the upstream fetch surface the resolver depends on.
// upstream.Client implements it; tests substitute a counting fake.
type Source interface {
	FetchRecords(ctx context.Context, state, finYear, district string) ([]nrega.CanonicalRecord, error)
}

// Query is a validated performance-data request. State and FinYear are
// required; District and Month narrow the result.
type Query struct {
	State    string
	FinYear  string
	District string
	Month    string
}

// Result is a successful resolution: records with recomputed score/grade,
// ordered month desc then last-modified desc, plus a freshness indicator.
type Result struct {
	State     nrega.State
	District  *nrega.District
	Records   []nrega.PerformanceRecord
	FreshAsOf time.Time
}

// Resolver executes the protocol. Safe for concurrent use; all state lives
// in the store, the cache and the source.
type Resolver struct {
	store  nrega.Store
	source Source
	engine *reconcile.Engine
}

// New creates a resolver.
func New(store nrega.Store, source Source, engine *reconcile.Engine) *Resolver {
	return &Resolver{store: store, source: source, engine: engine}
}

// Resolve runs the decision protocol for one query.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.State) == "" {
		return nil, &nrega.ValidationError{Param: "state", Message: "required"}
	}
	if strings.TrimSpace(q.FinYear) == "" {
		return nil, &nrega.ValidationError{Param: "year", Message: "required"}
	}

	// Step 1: resolve the state, backfilling across fallback years on miss.
	state, attempted, err := r.resolveState(ctx, q)
	if err != nil {
		return nil, err
	}

	// Step 2: resolve the optional district filter.
	var district *nrega.District
	if q.District != "" {
		district, err = r.resolveDistrict(ctx, state, q)
		if err != nil {
			return nil, err
		}
	}

	// Step 3: local query. Month labels are stored in normalized
	// three-letter form, so the filter must be normalized the same way or
	// "January" would miss a stored "Jan" row.
	recQuery := nrega.RecordQuery{
		StateCode: state.Code,
		FinYear:   q.FinYear,
		Month:     nrega.NormalizeMonth(q.Month),
	}
	if district != nil {
		recQuery.DistrictCode = district.Code
	}
	records, err := r.store.QueryRecords(ctx, recQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nrega.ErrStorage, err)
	}

	// Step 4: exactly one general backfill pass on empty.
	if len(records) == 0 {
		if backfilled := r.backfill(ctx, state.Name, q.FinYear, "", false); backfilled {
			records, err = r.store.QueryRecords(ctx, recQuery)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", nrega.ErrStorage, err)
			}
		}
	}

	// Step 5: terminal not-found with suggestions.
	if len(records) == 0 {
		return nil, &nrega.NotFoundError{
			Kind:        nrega.ErrNoData,
			State:       q.State,
			District:    q.District,
			FinYear:     q.FinYear,
			Month:       q.Month,
			Suggestions: suggestions(attempted, q.FinYear),
		}
	}

	// Step 6: recompute derived fields, attach freshness.
	var fresh time.Time
	for i := range records {
		nrega.Rescore(&records[i])
		if records[i].UpdatedAt.After(fresh) {
			fresh = records[i].UpdatedAt
		}
	}
	return &Result{State: *state, District: district, Records: records, FreshAsOf: fresh}, nil
}

// resolveState returns the state row, fetching upstream across the
// fallback year sequence when it is unknown locally. The returned slice
// lists the fin years that yielded data during backfill (for suggestions).
func (r *Resolver) resolveState(ctx context.Context, q Query) (*nrega.State, []string, error) {
	state, err := r.store.GetStateByName(ctx, q.State)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", nrega.ErrStorage, err)
	}
	if state != nil {
		return state, nil, nil
	}

	// Unknown locally: walk the requested year first, then the fallbacks.
	var yielded []string
	var lastUpstreamErr error
	for _, year := range yearSequence(q.FinYear) {
		records, err := r.source.FetchRecords(ctx, q.State, year, "")
		if err != nil {
			log.Printf("[resolver] upstream fetch failed for %s/%s: %v", q.State, year, err)
			lastUpstreamErr = err
			continue
		}
		if len(records) == 0 {
			continue
		}
		if _, err := r.engine.Ingest(ctx, records); err != nil {
			return nil, nil, err
		}
		yielded = append(yielded, year)
		break
	}

	state, err = r.store.GetStateByName(ctx, q.State)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", nrega.ErrStorage, err)
	}
	if state != nil {
		return state, yielded, nil
	}

	// Nothing local and nothing upstream. If every attempt failed on
	// transport, surface that instead of a misleading not-found.
	if lastUpstreamErr != nil && len(yielded) == 0 {
		return nil, nil, lastUpstreamErr
	}
	return nil, nil, &nrega.NotFoundError{
		Kind:        nrega.ErrStateNotFound,
		State:       q.State,
		FinYear:     q.FinYear,
		Suggestions: suggestions(yielded, q.FinYear),
	}
}

// resolveDistrict resolves the district filter within a known state, with
// at most one district-scoped fetch+reconcile pass.
func (r *Resolver) resolveDistrict(ctx context.Context, state *nrega.State, q Query) (*nrega.District, error) {
	district, err := r.store.GetDistrictByName(ctx, state.Code, q.District)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nrega.ErrStorage, err)
	}
	if district != nil {
		return district, nil
	}

	r.backfill(ctx, state.Name, q.FinYear, q.District, true)

	district, err = r.store.GetDistrictByName(ctx, state.Code, q.District)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nrega.ErrStorage, err)
	}
	if district != nil {
		return district, nil
	}
	return nil, &nrega.NotFoundError{
		Kind:     nrega.ErrDistrictNotFound,
		State:    q.State,
		District: q.District,
		FinYear:  q.FinYear,
	}
}

// backfill performs a single fetch+reconcile pass, returning true when new
// data was ingested. Upstream failures degrade to "no new data" and are
// only logged; local data may still satisfy the request.
func (r *Resolver) backfill(ctx context.Context, state, finYear, district string, scoped bool) bool {
	records, err := r.source.FetchRecords(ctx, state, finYear, district)
	if err != nil {
		log.Printf("[resolver] backfill fetch failed for %s/%s (scoped=%t): %v",
			state, finYear, scoped, err)
		return false
	}
	if len(records) == 0 {
		return false
	}
	if _, err := r.engine.Ingest(ctx, records); err != nil {
		log.Printf("[resolver] backfill ingest failed for %s/%s: %v", state, finYear, err)
		return false
	}
	return true
}

// yearSequence is the requested year followed by the fallback years,
// de-duplicated, preserving order.
func yearSequence(requested string) []string {
	seq := []string{requested}
	for _, year := range nrega.FallbackFinYears {
		if year != requested {
			seq = append(seq, year)
		}
	}
	return seq
}

// suggestions lists alternate years worth trying: only years that
// actually yielded data during backfill. Years never checked are not
// suggested.
func suggestions(yielded []string, requested string) []string {
	seen := map[string]bool{requested: true}
	var out []string
	for _, year := range yielded {
		if !seen[year] {
			seen[year] = true
			out = append(out, year)
		}
	}
	return out
}
