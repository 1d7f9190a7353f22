/*
handlers.go - HTTP handlers for the performance statistics API

PURPOSE:
  Exposes the resolver and derived-metrics layer via REST. Handlers parse
  and validate query parameters, delegate to the resolver, and serialize
  the shared response envelope.

ENDPOINTS:
  GET /api/states                      List states
  GET /api/states/{state}/districts    List a state's districts
  GET /api/years                       List known financial years
  GET /api/performance                 Performance data (state, year,
                                       optional district, optional month)
  GET /api/trend                       Multi-year history for a district
  GET /api/stats                       State-level aggregate statistics
  GET /api/top                         Top-N districts by a metric
  GET /api/compare                     Compare districts
  GET /api/health                      Liveness probe

ERROR HANDLING:
  Validation errors are rejected with 400 before any lookup. Not-found
  outcomes map to 404 and carry alternate-period suggestions. Upstream
  unavailability (only when no local data exists) maps to 503; storage
  failures to 500.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gramstat/nrega-insights/nrega"
	"github.com/gramstat/nrega-insights/resolver"
)

// DistrictSource lists district and state names from the upstream; the
// handlers fall back to it when local storage has not seen a state yet.
type DistrictSource interface {
	FetchDistrictNames(ctx context.Context, state string) ([]string, error)
	StateNames() []string
}

// Handler holds all dependencies for HTTP handlers. Constructed once at
// startup and passed by reference; no hidden process-wide state.
type Handler struct {
	Store    nrega.Store
	Resolver *resolver.Resolver
	Source   DistrictSource
}

// NewHandler creates a handler.
func NewHandler(store nrega.Store, res *resolver.Resolver, source DistrictSource) *Handler {
	return &Handler{Store: store, Resolver: res, Source: source}
}

// =============================================================================
// LISTING ENDPOINTS
// =============================================================================

// ListStates returns all states, falling back to the static enumeration
// while local storage is still empty.
func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.Store.ListStates(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(states) == 0 {
		names := h.Source.StateNames()
		states = make([]nrega.State, len(names))
		for i, name := range names {
			states[i] = nrega.State{Code: nrega.DeriveStateCode(name), Name: name}
		}
	}
	writeData(w, states, len(states))
}

// ListDistricts returns a state's districts, from local storage when
// possible, otherwise derived from the upstream record feed.
func (h *Handler) ListDistricts(w http.ResponseWriter, r *http.Request) {
	stateName := chi.URLParam(r, "state")
	if strings.TrimSpace(stateName) == "" {
		writeErr(w, &nrega.ValidationError{Param: "state", Message: "required"})
		return
	}

	state, err := h.Store.GetStateByName(r.Context(), stateName)
	if err != nil {
		writeErr(w, err)
		return
	}
	if state != nil {
		districts, err := h.Store.ListDistricts(r.Context(), state.Code)
		if err != nil {
			writeErr(w, err)
			return
		}
		if len(districts) > 0 {
			names := make([]string, len(districts))
			for i, d := range districts {
				names[i] = d.Name
			}
			writeData(w, names, len(names))
			return
		}
	}

	names, err := h.Source.FetchDistrictNames(r.Context(), stateName)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeData(w, names, len(names))
}

// ListYears returns known financial years, falling back to the supported
// fallback sequence while storage is empty.
func (h *Handler) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.Store.ListFinYears(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(years) == 0 {
		for _, label := range nrega.FallbackFinYears {
			years = append(years, nrega.ParseFinYear(label))
		}
	}
	writeData(w, years, len(years))
}

// =============================================================================
// PERFORMANCE ENDPOINTS
// =============================================================================

// GetPerformance runs the resolver protocol for one query.
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	q := resolver.Query{
		State:    r.URL.Query().Get("state"),
		FinYear:  r.URL.Query().Get("year"),
		District: r.URL.Query().Get("district"),
		Month:    r.URL.Query().Get("month"),
	}

	result, err := h.Resolver.Resolve(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}

	dto := PerformanceDTO{
		State:     result.State.Name,
		FinYear:   q.FinYear,
		Month:     q.Month,
		Records:   make([]RecordDTO, len(result.Records)),
		FreshAsOf: result.FreshAsOf.UTC().Format(time.RFC3339),
	}
	if result.District != nil {
		dto.District = result.District.Name
	}
	for i, rec := range result.Records {
		dto.Records[i] = toRecordDTO(rec)
	}
	writeData(w, dto, len(dto.Records))
}

// GetTrend returns a multi-year history for one district, walking
// backwards from the requested year. Years with no data appear as nil
// points rather than failing the request.
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	district := r.URL.Query().Get("district")
	if strings.TrimSpace(district) == "" {
		writeErr(w, &nrega.ValidationError{Param: "district", Message: "required"})
		return
	}
	span := 3
	if s := r.URL.Query().Get("years"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 10 {
			writeErr(w, &nrega.ValidationError{Param: "years", Message: "must be 1-10"})
			return
		}
		span = n
	}
	startYear := r.URL.Query().Get("year")
	if startYear == "" {
		startYear = nrega.CurrentFinYear(time.Now())
	}

	dto := TrendDTO{State: state, District: district}
	for _, year := range nrega.PreviousFinYears(startYear, span) {
		result, err := h.Resolver.Resolve(r.Context(), resolver.Query{
			State: state, FinYear: year, District: district,
		})
		if err != nil {
			if nrega.IsNotFound(err) {
				dto.Points = append(dto.Points, TrendPointDTO{FinYear: year})
				continue
			}
			writeErr(w, err)
			return
		}
		rec := toRecordDTO(result.Records[0])
		dto.Points = append(dto.Points, TrendPointDTO{FinYear: year, Record: &rec})
	}
	writeData(w, dto, len(dto.Points))
}

// GetStats returns the state-level aggregate for one year.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	year := r.URL.Query().Get("year")

	result, err := h.Resolver.Resolve(r.Context(), resolver.Query{State: state, FinYear: year})
	if err != nil {
		writeErr(w, err)
		return
	}

	dto := StatsDTO{
		State:     result.State.Name,
		FinYear:   year,
		Aggregate: nrega.Aggregate(result.Records),
	}
	writeData(w, dto, 0)
}

// GetTop returns the top-N districts ranked by a metric.
func (h *Handler) GetTop(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	year := r.URL.Query().Get("year")
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "averageDaysEmployment"
	}
	if _, ok := nrega.SelectMetric(metric); !ok {
		writeErr(w, &nrega.ValidationError{
			Param:   "metric",
			Message: "unknown metric, one of: " + strings.Join(nrega.MetricNames(), ", "),
		})
		return
	}
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			writeErr(w, &nrega.ValidationError{Param: "limit", Message: "must be 1-100"})
			return
		}
		limit = n
	}

	result, err := h.Resolver.Resolve(r.Context(), resolver.Query{State: state, FinYear: year})
	if err != nil {
		writeErr(w, err)
		return
	}

	entries, _ := nrega.TopN(latestPerDistrict(result.Records), metric, limit)
	writeData(w, TopDTO{State: result.State.Name, FinYear: year, Metric: metric, Entries: entries}, len(entries))
}

// Compare compares the named districts over one year.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	year := r.URL.Query().Get("year")
	districtsParam := r.URL.Query().Get("districts")
	names := splitList(districtsParam)
	if len(names) < 2 {
		writeErr(w, &nrega.ValidationError{Param: "districts", Message: "need at least two comma-separated names"})
		return
	}

	records := make([]nrega.PerformanceRecord, 0, len(names))
	for _, name := range names {
		result, err := h.Resolver.Resolve(r.Context(), resolver.Query{
			State: state, FinYear: year, District: name,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		// Most recent record for the district (month desc ordering).
		records = append(records, result.Records[0])
	}

	writeData(w, CompareDTO{State: state, FinYear: year, Comparison: nrega.Compare(records)}, len(names))
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]string{"status": "ok"}, 0)
}

// =============================================================================
// HELPERS
// =============================================================================

// latestPerDistrict keeps one record per district: the first in the
// month-desc ordering the store guarantees.
func latestPerDistrict(records []nrega.PerformanceRecord) []nrega.PerformanceRecord {
	seen := make(map[string]bool, len(records))
	out := make([]nrega.PerformanceRecord, 0, len(records))
	for _, rec := range records {
		if seen[rec.DistrictCode] {
			continue
		}
		seen[rec.DistrictCode] = true
		out = append(out, rec)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeData(w http.ResponseWriter, data any, count int) {
	env := Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if count > 0 {
		env.Count = &count
	}
	writeJSON(w, http.StatusOK, env)
}

func writeErr(w http.ResponseWriter, err error) {
	env := Envelope{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var nf *nrega.NotFoundError
	if errors.As(err, &nf) {
		env.Suggestions = nf.Suggestions
	}

	status := http.StatusInternalServerError
	switch {
	case nrega.IsClientError(err):
		status = http.StatusBadRequest
	case nrega.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, nrega.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, env)
}
