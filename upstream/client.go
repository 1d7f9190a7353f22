/*
client.go - Client for the data.gov.in performance statistics resource

PURPOSE:
  Fetches raw records from the government open-data API, filtered by state,
  financial year and optionally district, and normalizes them into
  nrega.CanonicalRecord. Successful responses are cached so identical
  queries inside the TTL window make no network call.

REQUEST SHAPE:
  GET {base}/resource/{resourceID}
    ?api-key=...&format=json&limit=...
    &filters[state_name]=KERALA
    &filters[fin_year]=2024-2025
    &filters[district_name]=IDUKKI        (optional)

ERROR CONTRACT:
  - Empty record set: not an error, returns an empty slice.
  - Transport failure / timeout / non-2xx: *nrega.UpstreamError, which
    unwraps to nrega.ErrUpstreamUnavailable. Never swallowed here; the
    resolver decides whether the request can still succeed on local data.

CACHING:
  records:{STATE}:{year}:{district|all}  -> []nrega.CanonicalRecord, 1h
  states list                            -> 24h

SEE ALSO:
  - normalize.go: raw-record field mapping and code derivation
  - resolver/resolver.go: the only production caller
*/
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/gramstat/nrega-insights/cache"
	"github.com/gramstat/nrega-insights/nrega"
)

const (
	defaultBaseURL    = "https://api.data.gov.in"
	defaultResourceID = "ee03643a-ee4c-48c2-ac30-9f2ff26ab722"
	defaultPageSize   = 1000
	requestTimeout    = 15 * time.Second

	recordsTTL = time.Hour
	statesTTL  = 24 * time.Hour
)

var (
	upstreamRequests = metrics.NewCounter("upstream_requests_total")
	upstreamFailures = metrics.NewCounter("upstream_failures_total")
)

// Config configures the client. Zero values fall back to defaults except
// APIKey, which is required for live use.
type Config struct {
	BaseURL    string
	ResourceID string
	APIKey     string
	PageSize   int
}

// Client talks to the open-data API. Safe for concurrent use.
type Client struct {
	cfg   Config
	http  *http.Client
	cache cache.Cache
}

// New creates a client with a bounded request timeout.
func New(cfg Config, c cache.Cache) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = defaultResourceID
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: requestTimeout},
		cache: c,
	}
}

// envelope is the upstream response wrapper. Only the records array
// matters; the rest of the envelope is metadata we ignore.
type envelope struct {
	Records []rawRecord `json:"records"`
}

// FetchRecords returns normalized records for (state, finYear, district).
// district may be empty for a state-wide fetch. Absence of results is not
// an error.
func (c *Client) FetchRecords(ctx context.Context, state, finYear, district string) ([]nrega.CanonicalRecord, error) {
	key := cacheKey(state, finYear, district)
	if cached, ok := c.cache.Get(key); ok {
		if records, ok := cached.([]nrega.CanonicalRecord); ok {
			return records, nil
		}
	}

	raw, err := c.fetch(ctx, state, finYear, district)
	if err != nil {
		return nil, err
	}

	records := make([]nrega.CanonicalRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, normalize(r))
	}

	// Only non-empty responses are worth remembering; an empty answer may
	// just mean the upstream has not published the period yet.
	if len(records) > 0 {
		c.cache.Set(key, records, recordsTTL)
	}
	return records, nil
}

// FetchDistrictNames derives the district name list for a state from the
// most recent fin year that yields records. There is no separate upstream
// endpoint for this.
func (c *Client) FetchDistrictNames(ctx context.Context, state string) ([]string, error) {
	var lastErr error
	for _, year := range nrega.FallbackFinYears {
		records, err := c.FetchRecords(ctx, state, year, "")
		if err != nil {
			lastErr = err
			continue
		}
		if len(records) == 0 {
			continue
		}
		seen := make(map[string]bool, len(records))
		names := make([]string, 0, len(records))
		for _, rec := range records {
			if rec.DistrictName == "" || seen[rec.DistrictName] {
				continue
			}
			seen[rec.DistrictName] = true
			names = append(names, rec.DistrictName)
		}
		sort.Strings(names)
		return names, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return []string{}, nil
}

// StateNames returns the closed state enumeration, cached for 24h. The
// list is static, but routing it through the cache keeps the read path
// uniform with a future dynamic source.
func (c *Client) StateNames() []string {
	const key = "states"
	if cached, ok := c.cache.Get(key); ok {
		if names, ok := cached.([]string); ok {
			return names
		}
	}
	names := nrega.KnownStates()
	c.cache.Set(key, names, statesTTL)
	return names
}

func (c *Client) fetch(ctx context.Context, state, finYear, district string) ([]rawRecord, error) {
	upstreamRequests.Inc()

	q := url.Values{}
	q.Set("api-key", c.cfg.APIKey)
	q.Set("format", "json")
	q.Set("limit", fmt.Sprintf("%d", c.cfg.PageSize))
	q.Set("filters[state_name]", strings.ToUpper(strings.TrimSpace(state)))
	q.Set("filters[fin_year]", finYear)
	if district != "" {
		q.Set("filters[district_name]", strings.ToUpper(strings.TrimSpace(district)))
	}

	endpoint := fmt.Sprintf("%s/resource/%s?%s", c.cfg.BaseURL, c.cfg.ResourceID, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		upstreamFailures.Inc()
		return nil, &nrega.UpstreamError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		upstreamFailures.Inc()
		return nil, &nrega.UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstreamFailures.Inc()
		return nil, &nrega.UpstreamError{Status: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		upstreamFailures.Inc()
		return nil, &nrega.UpstreamError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return env.Records, nil
}

func cacheKey(state, finYear, district string) string {
	d := strings.ToUpper(strings.TrimSpace(district))
	if d == "" {
		d = "all"
	}
	return fmt.Sprintf("records:%s:%s:%s",
		strings.ToUpper(strings.TrimSpace(state)), finYear, d)
}
