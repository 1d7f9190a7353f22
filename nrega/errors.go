/*
errors.go - Centralized error types for the statistics engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Layers wrap these sentinels with request context; handlers map them
  to HTTP status codes with errors.Is/errors.As.

ERROR CATEGORIES:
  1. Validation errors - bad query parameters, rejected before any lookup
  2. Not-found outcomes - terminal for a request, carry suggestions
  3. Upstream errors - transport/timeout/non-2xx from the open-data API
  4. Storage errors - transaction failures, always a hard failure

USAGE:
  Wrap with context, match with the sentinel:

    if errors.Is(err, nrega.ErrNoData) { ... }

    var nf *nrega.NotFoundError
    if errors.As(err, &nf) { suggestions := nf.Suggestions }

SEE ALSO:
  - resolver/resolver.go: produces the not-found outcomes
  - api/handlers.go: maps errors to HTTP responses
*/
package nrega

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for missing or malformed query parameters.
	// Requests failing validation have no side effects.
	ErrValidation = errors.New("invalid request")

	// ErrStateNotFound is returned when a state is unknown locally and the
	// upstream yielded nothing for any attempted fin year.
	ErrStateNotFound = errors.New("state not found")

	// ErrDistrictNotFound is returned when a requested district cannot be
	// resolved within a known state, even after a scoped upstream attempt.
	ErrDistrictNotFound = errors.New("district not found")

	// ErrNoData is returned when the state (and district, if given) are
	// known but no records exist for the requested period.
	ErrNoData = errors.New("no data for requested period")

	// ErrUpstreamUnavailable is returned when the open-data API cannot be
	// reached or answers with a non-2xx status.
	ErrUpstreamUnavailable = errors.New("upstream data source unavailable")

	// ErrStorage is returned when a storage transaction fails. The whole
	// reconciliation batch is rolled back.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending parameter.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError is the terminal not-found outcome of the resolver protocol.
// Kind is one of the not-found sentinels; Suggestions lists alternate fin
// years that were checked or are worth trying.
type NotFoundError struct {
	Kind        error // ErrStateNotFound, ErrDistrictNotFound or ErrNoData
	State       string
	District    string
	FinYear     string
	Month       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: state=%q", e.Kind, e.State)
	if e.District != "" {
		fmt.Fprintf(&b, " district=%q", e.District)
	}
	if e.FinYear != "" {
		fmt.Fprintf(&b, " year=%s", e.FinYear)
	}
	if e.Month != "" {
		fmt.Fprintf(&b, " month=%s", e.Month)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (try: %s)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

func (e *NotFoundError) Unwrap() error { return e.Kind }

// UpstreamError wraps a transport or protocol failure from the data source.
type UpstreamError struct {
	Status int // 0 when the request never completed
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error is any of the not-found outcomes.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStateNotFound) ||
		errors.Is(err, ErrDistrictNotFound) ||
		errors.Is(err, ErrNoData)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}
