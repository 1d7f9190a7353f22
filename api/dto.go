/*
dto.go - Response shapes for the HTTP API

PURPOSE:
  Defines the JSON structures returned to clients, decoupled from the
  internal domain model. All responses share one envelope:

    {success, data, count?, timestamp, error?}

VALIDATION:
  Query-parameter validation happens in handlers before any lookup; DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: builds these types
*/
package api

import (
	"time"

	"github.com/gramstat/nrega-insights/nrega"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope wraps every API response.
type Envelope struct {
	Success     bool     `json:"success"`
	Data        any      `json:"data,omitempty"`
	Count       *int     `json:"count,omitempty"`
	Timestamp   string   `json:"timestamp"`
	Error       string   `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// RecordDTO is one performance record with its recomputed derived fields.
type RecordDTO struct {
	District string `json:"district"`
	State    string `json:"state"`
	FinYear  string `json:"fin_year"`
	Month    string `json:"month"`

	nrega.Metrics

	Score     int         `json:"score"`
	Grade     nrega.Grade `json:"grade"`
	UpdatedAt string      `json:"updated_at"`
}

// PerformanceDTO is the payload of the performance endpoint.
type PerformanceDTO struct {
	State     string      `json:"state"`
	District  string      `json:"district,omitempty"`
	FinYear   string      `json:"fin_year"`
	Month     string      `json:"month,omitempty"`
	Records   []RecordDTO `json:"records"`
	FreshAsOf string      `json:"fresh_as_of"`
}

// TrendPointDTO is one year of the historical trend.
type TrendPointDTO struct {
	FinYear string     `json:"fin_year"`
	Record  *RecordDTO `json:"record"` // nil when the year has no data
}

// TrendDTO is the payload of the trend endpoint.
type TrendDTO struct {
	State    string          `json:"state"`
	District string          `json:"district"`
	Points   []TrendPointDTO `json:"points"`
}

// StatsDTO is the payload of the aggregate statistics endpoint.
type StatsDTO struct {
	State     string               `json:"state"`
	FinYear   string               `json:"fin_year"`
	Aggregate nrega.StateAggregate `json:"aggregate"`
}

// TopDTO is the payload of the top-N endpoint.
type TopDTO struct {
	State   string              `json:"state"`
	FinYear string              `json:"fin_year"`
	Metric  string              `json:"metric"`
	Entries []nrega.RankedEntry `json:"entries"`
}

// CompareDTO is the payload of the comparison endpoint.
type CompareDTO struct {
	State      string           `json:"state"`
	FinYear    string           `json:"fin_year"`
	Comparison nrega.Comparison `json:"comparison"`
}

func toRecordDTO(rec nrega.PerformanceRecord) RecordDTO {
	nrega.Rescore(&rec)
	return RecordDTO{
		District:  rec.DistrictName,
		State:     rec.StateName,
		FinYear:   rec.FinYear,
		Month:     rec.Month,
		Metrics:   rec.Metrics,
		Score:     rec.Score,
		Grade:     nrega.GradeFor(rec.Score),
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
