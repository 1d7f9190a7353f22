/*
aggregate.go - State-level rollups, rankings and district comparisons

PURPOSE:
  Aggregate statistics over already-resolved record sets. No storage or
  upstream interaction happens here; callers pass in the records the
  resolver produced.

RANKING SEMANTICS:
  Rankings are by metric value descending. Ties share the rank of the first
  occurrence in the sorted order (1,1,3 - not 1,2,3).
*/
package nrega

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// METRIC SELECTION
// =============================================================================

// metricSelectors maps the metric names accepted by the top/compare
// endpoints to field extractors.
var metricSelectors = map[string]func(Metrics) float64{
	"approvedLabourBudget":   func(m Metrics) float64 { return m.ApprovedLabourBudget },
	"averageWageRate":        func(m Metrics) float64 { return m.AverageWageRate },
	"averageDaysEmployment":  func(m Metrics) float64 { return m.AverageDaysEmployment },
	"householdsWorked":       func(m Metrics) float64 { return m.HouseholdsWorked },
	"individualsWorked":      func(m Metrics) float64 { return m.IndividualsWorked },
	"completedWorks":         func(m Metrics) float64 { return m.CompletedWorks },
	"ongoingWorks":           func(m Metrics) float64 { return m.OngoingWorks },
	"paymentWithin15Days":    func(m Metrics) float64 { return m.PaymentWithin15DaysPct },
	"womenPersondays":        func(m Metrics) float64 { return m.WomenPersondaysPct },
	"totalExpenditure":       func(m Metrics) float64 { return m.TotalExpenditure },
	"wagesExpenditure":       func(m Metrics) float64 { return m.WagesExpenditure },
}

// MetricNames returns the accepted metric names, sorted.
func MetricNames() []string {
	names := make([]string, 0, len(metricSelectors))
	for name := range metricSelectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectMetric returns the extractor for a metric name.
func SelectMetric(name string) (func(Metrics) float64, bool) {
	sel, ok := metricSelectors[name]
	return sel, ok
}

// =============================================================================
// STATE AGGREGATES
// =============================================================================

// StateAggregate is the state-level rollup for one fin year.
type StateAggregate struct {
	Districts            int     `json:"districts"`
	Records              int     `json:"records"`
	TotalExpenditure     float64 `json:"total_expenditure"`
	TotalHouseholds      float64 `json:"total_households_worked"`
	TotalIndividuals     float64 `json:"total_individuals_worked"`
	TotalCompletedWorks  float64 `json:"total_completed_works"`
	TotalOngoingWorks    float64 `json:"total_ongoing_works"`
	AvgDaysEmployment    float64 `json:"avg_days_employment"`
	AvgWageRate          float64 `json:"avg_wage_rate"`
	AvgPaymentTimeliness float64 `json:"avg_payment_timeliness"`
	AvgWomenPersondays   float64 `json:"avg_women_persondays"`
	AvgScore             float64 `json:"avg_score"`
}

// Aggregate computes the state-level rollup over a record set. Sums and
// averages accumulate as decimals so results do not drift with input order.
func Aggregate(records []PerformanceRecord) StateAggregate {
	agg := StateAggregate{Records: len(records)}
	if len(records) == 0 {
		return agg
	}

	var (
		exp, hh, ind, done, ongoing          decimal.Decimal
		days, wage, payment, women, scoreSum decimal.Decimal
	)
	districts := make(map[string]bool)

	for i := range records {
		rec := &records[i]
		Rescore(rec)
		districts[rec.DistrictCode] = true

		exp = exp.Add(decimal.NewFromFloat(rec.TotalExpenditure))
		hh = hh.Add(decimal.NewFromFloat(rec.HouseholdsWorked))
		ind = ind.Add(decimal.NewFromFloat(rec.IndividualsWorked))
		done = done.Add(decimal.NewFromFloat(rec.CompletedWorks))
		ongoing = ongoing.Add(decimal.NewFromFloat(rec.OngoingWorks))
		days = days.Add(decimal.NewFromFloat(rec.AverageDaysEmployment))
		wage = wage.Add(decimal.NewFromFloat(rec.AverageWageRate))
		payment = payment.Add(decimal.NewFromFloat(rec.PaymentWithin15DaysPct))
		women = women.Add(decimal.NewFromFloat(rec.WomenPersondaysPct))
		scoreSum = scoreSum.Add(decimal.NewFromInt(int64(rec.Score)))
	}

	n := decimal.NewFromInt(int64(len(records)))
	agg.Districts = len(districts)
	agg.TotalExpenditure, _ = exp.Round(2).Float64()
	agg.TotalHouseholds, _ = hh.Float64()
	agg.TotalIndividuals, _ = ind.Float64()
	agg.TotalCompletedWorks, _ = done.Float64()
	agg.TotalOngoingWorks, _ = ongoing.Float64()
	agg.AvgDaysEmployment, _ = days.Div(n).Round(2).Float64()
	agg.AvgWageRate, _ = wage.Div(n).Round(2).Float64()
	agg.AvgPaymentTimeliness, _ = payment.Div(n).Round(2).Float64()
	agg.AvgWomenPersondays, _ = women.Div(n).Round(2).Float64()
	agg.AvgScore, _ = scoreSum.Div(n).Round(2).Float64()
	return agg
}

// =============================================================================
// RANKINGS
// =============================================================================

// RankedEntry is one row of a ranking or comparison.
type RankedEntry struct {
	District string  `json:"district"`
	Value    float64 `json:"value"`
	Rank     int     `json:"rank"`
	Score    int     `json:"score"`
	Grade    string  `json:"grade"`
}

// TopN ranks records by the chosen metric descending and returns the first
// n entries. Ties share the first-occurrence rank.
func TopN(records []PerformanceRecord, metric string, n int) ([]RankedEntry, bool) {
	sel, ok := metricSelectors[metric]
	if !ok {
		return nil, false
	}
	ranked := rank(records, sel)
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked, true
}

// Comparison is the result of comparing districts on every known metric:
// parallel arrays of values plus per-metric rankings.
type Comparison struct {
	Districts []string                 `json:"districts"`
	Values    map[string][]float64     `json:"values"`
	Rankings  map[string][]RankedEntry `json:"rankings"`
}

// Compare builds a comparison matrix over the given records, one entry per
// record, in input order for Values and ranked order for Rankings.
func Compare(records []PerformanceRecord) Comparison {
	cmp := Comparison{
		Districts: make([]string, len(records)),
		Values:    make(map[string][]float64, len(metricSelectors)),
		Rankings:  make(map[string][]RankedEntry, len(metricSelectors)),
	}
	for i := range records {
		Rescore(&records[i])
		cmp.Districts[i] = records[i].DistrictName
	}
	for name, sel := range metricSelectors {
		values := make([]float64, len(records))
		for i := range records {
			values[i] = sel(records[i].Metrics)
		}
		cmp.Values[name] = values
		cmp.Rankings[name] = rank(records, sel)
	}
	return cmp
}

func rank(records []PerformanceRecord, sel func(Metrics) float64) []RankedEntry {
	entries := make([]RankedEntry, len(records))
	for i := range records {
		Rescore(&records[i])
		entries[i] = RankedEntry{
			District: records[i].DistrictName,
			Value:    sel(records[i].Metrics),
			Score:    records[i].Score,
			Grade:    records[i].Grade,
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	for i := range entries {
		if i > 0 && entries[i].Value == entries[i-1].Value {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}
