/*
scoring.go - Derived performance score and grade

PURPOSE:
  Pure functions computing the composite performance score and letter grade
  from stored metric fields. Recomputed on every read; the score/grade
  columns in storage are only a denormalized cache and are never trusted.

SCORE MODEL:
  Four weighted, independently capped contributions:
    employment days:    min(avgDays/100 * 30, 30)
    payment timeliness: paymentPct * 0.25       (capped at 25)
    women persondays:   min(womenPct/50 * 20, 20)
    completion rate:    completed/(completed+ongoing) * 25 (0 if no works)
  Sum rounded to the nearest integer; range [0,100] by construction.

PRECISION:
  Contributions are accumulated as decimal.Decimal so the rounded result is
  stable regardless of evaluation order.
*/
package nrega

import "github.com/shopspring/decimal"

// =============================================================================
// SCORE
// =============================================================================

var (
	hundred    = decimal.NewFromInt(100)
	fifty      = decimal.NewFromInt(50)
	employCap  = decimal.NewFromInt(30)
	paymentCap = decimal.NewFromInt(25)
	womenCap   = decimal.NewFromInt(20)
	completeW  = decimal.NewFromInt(25)
	quarter    = decimal.NewFromFloat(0.25)
)

// Score computes the composite performance score for a record's metrics.
// Deterministic: fixed inputs always yield the same value.
func Score(m Metrics) int {
	days := decimal.NewFromFloat(m.AverageDaysEmployment)
	employ := decimal.Min(days.Div(hundred).Mul(employCap), employCap)

	payment := decimal.Min(decimal.NewFromFloat(m.PaymentWithin15DaysPct).Mul(quarter), paymentCap)

	women := decimal.Min(decimal.NewFromFloat(m.WomenPersondaysPct).Div(fifty).Mul(womenCap), womenCap)

	completion := decimal.Zero
	totalWorks := m.CompletedWorks + m.OngoingWorks
	if totalWorks > 0 {
		completion = decimal.NewFromFloat(m.CompletedWorks).
			Div(decimal.NewFromFloat(totalWorks)).
			Mul(completeW)
	}

	score := employ.Add(payment).Add(women).Add(completion).Round(0).IntPart()
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// =============================================================================
// GRADE
// =============================================================================

// Grade carries the letter, a human label and a display color.
type Grade struct {
	Letter string `json:"letter"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

var grades = []struct {
	min   int
	grade Grade
}{
	{80, Grade{Letter: "A", Label: "Excellent", Color: "#22c55e"}},
	{60, Grade{Letter: "B", Label: "Good", Color: "#84cc16"}},
	{40, Grade{Letter: "C", Label: "Average", Color: "#eab308"}},
	{20, Grade{Letter: "D", Label: "Poor", Color: "#f97316"}},
	{0, Grade{Letter: "E", Label: "Very Poor", Color: "#ef4444"}},
}

// GradeFor maps a score to its letter grade.
func GradeFor(score int) Grade {
	for _, g := range grades {
		if score >= g.min {
			return g.grade
		}
	}
	return grades[len(grades)-1].grade
}

// Rescore overwrites the denormalized score/grade fields of a record from
// its current metrics. Call on every read path before returning records.
func Rescore(rec *PerformanceRecord) {
	rec.Score = Score(rec.Metrics)
	rec.Grade = GradeFor(rec.Score).Letter
}
