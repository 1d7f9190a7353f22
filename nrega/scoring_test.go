package nrega

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// SCORE TESTS
// =============================================================================

func TestScore_Deterministic(t *testing.T) {
	// GIVEN: fixed metric inputs
	// WHEN: computing the score repeatedly
	// THEN: every call returns the same value

	m := Metrics{
		AverageDaysEmployment:  62.5,
		PaymentWithin15DaysPct: 91.2,
		WomenPersondaysPct:     47.8,
		CompletedWorks:         320,
		OngoingWorks:           180,
	}

	first := Score(m)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Score(m))
	}
}

func TestScore_ZeroMetrics(t *testing.T) {
	// All-zero inputs: no works means the completion component is zero,
	// not a division by zero.
	assert.Equal(t, 0, Score(Metrics{}))
}

func TestScore_ComponentsCapIndependently(t *testing.T) {
	// GIVEN: inputs far above the component caps
	// THEN: each contribution caps, so the total is exactly 100

	m := Metrics{
		AverageDaysEmployment:  500, // employment caps at 30
		PaymentWithin15DaysPct: 100, // payment contributes 25
		WomenPersondaysPct:     99,  // women caps at 20
		CompletedWorks:         10,  // completion full 25
		OngoingWorks:           0,
	}
	assert.Equal(t, 100, Score(m))
}

func TestScore_AlwaysInRange(t *testing.T) {
	cases := []Metrics{
		{},
		{AverageDaysEmployment: 100, PaymentWithin15DaysPct: 100, WomenPersondaysPct: 50, CompletedWorks: 1},
		{AverageDaysEmployment: 33.3, PaymentWithin15DaysPct: 12.5, WomenPersondaysPct: 60, CompletedWorks: 5, OngoingWorks: 7},
		{AverageDaysEmployment: 0.1, PaymentWithin15DaysPct: 0.1, WomenPersondaysPct: 0.1, OngoingWorks: 99},
	}
	for _, m := range cases {
		score := Score(m)
		if score < 0 || score > 100 {
			t.Errorf("score %d out of range for %+v", score, m)
		}
	}
}

func TestScore_CompletionRate(t *testing.T) {
	// 50 completed of 100 total works = half of the 25-point component.
	m := Metrics{CompletedWorks: 50, OngoingWorks: 50}
	assert.Equal(t, 13, Score(m), "12.5 rounds half away from zero")
}

// =============================================================================
// GRADE TESTS
// =============================================================================

func TestGradeFor_Boundaries(t *testing.T) {
	cases := []struct {
		score  int
		letter string
	}{
		{100, "A"}, {80, "A"},
		{79, "B"}, {60, "B"},
		{59, "C"}, {40, "C"},
		{39, "D"}, {20, "D"},
		{19, "E"}, {0, "E"},
	}
	for _, tc := range cases {
		g := GradeFor(tc.score)
		assert.Equal(t, tc.letter, g.Letter, "score %d", tc.score)
		assert.NotEmpty(t, g.Label)
		assert.NotEmpty(t, g.Color)
	}
}

func TestRescore_OverwritesStoredFields(t *testing.T) {
	// Stored score/grade are a cache, never the authority.
	rec := PerformanceRecord{
		Metrics: Metrics{AverageDaysEmployment: 500, PaymentWithin15DaysPct: 100,
			WomenPersondaysPct: 99, CompletedWorks: 10},
		Score: 7,
		Grade: "E",
	}
	Rescore(&rec)
	assert.Equal(t, 100, rec.Score)
	assert.Equal(t, "A", rec.Grade)
}
