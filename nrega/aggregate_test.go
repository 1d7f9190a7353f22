package nrega

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(district string, days float64) PerformanceRecord {
	return PerformanceRecord{
		DistrictCode: "KL" + district[:3],
		DistrictName: district,
		StateCode:    "KL",
		StateName:    "KERALA",
		FinYear:      "2024-2025",
		Month:        "Total",
		Metrics: Metrics{
			AverageDaysEmployment:  days,
			PaymentWithin15DaysPct: 80,
			WomenPersondaysPct:     55,
			CompletedWorks:         100,
			OngoingWorks:           50,
			TotalExpenditure:       1000,
			HouseholdsWorked:       5000,
		},
	}
}

// =============================================================================
// COMPARISON / RANKING TESTS
// =============================================================================

func TestCompare_ThreeDistricts_RanksDescending(t *testing.T) {
	// GIVEN: three districts with distinct averageDaysEmployment values
	// WHEN: comparing them
	// THEN: the ranking has exactly 3 entries, sorted descending, ranks 1..3

	records := []PerformanceRecord{
		record("IDUKKI", 40),
		record("PALAKKAD", 70),
		record("WAYANAD", 55),
	}

	cmp := Compare(records)
	ranking := cmp.Rankings["averageDaysEmployment"]
	require.Len(t, ranking, 3)

	assert.Equal(t, "PALAKKAD", ranking[0].District)
	assert.Equal(t, 1, ranking[0].Rank)
	assert.Equal(t, "WAYANAD", ranking[1].District)
	assert.Equal(t, 2, ranking[1].Rank)
	assert.Equal(t, "IDUKKI", ranking[2].District)
	assert.Equal(t, 3, ranking[2].Rank)

	// Parallel value arrays stay in input order.
	assert.Equal(t, []float64{40, 70, 55}, cmp.Values["averageDaysEmployment"])
	assert.Equal(t, []string{"IDUKKI", "PALAKKAD", "WAYANAD"}, cmp.Districts)
}

func TestCompare_TiesShareFirstOccurrenceRank(t *testing.T) {
	// Two districts tied on the metric both receive the first-occurrence
	// rank; the next distinct value takes its positional rank.
	records := []PerformanceRecord{
		record("IDUKKI", 70),
		record("PALAKKAD", 70),
		record("WAYANAD", 55),
	}

	ranking := Compare(records).Rankings["averageDaysEmployment"]
	require.Len(t, ranking, 3)
	assert.Equal(t, 1, ranking[0].Rank)
	assert.Equal(t, 1, ranking[1].Rank)
	assert.Equal(t, 3, ranking[2].Rank)
}

func TestTopN_LimitsAndRejectsUnknownMetric(t *testing.T) {
	records := []PerformanceRecord{
		record("IDUKKI", 40),
		record("PALAKKAD", 70),
		record("WAYANAD", 55),
	}

	top, ok := TopN(records, "averageDaysEmployment", 2)
	require.True(t, ok)
	require.Len(t, top, 2)
	assert.Equal(t, "PALAKKAD", top[0].District)

	_, ok = TopN(records, "notAMetric", 2)
	assert.False(t, ok)
}

// =============================================================================
// AGGREGATE TESTS
// =============================================================================

func TestAggregate_SumsAndAverages(t *testing.T) {
	records := []PerformanceRecord{
		record("IDUKKI", 40),
		record("PALAKKAD", 60),
	}

	agg := Aggregate(records)
	assert.Equal(t, 2, agg.Records)
	assert.Equal(t, 2, agg.Districts)
	assert.Equal(t, 2000.0, agg.TotalExpenditure)
	assert.Equal(t, 10000.0, agg.TotalHouseholds)
	assert.Equal(t, 50.0, agg.AvgDaysEmployment)
	assert.Equal(t, 80.0, agg.AvgPaymentTimeliness)
	assert.Greater(t, agg.AvgScore, 0.0)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil)
	assert.Equal(t, 0, agg.Records)
	assert.Equal(t, 0.0, agg.TotalExpenditure)
}

func TestMetricNames_MatchesSelectors(t *testing.T) {
	names := MetricNames()
	assert.NotEmpty(t, names)
	for _, name := range names {
		_, ok := SelectMetric(name)
		assert.True(t, ok, name)
	}
}
