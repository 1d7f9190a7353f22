package nrega

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// FIN YEAR - The reporting period for all performance records
// =============================================================================

// Indian financial years run April through March, labeled "2024-2025".

// FallbackFinYears is the ordered list the resolver walks when the requested
// period yields nothing upstream: most recent known-good first.
var FallbackFinYears = []string{
	"2024-2025",
	"2023-2024",
	"2022-2023",
	"2021-2022",
	"2020-2021",
}

// CurrentFinYear returns the label of the financial year containing now.
func CurrentFinYear(now time.Time) string {
	start := now.Year()
	if now.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

// ParseFinYear parses a "YYYY-YYYY" label into a FinYear. A malformed label
// does not fail the caller's batch: it defaults to the current year span and
// keeps the original label as the key.
func ParseFinYear(label string) FinYear {
	parts := strings.SplitN(label, "-", 2)
	if len(parts) == 2 {
		start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 == nil && err2 == nil && start > 0 && end > 0 {
			return FinYear{Label: label, StartYear: start, EndYear: end}
		}
	}
	year := time.Now().Year()
	return FinYear{Label: label, StartYear: year, EndYear: year + 1}
}

// PreviousFinYears returns up to n labels walking backwards from the given
// label, the given label first. Used by the trend endpoint.
func PreviousFinYears(label string, n int) []string {
	fy := ParseFinYear(label)
	years := make([]string, 0, n)
	for i := 0; i < n; i++ {
		years = append(years, fmt.Sprintf("%d-%d", fy.StartYear-i, fy.EndYear-i))
	}
	return years
}

// =============================================================================
// MONTHS
// =============================================================================

// monthOrder ranks upstream month labels for descending sort; the annual
// rollup ("Total") ranks above any single month.
var monthOrder = map[string]int{
	"Total": 13,
	"Mar":   12, "Feb": 11, "Jan": 10, "Dec": 9, "Nov": 8, "Oct": 7,
	"Sep": 6, "Aug": 5, "Jul": 4, "Jun": 3, "May": 2, "Apr": 1,
}

// MonthRank returns the sort rank of a month label within a financial year.
// Unknown labels rank lowest.
func MonthRank(month string) int {
	return monthOrder[normalizeMonth(month)]
}

func normalizeMonth(month string) string {
	m := strings.TrimSpace(month)
	if strings.EqualFold(m, "Total") {
		return "Total"
	}
	if len(m) > 3 {
		m = m[:3]
	}
	if m == "" {
		return ""
	}
	return strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
}

// NormalizeMonth canonicalizes an upstream month label ("JANUARY", "jan",
// "Total") into the stored three-letter form.
func NormalizeMonth(month string) string {
	return normalizeMonth(month)
}
