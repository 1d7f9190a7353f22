/*
normalize.go - Canonicalization of raw upstream records

PURPOSE:
  The upstream publishes flat key/value objects with inconsistent field
  naming: mixed casing, underscores, numbers serialized as strings, and at
  least one long-standing misspelling ("gererated"). This file maps that
  surface into nrega.CanonicalRecord and derives the state/district codes
  the upstream omits.

DERIVATION:
  State code:    static name->code table, fallback first two letters upper.
  District code: {StateCode}{3-letter prefix}{FNV-1a(name) mod 1000}.
  Both are pure functions of the record, so re-ingesting identical input
  always produces identical keys.
*/
package upstream

import (
	"strconv"
	"strings"

	"github.com/gramstat/nrega-insights/nrega"
)

// rawRecord is one flat upstream object. Values are strings or numbers
// depending on the field and the publication batch.
type rawRecord map[string]any

// str returns the first non-empty value among keys, matched
// case-insensitively.
func (r rawRecord) str(keys ...string) string {
	for _, key := range keys {
		if v, ok := r.lookup(key); ok {
			switch s := v.(type) {
			case string:
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					return trimmed
				}
			case float64:
				return strconv.FormatFloat(s, 'f', -1, 64)
			}
		}
	}
	return ""
}

// num returns the first parseable numeric value among keys. Unparseable or
// absent fields are zero, keeping downstream arithmetic null-free.
func (r rawRecord) num(keys ...string) float64 {
	for _, key := range keys {
		v, ok := r.lookup(key)
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case string:
			cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
			if cleaned == "" || cleaned == "NA" || cleaned == "null" {
				continue
			}
			if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func (r rawRecord) lookup(key string) (any, bool) {
	if v, ok := r[key]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// normalize maps a raw upstream object to the canonical shape, deriving
// codes when the upstream does not supply them.
func normalize(r rawRecord) nrega.CanonicalRecord {
	stateName := strings.ToUpper(r.str("state_name", "State_name", "state"))
	districtName := strings.ToUpper(r.str("district_name", "District_name", "district"))

	stateCode := r.str("state_code")
	if stateCode == "" {
		stateCode = nrega.DeriveStateCode(stateName)
	}
	districtCode := r.str("district_code")
	if districtCode == "" {
		districtCode = nrega.DeriveDistrictCode(districtName, stateCode)
	}

	month := nrega.NormalizeMonth(r.str("month", "Month"))
	if month == "" {
		month = "Total"
	}

	return nrega.CanonicalRecord{
		StateName:    stateName,
		StateCode:    stateCode,
		DistrictName: districtName,
		DistrictCode: districtCode,
		FinYear:      r.str("fin_year", "Fin_year", "financial_year"),
		Month:        month,
		Metrics: nrega.Metrics{
			ApprovedLabourBudget:   r.num("Approved_Labour_Budget", "approved_labour_budget"),
			AverageWageRate:        r.num("Average_Wage_rate_per_day_per_person", "average_wage_rate"),
			AverageDaysEmployment:  r.num("Average_days_of_employment_provided_per_Household", "average_days_of_employment"),
			HouseholdsWorked:       r.num("Total_Households_Worked", "total_households_worked"),
			IndividualsWorked:      r.num("Total_Individuals_Worked", "total_individuals_worked"),
			CompletedWorks:         r.num("Number_of_Completed_Works", "completed_works"),
			OngoingWorks:           r.num("Number_of_Ongoing_Works", "ongoing_works"),
			// The misspelling is the upstream's, and it is stable.
			PaymentWithin15DaysPct: r.num("percentage_payments_gererated_within_15_days", "percentage_payments_generated_within_15_days"),
			WomenPersondaysPct:     r.num("Women_Persondays", "women_persondays_percent"),
			SCPersondaysPct:        r.num("SC_persondays", "sc_persondays_percent"),
			STPersondaysPct:        r.num("ST_persondays", "st_persondays_percent"),
			TotalExpenditure:       r.num("Total_Exp", "total_expenditure"),
			WagesExpenditure:       r.num("Wages", "wages_expenditure"),
			MaterialExpenditure:    r.num("Material_and_skilled_Wages", "material_expenditure"),
			AdminExpenditure:       r.num("Total_Adm_Expenditure", "admin_expenditure"),
		},
		Extended: nrega.ExtendedMetrics{
			ActiveJobCards:             r.num("Total_No_of_Active_Job_Cards", "active_job_cards"),
			ActiveWorkers:              r.num("Total_No_of_Active_Workers", "active_workers"),
			JobCardsIssued:             r.num("Total_No_of_JobCards_issued", "jobcards_issued"),
			TotalWorkers:               r.num("Total_No_of_Workers", "total_workers"),
			DifferentlyAbledWorked:     r.num("Differently_abled_persons_worked", "differently_abled_worked"),
			GPsWithNilExpenditure:      r.num("Number_of_GPs_with_NIL_exp", "gps_with_nil_exp"),
			CategoryBWorksPct:          r.num("percent_of_Category_B_Works", "category_b_works_percent"),
			PersondaysCentralLiability: r.num("Persondays_of_Central_Liability_so_far", "persondays_central_liability"),
		},
	}
}
