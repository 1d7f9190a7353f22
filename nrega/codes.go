package nrega

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// =============================================================================
// CODE DERIVATION - deterministic surrogate keys for geographic entities
// =============================================================================

// stateCodes maps upstream state names to their census codes. The upstream
// records carry names only; codes are our stable keys.
var stateCodes = map[string]string{
	"ANDHRA PRADESH":    "AP",
	"ARUNACHAL PRADESH": "AR",
	"ASSAM":             "AS",
	"BIHAR":             "BR",
	"CHHATTISGARH":      "CG",
	"GOA":               "GA",
	"GUJARAT":           "GJ",
	"HARYANA":           "HR",
	"HIMACHAL PRADESH":  "HP",
	"JHARKHAND":         "JH",
	"KARNATAKA":         "KA",
	"KERALA":            "KL",
	"MADHYA PRADESH":    "MP",
	"MAHARASHTRA":       "MH",
	"MANIPUR":           "MN",
	"MEGHALAYA":         "ML",
	"MIZORAM":           "MZ",
	"NAGALAND":          "NL",
	"ODISHA":            "OD",
	"PUNJAB":            "PB",
	"RAJASTHAN":         "RJ",
	"SIKKIM":            "SK",
	"TAMIL NADU":        "TN",
	"TELANGANA":         "TG",
	"TRIPURA":           "TR",
	"UTTAR PRADESH":     "UP",
	"UTTARAKHAND":       "UK",
	"WEST BENGAL":       "WB",
	"ANDAMAN AND NICOBAR": "AN",
	"CHANDIGARH":          "CH",
	"DADRA AND NAGAR HAVELI AND DAMAN AND DIU": "DN",
	"JAMMU AND KASHMIR": "JK",
	"LADAKH":            "LA",
	"LAKSHADWEEP":       "LD",
	"PUDUCHERRY":        "PY",
}

// DeriveStateCode returns the census code for a state name, falling back to
// the first two letters uppercased for names outside the table.
func DeriveStateCode(name string) string {
	key := strings.ToUpper(strings.TrimSpace(name))
	if code, ok := stateCodes[key]; ok {
		return code
	}
	if len(key) >= 2 {
		return key[:2]
	}
	return key
}

// DeriveDistrictCode builds a surrogate district code from the district name
// and its parent state code:
//
//	{StateCode}{first 3 letters of name, upper}{FNV-1a(name) mod 1000, zero-padded}
//
// The derivation is a pure function of its inputs, so repeated ingestion of
// the same upstream row always lands on the same key. Distinct names sharing
// a prefix and hash residue can collide; that risk is accepted (the hash is
// over the full name, which keeps it rare in practice).
func DeriveDistrictCode(name, stateCode string) string {
	clean := strings.ToUpper(strings.TrimSpace(name))
	prefix := clean
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	prefix = strings.ReplaceAll(prefix, " ", "")

	h := fnv.New32a()
	h.Write([]byte(clean))
	return fmt.Sprintf("%s%s%03d", stateCode, prefix, h.Sum32()%1000)
}

// KnownStates returns the closed enumeration of state names, sorted. This
// backs the states listing when local storage is still empty.
func KnownStates() []string {
	names := make([]string, 0, len(stateCodes))
	for name := range stateCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
