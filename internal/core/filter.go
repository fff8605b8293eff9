package core

import "strings"

// StatusAll disables the payment status filter.
const StatusAll = "ALL"

// FilterCases returns the cases whose patient name, hospital or diagnosis
// contains query (case-insensitive) and whose payment status equals status.
// An empty status or StatusAll matches every status.
func FilterCases(cases []CaseEntry, query, status string) []CaseEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	status = strings.TrimSpace(status)
	out := make([]CaseEntry, 0, len(cases))
	for _, c := range cases {
		if q != "" &&
			!strings.Contains(strings.ToLower(c.PatientName), q) &&
			!strings.Contains(strings.ToLower(c.Hospital), q) &&
			!strings.Contains(strings.ToLower(c.Diagnosis), q) {
			continue
		}
		if status != "" && status != StatusAll && string(c.PaymentStatus) != status {
			continue
		}
		out = append(out, c)
	}
	return out
}
