package summary

import (
	"slices"

	"github.com/shopspring/decimal"

	"casebook/internal/core"
)

// TotalEarnings is the sum of all case amounts.
func TotalEarnings(cases []core.CaseEntry) decimal.Decimal {
	return core.SumAmounts(cases)
}

// AveragePerCase returns the mean amount rounded to two decimals, zero for
// an empty list.
func AveragePerCase(cases []core.CaseEntry) decimal.Decimal {
	if len(cases) == 0 {
		return decimal.Zero
	}
	return core.SumAmounts(cases).Div(decimal.NewFromInt(int64(len(cases)))).Round(2)
}

// TopHospital returns the hospital with the highest total. Ties go to the
// hospital seen first.
func TopHospital(cases []core.CaseEntry) (core.HospitalTotal, bool) {
	totals := HospitalTotals(cases)
	if len(totals) == 0 {
		return core.HospitalTotal{}, false
	}
	slices.SortStableFunc(totals, func(a, b core.HospitalTotal) int {
		return b.Value.Cmp(a.Value)
	})
	return totals[0], true
}
