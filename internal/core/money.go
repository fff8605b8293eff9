// Package core provides money parsing and handling utilities.
//
// Amounts are currency agnostic decimals. Parsing accepts both dot and comma
// separators and rounds half-up to two decimal places.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied decimal string into an amount.
//
// Examples:
//
//	ParseAmount("1500")    -> 1500, nil
//	ParseAmount("12,34")   -> 12.34, nil
//	ParseAmount("12.345")  -> 12.35, nil (half-up)
//	ParseAmount("-1")      -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only non-negative values allowed
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// SumAmounts adds the amounts of all cases.
func SumAmounts(cases []CaseEntry) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cases {
		total = total.Add(c.Amount)
	}
	return total
}
