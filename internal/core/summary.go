package core

import "github.com/shopspring/decimal"

// HospitalTotal is the amount earned at one hospital.
type HospitalTotal struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// SummaryRecord is a financial summary for one month or year.
type SummaryRecord struct {
	Period       string          `json:"period"`
	SortKey      int             `json:"sortKey"`
	CashTotal    decimal.Decimal `json:"cashTotal"`
	DigitalTotal decimal.Decimal `json:"digitalTotal"`
	TotalCases   int             `json:"totalCases"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}

// Totals is the column-wise sum of a summary.
type Totals struct {
	CashTotal    decimal.Decimal `json:"cashTotal"`
	DigitalTotal decimal.Decimal `json:"digitalTotal"`
	TotalCases   int             `json:"totalCases"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}
