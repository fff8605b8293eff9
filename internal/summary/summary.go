// Package summary turns case lists into hospital totals and monthly or
// annual financial summaries. All functions are pure and safe to call
// from any goroutine.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"casebook/internal/core"
	"casebook/internal/log"
)

// Granularity selects how cases are bucketed.
type Granularity int

const (
	Month Granularity = iota
	Year
)

func (g Granularity) String() string {
	if g == Year {
		return "year"
	}
	return "month"
}

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// HospitalTotals sums amounts per hospital name, in first-seen order.
func HospitalTotals(cases []core.CaseEntry) []core.HospitalTotal {
	index := make(map[string]int)
	out := make([]core.HospitalTotal, 0)
	for _, c := range cases {
		i, ok := index[c.Hospital]
		if !ok {
			i = len(out)
			index[c.Hospital] = i
			out = append(out, core.HospitalTotal{Name: c.Hospital, Value: decimal.Zero})
		}
		out[i].Value = out[i].Value.Add(c.Amount)
	}
	return out
}

type periodKey struct {
	year  int
	month int // 0-11, unused for Year
}

// PeriodSummary buckets cases by month or year, sorted most recent first.
// Cases whose date cannot be split into year, month and day are skipped
// and logged.
func PeriodSummary(cases []core.CaseEntry, g Granularity) []core.SummaryRecord {
	index := make(map[periodKey]int)
	out := make([]core.SummaryRecord, 0)
	var lg *log.Logger
	for _, c := range cases {
		year, month, err := splitDate(c.Date)
		if err != nil {
			if lg == nil {
				lg = newLogger()
			}
			lg.WarnContext(context.Background(), "Skipping case with malformed date",
				log.FieldCaseID, c.ID,
				log.FieldDate, c.Date,
				log.FieldError, err.Error())
			continue
		}
		key := periodKey{year: year}
		if g == Month {
			key.month = month
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, newRecord(key, g))
		}
		r := &out[i]
		switch {
		case c.PaymentMode.IsCash():
			r.CashTotal = r.CashTotal.Add(c.Amount)
		case c.PaymentMode.IsDigital():
			r.DigitalTotal = r.DigitalTotal.Add(c.Amount)
		}
		r.TotalCases++
		r.TotalAmount = r.TotalAmount.Add(c.Amount)
	}
	slices.SortStableFunc(out, func(a, b core.SummaryRecord) int {
		return b.SortKey - a.SortKey
	})
	return out
}

// GrandTotals is the column-wise sum of records.
func GrandTotals(records []core.SummaryRecord) core.Totals {
	t := core.Totals{
		CashTotal:    decimal.Zero,
		DigitalTotal: decimal.Zero,
		TotalAmount:  decimal.Zero,
	}
	for _, r := range records {
		t.CashTotal = t.CashTotal.Add(r.CashTotal)
		t.DigitalTotal = t.DigitalTotal.Add(r.DigitalTotal)
		t.TotalCases += r.TotalCases
		t.TotalAmount = t.TotalAmount.Add(r.TotalAmount)
	}
	return t
}

func newRecord(k periodKey, g Granularity) core.SummaryRecord {
	r := core.SummaryRecord{
		CashTotal:    decimal.Zero,
		DigitalTotal: decimal.Zero,
		TotalAmount:  decimal.Zero,
	}
	if g == Year {
		r.Period = strconv.Itoa(k.year)
		r.SortKey = k.year
	} else {
		r.Period = fmt.Sprintf("%s %d", monthNames[k.month], k.year)
		r.SortKey = k.year*100 + k.month
	}
	return r
}

// splitDate reads year and zero-based month straight from a YYYY-MM-DD
// string. Calendar validity (e.g. Feb 30) is not checked.
func splitDate(date string) (year, month int, err error) {
	if len(date) != len(core.DateLayout) || date[4] != '-' || date[7] != '-' {
		return 0, 0, fmt.Errorf("%w: %q", core.ErrMalformedDate, date)
	}
	y, errY := strconv.Atoi(date[0:4])
	m, errM := strconv.Atoi(date[5:7])
	d, errD := strconv.Atoi(date[8:10])
	if errY != nil || errM != nil || errD != nil || !numeric(date[0:4]+date[5:7]+date[8:10]) {
		return 0, 0, fmt.Errorf("%w: %q", core.ErrMalformedDate, date)
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, 0, fmt.Errorf("%w: %q", core.ErrMalformedDate, date)
	}
	return y, m - 1, nil
}

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// newLogger is resolved per call so it follows the current slog default.
var newLogger = func() *log.Logger {
	return log.New(log.Config{Component: log.ComponentSummary, Handler: slog.Default().Handler()})
}
