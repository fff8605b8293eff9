// Package report renders case summaries as an Excel workbook.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"casebook/internal/core"
	"casebook/internal/summary"
)

// Sheet names in the generated workbook.
const (
	SheetMonthly   = "Monthly"
	SheetAnnual    = "Annual"
	SheetHospitals = "Hospitals"
	SheetCases     = "Cases"
)

var (
	summaryHeader = []any{"Period", "Cash", "Digital", "Cases", "Total"}
	casesHeader   = []any{"Date", "Serial", "Hospital", "Patient", "Diagnosis", "Procedure", "Duration", "Payment Mode", "Status", "Amount"}
)

// WriteWorkbook writes an xlsx with monthly and annual summaries, the
// per-hospital totals and one row per case. Each summary sheet ends with a
// grand total row.
func WriteWorkbook(w io.Writer, cases []core.CaseEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetMonthly); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSummary(f, SheetMonthly, summary.PeriodSummary(cases, summary.Month), bold); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetAnnual); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetAnnual, err)
	}
	if err := writeSummary(f, SheetAnnual, summary.PeriodSummary(cases, summary.Year), bold); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetHospitals); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetHospitals, err)
	}
	if err := writeHospitals(f, summary.HospitalTotals(cases), bold); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetCases); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetCases, err)
	}
	if err := writeCases(f, cases, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, sheet string, records []core.SummaryRecord, bold int) error {
	if err := f.SetSheetRow(sheet, "A1", &summaryHeader); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	row := 2
	for _, r := range records {
		cells := []any{r.Period, money(r.CashTotal), money(r.DigitalTotal), r.TotalCases, money(r.TotalAmount)}
		if err := f.SetSheetRow(sheet, cell(row), &cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, row, err)
		}
		row++
	}

	t := summary.GrandTotals(records)
	total := []any{"Grand Total", money(t.CashTotal), money(t.DigitalTotal), t.TotalCases, money(t.TotalAmount)}
	if err := f.SetSheetRow(sheet, cell(row), &total); err != nil {
		return fmt.Errorf("write %s totals: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}
	return f.SetRowStyle(sheet, row, row, bold)
}

func writeHospitals(f *excelize.File, totals []core.HospitalTotal, bold int) error {
	header := []any{"Hospital", "Total"}
	if err := f.SetSheetRow(SheetHospitals, "A1", &header); err != nil {
		return fmt.Errorf("write hospitals header: %w", err)
	}
	for i, h := range totals {
		cells := []any{h.Name, money(h.Value)}
		if err := f.SetSheetRow(SheetHospitals, cell(i+2), &cells); err != nil {
			return fmt.Errorf("write hospital %s: %w", h.Name, err)
		}
	}
	return f.SetRowStyle(SheetHospitals, 1, 1, bold)
}

func writeCases(f *excelize.File, cases []core.CaseEntry, bold int) error {
	if err := f.SetSheetRow(SheetCases, "A1", &casesHeader); err != nil {
		return fmt.Errorf("write cases header: %w", err)
	}
	for i, c := range cases {
		duration := ""
		if c.Duration > 0 {
			duration = core.FormatDuration(c.Duration)
		}
		cells := []any{
			c.Date, c.SerialNumber, c.Hospital, c.PatientName, c.Diagnosis, c.Procedure,
			duration, string(c.PaymentMode), string(c.PaymentStatus), money(c.Amount),
		}
		if err := f.SetSheetRow(SheetCases, cell(i+2), &cells); err != nil {
			return fmt.Errorf("write case %s: %w", c.ID, err)
		}
	}
	return f.SetRowStyle(SheetCases, 1, 1, bold)
}

func cell(row int) string {
	name, _ := excelize.CoordinatesToCellName(1, row)
	return name
}

// money converts to float64 for the spreadsheet's numeric cells.
func money(d decimal.Decimal) float64 {
	v, _ := d.Round(2).Float64()
	return v
}
