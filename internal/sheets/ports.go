// Package sheets declares the outbound spreadsheet ledger the worker keeps
// in sync with the case store.
package sheets

import (
	"context"
	"strconv"

	"casebook/internal/core"
)

// Ports for outbound adapters.
type (
	// CaseWriter mirrors cases into an external ledger keyed by case ID.
	CaseWriter interface {
		// Upsert writes c, replacing any existing row for c.ID.
		Upsert(ctx context.Context, c core.CaseEntry) error
		// Delete removes the row for id. Deleting a missing row is not an error.
		Delete(ctx context.Context, id string) error
	}
)

// Header is the column layout of the ledger sheet.
var Header = []string{
	"ID", "Owner", "Serial", "Date", "Hospital", "Patient", "Age", "Sex",
	"Diagnosis", "Anesthesia", "Procedure", "Start", "End", "Duration (min)",
	"Payment Mode", "Payment Status", "Surgeon", "Amount", "Remarks", "Updated",
}

// Row renders c in Header order.
func Row(c core.CaseEntry) []string {
	age := ""
	if c.Age != nil {
		age = strconv.Itoa(*c.Age)
	}
	updated := ""
	if !c.UpdatedAt.IsZero() {
		updated = c.UpdatedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []string{
		c.ID, c.OwnerID, strconv.Itoa(c.SerialNumber), c.Date, c.Hospital, c.PatientName, age, string(c.Sex),
		c.Diagnosis, c.Anesthesia, c.Procedure, c.StartTime, c.EndTime, strconv.Itoa(c.Duration),
		string(c.PaymentMode), string(c.PaymentStatus), c.SurgeonName, c.Amount.StringFixed(2), c.Remarks, updated,
	}
}
