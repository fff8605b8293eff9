//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"casebook/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google
func TestIntegration_CaseLedgerFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := New(ctx, spreadsheetID, os.Getenv("GOOGLE_SHEET_NAME"))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	c := core.CaseEntry{
		ID:            uuid.NewString(),
		OwnerID:       "integration",
		SerialNumber:  1,
		Date:          time.Now().Format(core.DateLayout),
		Hospital:      "Integration Hospital",
		PatientName:   "Test Patient",
		Diagnosis:     "Integration",
		PaymentMode:   core.Cash,
		PaymentStatus: core.StatusPending,
		Amount:        decimal.NewFromInt(1),
	}
	if err := client.Upsert(ctx, c); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	c.Remarks = "updated"
	if err := client.Upsert(ctx, c); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := client.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
