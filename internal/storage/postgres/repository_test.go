package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"casebook/internal/core"
)

func TestLoadMigrationsSorted(t *testing.T) {
	migs, err := LoadMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migs) < 2 {
		t.Fatalf("migrations = %d, want at least 2", len(migs))
	}
	for i := 1; i < len(migs); i++ {
		if migs[i-1].Version >= migs[i].Version {
			t.Fatalf("migrations out of order: %d before %d", migs[i-1].Version, migs[i].Version)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, core.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), core.ErrNotFound},
		{"connection", errors.New("dial tcp: connection refused"), core.ErrStoreUnavailable},
		{"bad date", &pgconn.PgError{Code: "22008"}, core.ErrValidation},
		{"canceled", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("classify(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatal("wrapped 23505 not detected")
	}
}

// TestCaseRepoPG runs against a real server when CASEBOOK_TEST_DATABASE_URL is set.
func TestCaseRepoPG(t *testing.T) {
	url := os.Getenv("CASEBOOK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CASEBOOK_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, url, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := RunMigrations(ctx, pool); err != nil {
		t.Fatal(err)
	}
	repo := NewCaseRepoPG(pool)
	owner := fmt.Sprintf("test-%d", time.Now().UnixNano())

	amount := decimal.RequireFromString("800.25")
	f := core.CaseFields{
		Date:        "2024-07-01",
		Hospital:    "General Hospital",
		PatientName: "Meera",
		Diagnosis:   "Fracture",
		PaymentMode: core.Cash,
		Amount:      &amount,
	}
	a, err := repo.Create(ctx, owner, f)
	if err != nil {
		t.Fatal(err)
	}
	b, err := repo.Create(ctx, owner, f)
	if err != nil {
		t.Fatal(err)
	}
	if a.SerialNumber != 1 || b.SerialNumber != 2 {
		t.Fatalf("serials = %d, %d", a.SerialNumber, b.SerialNumber)
	}

	f.Date = "2024-07-02"
	moved, err := repo.Update(ctx, owner, a.ID, f)
	if err != nil {
		t.Fatal(err)
	}
	if moved.SerialNumber != 1 || moved.Date != "2024-07-02" || !moved.Amount.Equal(amount) {
		t.Fatalf("moved = %+v", moved)
	}

	if err := repo.Delete(ctx, "someone-else", b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("cross-owner delete err = %v", err)
	}
	list, err := repo.List(ctx, owner, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != a.ID {
		t.Fatalf("list = %+v", list)
	}
	for _, c := range list {
		if err := repo.Delete(ctx, owner, c.ID); err != nil {
			t.Fatal(err)
		}
	}
}
