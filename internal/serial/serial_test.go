package serial

import (
	"context"
	"errors"
	"testing"

	"casebook/internal/core"
)

type fakeSource map[string]int

func (f fakeSource) MaxSerial(_ context.Context, ownerID, date string) (int, bool, error) {
	v, ok := f[ownerID+"|"+date]
	return v, ok, nil
}

func TestNextEmptyPartition(t *testing.T) {
	got, err := Next(context.Background(), fakeSource{}, "owner", "2024-01-05")
	if err != nil || got != 1 {
		t.Fatalf("expected 1, got %d (err=%v)", got, err)
	}
}

func TestNextIsMaxPlusOne(t *testing.T) {
	src := fakeSource{"owner|2024-01-05": 4, "other|2024-01-05": 9}
	got, err := Next(context.Background(), src, "owner", "2024-01-05")
	if err != nil || got != 5 {
		t.Fatalf("expected 5, got %d (err=%v)", got, err)
	}
}

func TestNextRequiresOwner(t *testing.T) {
	if _, err := Next(context.Background(), fakeSource{}, "", "2024-01-05"); !errors.Is(err, core.ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
}

func TestNextStoreFailure(t *testing.T) {
	src := SourceFunc(func(context.Context, string, string) (int, bool, error) {
		return 0, false, errors.New("connection refused")
	})
	_, err := Next(context.Background(), src, "owner", "2024-01-05")
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestForUpdate(t *testing.T) {
	src := fakeSource{"owner|2024-02-01": 2}
	existing := core.CaseEntry{OwnerID: "owner", Date: "2024-01-05", SerialNumber: 3}

	same, err := ForUpdate(context.Background(), src, existing, "2024-01-05")
	if err != nil || same != 3 {
		t.Fatalf("unchanged date must keep serial 3, got %d (err=%v)", same, err)
	}
	moved, err := ForUpdate(context.Background(), src, existing, "2024-02-01")
	if err != nil || moved != 3 {
		t.Fatalf("moved case must get max+1 = 3, got %d (err=%v)", moved, err)
	}
	fresh, err := ForUpdate(context.Background(), src, existing, "2024-03-01")
	if err != nil || fresh != 1 {
		t.Fatalf("moving to an empty day must give 1, got %d (err=%v)", fresh, err)
	}
}
