// Package serial allocates the per-day, per-owner case serial numbers.
//
// The allocator only computes the next number. Callers run it inside the
// same transaction that inserts or updates the case so that the read and
// the write are atomic; stores back this with a unique index on
// (owner_id, date, serial_number) and retry on conflict.
package serial

import (
	"context"
	"errors"
	"fmt"

	"casebook/internal/core"
)

// MaxRetries bounds how often a store retries an insert that lost a race for
// the same serial number.
const MaxRetries = 5

// Source reports the highest serial number already used by an owner on a
// date. ok is false when the partition is empty.
type Source interface {
	MaxSerial(ctx context.Context, ownerID, date string) (max int, ok bool, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ownerID, date string) (int, bool, error)

func (f SourceFunc) MaxSerial(ctx context.Context, ownerID, date string) (int, bool, error) {
	return f(ctx, ownerID, date)
}

// Next returns max+1 for the (ownerID, date) partition, or 1 when it is empty.
func Next(ctx context.Context, src Source, ownerID, date string) (int, error) {
	if ownerID == "" {
		return 0, core.ErrNoOwner
	}
	max, ok, err := src.MaxSerial(ctx, ownerID, date)
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: max serial for %s: %v", core.ErrStoreUnavailable, date, err)
	}
	if !ok || max < 1 {
		return 1, nil
	}
	return max + 1, nil
}

// ForUpdate decides the serial an updated case keeps. The serial is only
// recomputed when the date moves; the vacated day is never renumbered.
func ForUpdate(ctx context.Context, src Source, existing core.CaseEntry, newDate string) (int, error) {
	if existing.Date == newDate {
		return existing.SerialNumber, nil
	}
	return Next(ctx, src, existing.OwnerID, newDate)
}
