// Package store declares the case store boundary. Every operation is scoped
// by an opaque owner id supplied by the caller's identity provider.
package store

import (
	"context"

	"casebook/internal/core"
)

// DefaultListLimit caps how many cases List returns.
const DefaultListLimit = 1000

// Ports for case persistence.
type (
	// CaseStore is the durable table of cases.
	CaseStore interface {
		// List returns the owner's cases ordered by date desc, serial desc.
		List(ctx context.Context, ownerID string, limit int) ([]core.CaseEntry, error)
		// Create validates f, allocates the daily serial and inserts the case.
		Create(ctx context.Context, ownerID string, f core.CaseFields) (core.CaseEntry, error)
		// Update replaces the case fields, reallocating the serial when the
		// date changes. Returns core.ErrNotFound if (id, owner) does not exist.
		Update(ctx context.Context, ownerID, id string, f core.CaseFields) (core.CaseEntry, error)
		// Delete removes the case. Returns core.ErrNotFound if (id, owner) does not exist.
		Delete(ctx context.Context, ownerID, id string) error
	}

	// HospitalLister returns the recommended hospital names.
	HospitalLister interface {
		Hospitals(ctx context.Context) ([]string, error)
	}
)

// PrepareFields normalizes and validates f before it reaches a store.
func PrepareFields(f core.CaseFields) (core.CaseFields, error) {
	f = f.Normalize()
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

// ClampLimit applies DefaultListLimit to non-positive or oversized limits.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
