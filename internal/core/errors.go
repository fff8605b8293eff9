package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable means the case store could not be reached.
	ErrStoreUnavailable = errors.New("case store unavailable")
	// ErrNotFound means no case with that id exists for the owner.
	// Records owned by someone else are reported the same way.
	ErrNotFound = errors.New("case not found or forbidden")
	// ErrMalformedDate is reported when a case date cannot be split into
	// year, month and day.
	ErrMalformedDate = errors.New("malformed case date")
	ErrNoOwner       = errors.New("no active owner")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ValidationError describes a missing or invalid case field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func missing(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
