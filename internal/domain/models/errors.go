package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEvent marks an event ID already admitted to the pipeline.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrNotFound marks a missing decision or record.
	ErrNotFound = errors.New("not found")

	// ErrHalted marks an operation refused because trading is halted.
	ErrHalted = errors.New("trading halted")
)

// ValidationError describes a malformed trade event field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
