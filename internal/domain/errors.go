package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("reservation not found")
	ErrResourceNotFound       = errors.New("equipment not found")
	ErrResourceInactive       = errors.New("equipment is not bookable")
	ErrDuplicateResource      = errors.New("equipment name already exists")
	ErrConcurrentModification = errors.New("reservation was modified concurrently")
	ErrRateLimited            = errors.New("too many booking attempts")
)

// ValidationError marks client input that fails a field-level check.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// MissingFieldError marks an absent required field. Never retried.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// InvalidIntervalError marks a proposed interval rejected during
// normalization or by booking policy.
type InvalidIntervalError struct {
	Reason string
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval: %s", e.Reason)
}

// ConflictError reports an overlap with an existing active reservation.
// ConflictsWith carries the blocking reservation's id for client display.
type ConflictError struct {
	ConflictsWith string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("interval conflicts with reservation %s", e.ConflictsWith)
}
