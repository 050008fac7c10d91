package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("slot no longer available")
	ErrPolicyViolation   = errors.New("booking policy violated")
	ErrStorage           = errors.New("storage unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrResourceInactive  = errors.New("resource is not active")
)

// ConflictError carries the reservations that won the race for an interval.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrConflict.Error()
	}
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, fmt.Sprintf("#%d", c.ReservationID))
	}
	return fmt.Sprintf("%s: overlaps %s", ErrConflict, strings.Join(ids, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PolicyViolationError is returned when booking rules reject an interval
// regardless of other reservations.
type PolicyViolationError struct {
	Reason Reason
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPolicyViolation, e.Reason.Message())
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// StorageError wraps a transient persistence failure. It is the only error
// class that callers may retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
