package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenter_Validate(t *testing.T) {
	member := int64(42)
	badMember := int64(0)

	tests := []struct {
		name    string
		renter  Renter
		wantErr bool
	}{
		{"member", Renter{MemberID: &member, Name: "Ana"}, false},
		{"guest", Renter{Name: "Bob", Phone: "+100"}, false},
		{"guest without name", Renter{Phone: "+100"}, true},
		{"member with guest fields", Renter{MemberID: &member, Phone: "+100"}, true},
		{"non-positive member id", Renter{MemberID: &badMember}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.renter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRenter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReservationStatus_IsActive(t *testing.T) {
	assert.True(t, StatusScheduled.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.False(t, StatusCancelled.IsActive())
	assert.False(t, StatusCompleted.IsActive())
	assert.False(t, ReservationStatus("unknown").Valid())
}

func TestErrorClasses(t *testing.T) {
	t.Run("conflict", func(t *testing.T) {
		err := fmt.Errorf("reserve: %w", &ConflictError{Conflicts: []Conflict{{ReservationID: 7}}})
		assert.ErrorIs(t, err, ErrConflict)
		assert.False(t, IsRetryable(err))

		var ce *ConflictError
		assert.True(t, errors.As(err, &ce))
		assert.Contains(t, err.Error(), "#7")
	})

	t.Run("policy", func(t *testing.T) {
		err := &PolicyViolationError{Reason: ReasonTooSoon}
		assert.ErrorIs(t, err, ErrPolicyViolation)
		assert.Contains(t, err.Error(), "too soon")
	})

	t.Run("storage", func(t *testing.T) {
		err := &StorageError{Op: "commit", Err: context.DeadlineExceeded}
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, IsRetryable(err))
	})
}

func TestConflictReport_Reason(t *testing.T) {
	r := ConflictReport{Available: true}
	assert.Equal(t, Reason(""), r.Reason())
	assert.False(t, r.HasPolicyViolation())

	r = ConflictReport{Reasons: []Reason{ReasonConflict}}
	assert.Equal(t, ReasonConflict, r.Reason())
	assert.False(t, r.HasPolicyViolation())

	r = ConflictReport{Reasons: []Reason{ReasonTooSoon, ReasonConflict}}
	assert.True(t, r.HasPolicyViolation())
}
