package models

import (
	"errors"
	"strings"
	"time"
)

type ReservationStatus string

const (
	StatusScheduled ReservationStatus = "scheduled"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// IsActive reports whether a reservation in this status blocks its interval.
func (s ReservationStatus) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentCancelled:
		return true
	}
	return false
}

var ErrInvalidRenter = errors.New("renter must be either a member or a guest with a name")

// Renter identifies who holds a reservation: a registered member or a guest
// described by contact details. Name is kept for members too so listings do
// not need a directory lookup.
type Renter struct {
	MemberID *int64 `json:"member_id,omitempty"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	TaxID    string `json:"tax_id,omitempty"`
}

func (r Renter) IsMember() bool {
	return r.MemberID != nil
}

// Validate enforces that exactly one identification mode is used.
func (r Renter) Validate() error {
	if r.IsMember() {
		if *r.MemberID <= 0 || r.Phone != "" || r.Email != "" || r.TaxID != "" {
			return ErrInvalidRenter
		}
		return nil
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidRenter
	}
	return nil
}

// Reservation is a renter's claim on [Start, End) of a resource on Date.
type Reservation struct {
	ID                   int64             `json:"id"`
	ResourceID           int64             `json:"resource_id"`
	Renter               Renter            `json:"renter"`
	Date                 time.Time         `json:"date"`
	Start                time.Time         `json:"start"`
	End                  time.Time         `json:"end"`
	PriceCents           int64             `json:"price_cents"`
	Status               ReservationStatus `json:"status"`
	PaymentStatus        PaymentStatus     `json:"payment_status"`
	PaymentMethod        *string           `json:"payment_method,omitempty"`
	CancellationFeeCents int64             `json:"cancellation_fee_cents"`
	TrackingToken        string            `json:"tracking_token,omitempty"`
	AccessToken          string            `json:"access_token,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	CancelledAt          *time.Time        `json:"cancelled_at,omitempty"`
}

func (r *Reservation) IsActive() bool {
	return r.Status.IsActive()
}

// DurationMinutes is derived from Start and End.
func (r *Reservation) DurationMinutes() int {
	return int(r.End.Sub(r.Start) / time.Minute)
}

// RescheduleRequest moves an existing reservation to a new interval.
type RescheduleRequest struct {
	ID         int64
	Date       time.Time
	Start      time.Time
	End        time.Time
	PriceCents int64
	UpdatedAt  time.Time
}
