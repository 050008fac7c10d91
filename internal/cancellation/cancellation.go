// Package cancellation evaluates the fee owed when a renter cancels.
package cancellation

import (
	"time"

	"courtbook/internal/models"
)

// Outcome is what a cancellation costs the renter.
type Outcome struct {
	FeeCents int64 `json:"fee_cents"`
	IsFree   bool  `json:"is_free"`
}

// Deadline is the last instant at which reservation can still be cancelled
// for free; cancellations at or after it are charged.
func Deadline(reservation models.Reservation, resource models.Resource) time.Time {
	return reservation.Start.Add(-time.Duration(resource.CancellationDeadlineHours) * time.Hour)
}

// Evaluate applies the resource's cancellation policy at now. Cancelling
// strictly before the deadline is free; otherwise the flat fee applies.
func Evaluate(reservation models.Reservation, resource models.Resource, now time.Time) Outcome {
	if now.Before(Deadline(reservation, resource)) {
		return Outcome{IsFree: true}
	}
	return Outcome{FeeCents: resource.CancellationFeeCents, IsFree: resource.CancellationFeeCents == 0}
}

// PaymentStatusAfter returns the payment status a cancelled reservation ends
// up with. Free cancellations void pending payments; charged ones keep them
// pending for the fee. A paid reservation stays paid.
func PaymentStatusAfter(current models.PaymentStatus, outcome Outcome) models.PaymentStatus {
	if current == models.PaymentPaid {
		return models.PaymentPaid
	}
	if outcome.IsFree {
		return models.PaymentCancelled
	}
	return models.PaymentPending
}
