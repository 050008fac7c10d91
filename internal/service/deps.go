package service

import (
	"context"
	"time"

	"courtbook/internal/cancellation"
	"courtbook/internal/events"
	"courtbook/internal/models"

	"github.com/google/uuid"
)

// Store is the persistence the engine needs. Wall-clock "now" arguments drive
// policy; "at" arguments are the UTC instants written to the row.
type Store interface {
	GetResource(ctx context.Context, id int64) (*models.Resource, error)
	ListRules(ctx context.Context, resourceID int64) ([]models.OperatingHourRule, error)
	IsClosed(ctx context.Context, resourceID int64, date time.Time) (bool, error)
	ListForDay(ctx context.Context, resourceID int64, date time.Time) ([]models.Reservation, error)
	Reserve(ctx context.Context, r *models.Reservation) (*models.Reservation, error)
	Cancel(ctx context.Context, id int64, now, at time.Time) (*models.Reservation, cancellation.Outcome, error)
	Reschedule(ctx context.Context, req models.RescheduleRequest) (*models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetByTrackingToken(ctx context.Context, token string) (*models.Reservation, error)
	ListByAccessToken(ctx context.Context, token string) ([]models.Reservation, error)
	CompletePast(ctx context.Context, now, at time.Time) (int64, error)
	SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus, method *string, at time.Time) (*models.Reservation, error)
}

// SlotCache memoizes evaluated slots per resource and day. Get returns the
// day's generation even on a miss; Set drops the snapshot when an
// Invalidate happened since that generation was read.
type SlotCache interface {
	Get(ctx context.Context, resourceID int64, date time.Time) ([]models.Slot, string, bool)
	Set(ctx context.Context, resourceID int64, date time.Time, generation string, slots []models.Slot)
	Invalidate(ctx context.Context, resourceID int64, dates ...time.Time)
}

// EventPublisher receives reservation lifecycle events.
type EventPublisher interface {
	Publish(event events.Event)
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TokenGenerator produces opaque tracking and access tokens.
type TokenGenerator interface {
	NewToken() string
}

// UUIDTokens issues random UUIDv4 tokens.
type UUIDTokens struct{}

func (UUIDTokens) NewToken() string { return uuid.NewString() }

// MemberDirectory resolves registered members. It returns models.ErrNotFound
// for unknown ids.
type MemberDirectory interface {
	MemberName(ctx context.Context, memberID int64) (string, error)
}
