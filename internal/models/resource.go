package models

import "time"

// Resource is a bookable unit such as a court or a room.
type Resource struct {
	ID                        int64     `json:"id"`
	Name                      string    `json:"name"`
	Description               string    `json:"description,omitempty"`
	PricePerHourCents         int64     `json:"price_per_hour_cents"`
	CancellationDeadlineHours int       `json:"cancellation_deadline_hours"`
	CancellationFeeCents      int64     `json:"cancellation_fee_cents"`
	MinAdvanceBookingHours    int       `json:"min_advance_booking_hours"`
	MaxAdvanceBookingDays     int       `json:"max_advance_booking_days"`
	IsActive                  bool      `json:"is_active"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// OperatingHourRule describes when a resource is open on one weekday and how
// that window is cut into slots. OpenTime and CloseTime are "HH:MM"; CloseTime
// may be "24:00".
type OperatingHourRule struct {
	ID                  int64        `json:"id"`
	ResourceID          int64        `json:"resource_id"`
	DayOfWeek           time.Weekday `json:"day_of_week"`
	OpenTime            string       `json:"open_time"`
	CloseTime           string       `json:"close_time"`
	SlotDurationMinutes int          `json:"slot_duration_minutes"`
	PriceOverrideCents  *int64       `json:"price_override_cents,omitempty"`
	IsActive            bool         `json:"is_active"`
}

// Closure marks a date on which a resource accepts no bookings.
type Closure struct {
	ResourceID int64     `json:"resource_id"`
	Date       time.Time `json:"date"`
	Reason     string    `json:"reason,omitempty"`
}
