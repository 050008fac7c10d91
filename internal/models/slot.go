package models

import "time"

// Slot is a derived, bookable unit of a resource's day.
type Slot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	PriceCents int64     `json:"price_cents"`
	Available  bool      `json:"available"`
}

// Reason explains why a requested interval cannot be booked.
type Reason string

const (
	ReasonTooSoon      Reason = "too_soon"
	ReasonTooFarAhead  Reason = "too_far_ahead"
	ReasonConflict     Reason = "conflict"
	ReasonClosed       Reason = "closed"
	ReasonOutsideHours Reason = "outside_operating_hours"
)

func (r Reason) Message() string {
	switch r {
	case ReasonTooSoon:
		return "booking starts too soon"
	case ReasonTooFarAhead:
		return "booking is too far ahead"
	case ReasonConflict:
		return "interval overlaps an existing reservation"
	case ReasonClosed:
		return "resource is closed on this date"
	case ReasonOutsideHours:
		return "interval is outside operating hours"
	}
	return string(r)
}

// Conflict is an existing reservation colliding with a requested interval.
type Conflict struct {
	ReservationID int64     `json:"reservation_id"`
	RenterName    string    `json:"renter_name"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// ConflictReport is the answer to a single-interval availability query.
type ConflictReport struct {
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Available bool       `json:"available"`
	Reasons   []Reason   `json:"reasons,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Reason returns the first reason, or "" when the interval is bookable.
func (r ConflictReport) Reason() Reason {
	if len(r.Reasons) == 0 {
		return ""
	}
	return r.Reasons[0]
}

// HasPolicyViolation reports whether a non-conflict reason is present.
func (r ConflictReport) HasPolicyViolation() bool {
	for _, reason := range r.Reasons {
		if reason != ReasonConflict {
			return true
		}
	}
	return false
}

// LaneAssignment positions a reservation in a side-by-side day view.
type LaneAssignment struct {
	Lane       int `json:"lane"`
	TotalLanes int `json:"total_lanes"`
}
