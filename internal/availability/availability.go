// Package availability decides which candidate intervals are free given the
// reservations already held on a resource. Everything here is pure and works
// on snapshots supplied by the caller.
package availability

import (
	"sort"
	"time"

	"courtbook/internal/interval"
	"courtbook/internal/models"
)

// EvaluateSlots marks each candidate unavailable when an active reservation
// on the same date overlaps it. The input slice is not modified.
func EvaluateSlots(candidates []models.Slot, existing []models.Reservation) []models.Slot {
	out := make([]models.Slot, len(candidates))
	for i, s := range candidates {
		s.Available = true
		for j := range existing {
			r := &existing[j]
			if !r.IsActive() || !onDate(r, s.Start) {
				continue
			}
			if interval.Overlaps(s.Start, s.End, r.Start, r.End) {
				s.Available = false
				break
			}
		}
		out[i] = s
	}
	return out
}

// CheckInterval evaluates [start, end) of resource on date against booking
// policy and the existing reservations. Policy reasons come first; conflicts
// are always listed so callers can show them.
func CheckInterval(resource models.Resource, date, start, end time.Time, existing []models.Reservation, now time.Time) (models.ConflictReport, error) {
	report := models.ConflictReport{Start: start, End: end}
	if err := interval.Validate(start, end); err != nil {
		return report, err
	}

	if start.Before(now.Add(time.Duration(resource.MinAdvanceBookingHours) * time.Hour)) {
		report.Reasons = append(report.Reasons, models.ReasonTooSoon)
	}
	if resource.MaxAdvanceBookingDays > 0 {
		limit := interval.DateOf(now).AddDate(0, 0, resource.MaxAdvanceBookingDays)
		if interval.DateOf(date).After(limit) {
			report.Reasons = append(report.Reasons, models.ReasonTooFarAhead)
		}
	}

	report.Conflicts = Conflicts(date, start, end, existing, 0)
	if len(report.Conflicts) > 0 {
		report.Reasons = append(report.Reasons, models.ReasonConflict)
	}
	report.Available = len(report.Reasons) == 0
	return report, nil
}

// Conflicts lists the active reservations on date overlapping [start, end),
// sorted by start time and then id. excludeID skips one reservation, which
// lets a reschedule ignore its own current interval.
func Conflicts(date, start, end time.Time, existing []models.Reservation, excludeID int64) []models.Conflict {
	var out []models.Conflict
	for i := range existing {
		r := &existing[i]
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if !r.IsActive() || !onDate(r, date) {
			continue
		}
		if !interval.Overlaps(start, end, r.Start, r.End) {
			continue
		}
		out = append(out, models.Conflict{
			ReservationID: r.ID,
			RenterName:    r.Renter.Name,
			Start:         r.Start,
			End:           r.End,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ReservationID < out[j].ReservationID
	})
	return out
}

func onDate(r *models.Reservation, t time.Time) bool {
	if r.Date.IsZero() {
		return true
	}
	return interval.SameDate(r.Date, t)
}
