// Package slots turns operating-hour rules into the bookable slots of a day.
package slots

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"courtbook/internal/interval"
	"courtbook/internal/models"
)

var (
	ErrNoOperatingHours = errors.New("resource has no operating hours on this date")
	ErrInvalidRule      = errors.New("invalid operating hour rule")
)

// Generate returns every slot of resource on date, in rule order and then in
// time order. Slots are marked available; EvaluateSlots in the availability
// package applies existing reservations. A day without matching rules yields
// no slots. A trailing window shorter than the slot duration is dropped.
func Generate(resource models.Resource, rules []models.OperatingHourRule, date time.Time) []models.Slot {
	date = interval.DateOf(date)
	weekday := date.Weekday()

	var out []models.Slot
	for _, rule := range rules {
		if !rule.IsActive || rule.DayOfWeek != weekday {
			continue
		}
		if rule.ResourceID != 0 && resource.ID != 0 && rule.ResourceID != resource.ID {
			continue
		}
		open, closeAt, err := ruleWindow(rule)
		if err != nil {
			continue
		}

		step := time.Duration(rule.SlotDurationMinutes) * time.Minute
		start := interval.At(date, open)
		end := interval.At(date, closeAt)
		for cursor := start; !cursor.Add(step).After(end); cursor = cursor.Add(step) {
			out = append(out, models.Slot{
				Start:      cursor,
				End:        cursor.Add(step),
				PriceCents: slotPrice(resource, rule, rule.SlotDurationMinutes),
				Available:  true,
			})
		}
	}
	return out
}

// ValidateRule reports whether rule can produce slots at all.
func ValidateRule(rule models.OperatingHourRule) error {
	_, _, err := ruleWindow(rule)
	return err
}

// Require fails with ErrNoOperatingHours for an empty day. Public booking
// flows use it; operator views show the empty day instead.
func Require(slots []models.Slot) ([]models.Slot, error) {
	if len(slots) == 0 {
		return nil, ErrNoOperatingHours
	}
	return slots, nil
}

// Quote prices [start, end). An interval matching a generated slot takes that
// slot's price; anything else is charged pro rata at the resource's hourly rate.
func Quote(resource models.Resource, rules []models.OperatingHourRule, date, start, end time.Time) (int64, error) {
	minutes, err := interval.DurationMinutes(start, end)
	if err != nil {
		return 0, err
	}
	for _, s := range Generate(resource, rules, date) {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return s.PriceCents, nil
		}
	}
	return proRata(resource.PricePerHourCents, minutes), nil
}

func ruleWindow(rule models.OperatingHourRule) (int, int, error) {
	open, err := interval.ParseClock(rule.OpenTime)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: open_time: %v", ErrInvalidRule, err)
	}
	closeAt, err := interval.ParseClock(rule.CloseTime)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: close_time: %v", ErrInvalidRule, err)
	}
	if open >= interval.MinutesPerDay {
		return 0, 0, fmt.Errorf("%w: open_time %s", ErrInvalidRule, rule.OpenTime)
	}
	if closeAt <= open {
		return 0, 0, fmt.Errorf("%w: close_time must be after open_time", ErrInvalidRule)
	}
	if rule.SlotDurationMinutes <= 0 {
		return 0, 0, fmt.Errorf("%w: slot_duration_minutes must be positive", ErrInvalidRule)
	}
	if rule.DayOfWeek < time.Sunday || rule.DayOfWeek > time.Saturday {
		return 0, 0, fmt.Errorf("%w: day_of_week %d", ErrInvalidRule, rule.DayOfWeek)
	}
	return open, closeAt, nil
}

func slotPrice(resource models.Resource, rule models.OperatingHourRule, minutes int) int64 {
	if rule.PriceOverrideCents != nil {
		return *rule.PriceOverrideCents
	}
	return proRata(resource.PricePerHourCents, minutes)
}

func proRata(perHour int64, minutes int) int64 {
	return perHour * int64(minutes) / 60
}

func availableOnly(slots []models.Slot) []models.Slot {
	var available []models.Slot
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}

// FindConsecutive groups available slots into runs where each slot starts
// exactly when the previous one ends.
func FindConsecutive(slots []models.Slot) [][]models.Slot {
	available := availableOnly(slots)
	if len(available) == 0 {
		return nil
	}

	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Start.Before(available[j].Start)
	})

	var groups [][]models.Slot
	current := []models.Slot{available[0]}
	for _, s := range available[1:] {
		if s.Start.Equal(current[len(current)-1].End) {
			current = append(current, s)
			continue
		}
		groups = append(groups, current)
		current = []models.Slot{s}
	}
	return append(groups, current)
}

// DurationOptions lists the bookable lengths in minutes starting at start:
// one entry per additional contiguous available slot.
func DurationOptions(slots []models.Slot, start time.Time) []int {
	idx := indexOf(slots, start)
	if idx < 0 || !slots[idx].Available {
		return nil
	}

	var options []int
	for i := idx; i < len(slots); i++ {
		if !slots[i].Available {
			break
		}
		if i > idx && !slots[i].Start.Equal(slots[i-1].End) {
			break
		}
		options = append(options, int(slots[i].End.Sub(start)/time.Minute))
	}
	return options
}

// FormatDuration renders minutes as "45 min", "1 h" or "1 h 30 min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours, mins := minutes/60, minutes%60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}

// WithinHours reports whether [start, end) fits inside one unbroken run of
// the day's generated slots.
func WithinHours(generated []models.Slot, start, end time.Time) bool {
	for _, run := range FindConsecutive(generated) {
		if interval.Covers(run[0].Start, run[len(run)-1].End, start, end) {
			return true
		}
	}
	return false
}

func indexOf(slots []models.Slot, start time.Time) int {
	for i, s := range slots {
		if s.Start.Equal(start) {
			return i
		}
	}
	return -1
}
