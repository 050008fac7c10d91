// Package interval holds half-open [start, end) helpers shared by the slot
// generator, availability evaluator, reservation store and lane layout.
//
// Every time.Time handled here is a wall-clock value on an explicit date. The
// location is always UTC and carries no meaning; callers convert real instants
// with WallClock before comparing them against reservation times.
package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	// MinutesPerDay is also the value of the "24:00" closing time.
	MinutesPerDay = 24 * 60
)

var (
	ErrInvalidInterval = errors.New("invalid interval: end must be after start")
	ErrInvalidClock    = errors.New("invalid time of day, expected HH:MM")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
// Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Covers reports whether [innerStart, innerEnd) lies entirely inside [outerStart, outerEnd).
func Covers(outerStart, outerEnd, innerStart, innerEnd time.Time) bool {
	return !innerStart.Before(outerStart) && !innerEnd.After(outerEnd)
}

// Validate fails with ErrInvalidInterval unless end is after start.
func Validate(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%w: %s-%s", ErrInvalidInterval, start.Format(ClockLayout), end.Format(ClockLayout))
	}
	return nil
}

// DurationMinutes returns the whole minutes between start and end.
func DurationMinutes(start, end time.Time) (int, error) {
	if err := Validate(start, end); err != nil {
		return 0, err
	}
	return int(end.Sub(start) / time.Minute), nil
}

// WallClock converts an instant into the naive wall-clock representation used
// for dates and reservation times. A nil location means UTC.
func WallClock(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// DateOf truncates t to midnight of its calendar day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses YYYY-MM-DD into a naive midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h == 24 && m == 0 {
		return MinutesPerDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// At places minutes-after-midnight on date.
func At(date time.Time, minutes int) time.Time {
	return DateOf(date).Add(time.Duration(minutes) * time.Minute)
}

// OnDate parses an "HH:MM" clock value and places it on date.
func OnDate(date time.Time, clock string) (time.Time, error) {
	m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return At(date, m), nil
}

// FormatClock renders t relative to date as HH:MM, printing "24:00" for the
// following midnight.
func FormatClock(date, t time.Time) string {
	if !SameDate(date, t) && t.Equal(DateOf(date).Add(24*time.Hour)) {
		return "24:00"
	}
	return t.Format(ClockLayout)
}

// ValidateOnDate checks [start, end) is a valid interval that begins on date
// and ends no later than the following midnight.
func ValidateOnDate(date, start, end time.Time) error {
	if err := Validate(start, end); err != nil {
		return err
	}
	if !SameDate(date, start) || end.After(DateOf(date).Add(24*time.Hour)) {
		return fmt.Errorf("%w: %s-%s is not within %s", ErrInvalidInterval,
			start.Format(time.DateTime), end.Format(time.DateTime), date.Format(DateLayout))
	}
	return nil
}
