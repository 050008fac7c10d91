package slots

import (
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func court() models.Resource {
	return models.Resource{ID: 1, Name: "Court 1", PricePerHourCents: 4000, IsActive: true}
}

func rule(day time.Weekday, open, closeAt string, minutes int) models.OperatingHourRule {
	return models.OperatingHourRule{
		ResourceID:          1,
		DayOfWeek:           day,
		OpenTime:            open,
		CloseTime:           closeAt,
		SlotDurationMinutes: minutes,
		IsActive:            true,
	}
}

func TestGenerate(t *testing.T) {
	override := int64(2500)

	tests := []struct {
		name          string
		rules         []models.OperatingHourRule
		expectedCount int
		firstStart    time.Time
		lastEnd       time.Time
	}{
		{
			name:          "hourly slots",
			rules:         []models.OperatingHourRule{rule(time.Monday, "08:00", "22:00", 60)},
			expectedCount: 14,
			firstStart:    at(8, 0),
			lastEnd:       at(22, 0),
		},
		{
			name:          "partial trailing slot dropped",
			rules:         []models.OperatingHourRule{rule(time.Monday, "08:00", "10:30", 60)},
			expectedCount: 2,
			firstStart:    at(8, 0),
			lastEnd:       at(10, 0),
		},
		{
			name:          "closes at midnight",
			rules:         []models.OperatingHourRule{rule(time.Monday, "22:00", "24:00", 30)},
			expectedCount: 4,
			firstStart:    at(22, 0),
			lastEnd:       at(24, 0),
		},
		{
			name:          "other weekday ignored",
			rules:         []models.OperatingHourRule{rule(time.Tuesday, "08:00", "22:00", 60)},
			expectedCount: 0,
		},
		{
			name: "inactive rule ignored",
			rules: []models.OperatingHourRule{func() models.OperatingHourRule {
				r := rule(time.Monday, "08:00", "22:00", 60)
				r.IsActive = false
				return r
			}()},
			expectedCount: 0,
		},
		{
			name:          "invalid rule yields nothing",
			rules:         []models.OperatingHourRule{rule(time.Monday, "10:00", "09:00", 60), rule(time.Monday, "08:00", "09:00", 0)},
			expectedCount: 0,
		},
		{
			name: "duplicate weekday rules are concatenated",
			rules: []models.OperatingHourRule{
				rule(time.Monday, "08:00", "10:00", 60),
				{ResourceID: 1, DayOfWeek: time.Monday, OpenTime: "18:00", CloseTime: "20:00", SlotDurationMinutes: 60, PriceOverrideCents: &override, IsActive: true},
			},
			expectedCount: 4,
			firstStart:    at(8, 0),
			lastEnd:       at(20, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(court(), tt.rules, monday)
			require.Len(t, got, tt.expectedCount)
			if tt.expectedCount == 0 {
				return
			}
			assert.Equal(t, tt.firstStart, got[0].Start)
			assert.Equal(t, tt.lastEnd, got[len(got)-1].End)
			for _, s := range got {
				assert.True(t, s.Available)
			}
		})
	}
}

func TestGenerate_CountAndContiguity(t *testing.T) {
	for _, d := range []int{15, 25, 30, 45, 60, 90, 120} {
		r := rule(time.Monday, "07:30", "21:10", d)
		got := Generate(court(), []models.OperatingHourRule{r}, monday)

		window := int(at(21, 10).Sub(at(7, 30)) / time.Minute)
		require.Len(t, got, window/d, "duration %d", d)
		require.NotEmpty(t, got)
		assert.Equal(t, at(7, 30), got[0].Start)
		for i, s := range got {
			assert.Equal(t, time.Duration(d)*time.Minute, s.End.Sub(s.Start))
			if i > 0 {
				assert.Equal(t, got[i-1].End, s.Start)
			}
		}
	}
}

func TestGenerate_Pricing(t *testing.T) {
	override := int64(9900)

	got := Generate(court(), []models.OperatingHourRule{rule(time.Monday, "08:00", "09:00", 30)}, monday)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].PriceCents)

	r := rule(time.Monday, "08:00", "09:00", 60)
	r.PriceOverrideCents = &override
	got = Generate(court(), []models.OperatingHourRule{r}, monday)
	require.Len(t, got, 1)
	assert.Equal(t, override, got[0].PriceCents)
}

func TestQuote(t *testing.T) {
	override := int64(5000)
	r := rule(time.Monday, "08:00", "12:00", 60)
	r.PriceOverrideCents = &override
	rules := []models.OperatingHourRule{r}

	price, err := Quote(court(), rules, monday, at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, override, price, "exact slot takes the slot price")

	price, err = Quote(court(), rules, monday, at(9, 0), at(10, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(6000), price, "off-grid interval is pro rata")

	_, err = Quote(court(), rules, monday, at(10, 0), at(9, 0))
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	_, err := Require(nil)
	assert.ErrorIs(t, err, ErrNoOperatingHours)

	got, err := Require([]models.Slot{{Start: at(8, 0), End: at(9, 0)}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestValidateRule(t *testing.T) {
	assert.NoError(t, ValidateRule(rule(time.Monday, "08:00", "24:00", 60)))
	assert.ErrorIs(t, ValidateRule(rule(time.Monday, "8am", "22:00", 60)), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule(rule(time.Monday, "24:00", "24:00", 60)), ErrInvalidRule)
	assert.ErrorIs(t, ValidateRule(rule(time.Weekday(9), "08:00", "22:00", 60)), ErrInvalidRule)
}

func daySlots(booked ...int) []models.Slot {
	slots := Generate(court(), []models.OperatingHourRule{rule(time.Monday, "09:00", "14:00", 60)}, monday)
	for _, h := range booked {
		for i := range slots {
			if slots[i].Start.Hour() == h {
				slots[i].Available = false
			}
		}
	}
	return slots
}

func TestFindConsecutive(t *testing.T) {
	groups := FindConsecutive(daySlots(11))
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 2)

	assert.Nil(t, FindConsecutive(daySlots(9, 10, 11, 12, 13)))
}

func TestDurationOptions(t *testing.T) {
	slots := daySlots(12)
	assert.Equal(t, []int{60, 120, 180}, DurationOptions(slots, at(9, 0)))
	assert.Nil(t, DurationOptions(slots, at(12, 0)))
	assert.Equal(t, []int{60}, DurationOptions(slots, at(13, 0)))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 min", FormatDuration(45))
	assert.Equal(t, "2 h", FormatDuration(120))
	assert.Equal(t, "1 h 30 min", FormatDuration(90))
}

func TestWithinHours(t *testing.T) {
	split := []models.OperatingHourRule{
		rule(time.Monday, "08:00", "12:00", 60),
		rule(time.Monday, "14:00", "23:00", 90),
	}
	day := Generate(court(), split, monday)

	assert.True(t, WithinHours(day, at(8, 0), at(12, 0)))
	assert.True(t, WithinHours(day, at(9, 15), at(10, 45)), "off-grid but inside hours")
	assert.True(t, WithinHours(day, at(14, 0), at(23, 0)))
	assert.False(t, WithinHours(day, at(22, 0), at(23, 30)))
	assert.False(t, WithinHours(day, at(7, 30), at(8, 30)))
	assert.False(t, WithinHours(day, at(11, 0), at(14, 30)), "spans the midday gap")
	assert.False(t, WithinHours(nil, at(9, 0), at(10, 0)))
}
