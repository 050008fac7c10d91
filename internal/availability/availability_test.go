package availability

import (
	"testing"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/slots"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func reservation(id int64, name string, start, end time.Time, status models.ReservationStatus) models.Reservation {
	return models.Reservation{
		ID:         id,
		ResourceID: 1,
		Renter:     models.Renter{Name: name},
		Date:       monday,
		Start:      start,
		End:        end,
		Status:     status,
	}
}

func resource() models.Resource {
	return models.Resource{ID: 1, Name: "Court 1", PricePerHourCents: 4000, MinAdvanceBookingHours: 2, MaxAdvanceBookingDays: 14, IsActive: true}
}

func TestEvaluateSlots_MondayScenario(t *testing.T) {
	rules := []models.OperatingHourRule{{ResourceID: 1, DayOfWeek: time.Monday, OpenTime: "08:00", CloseTime: "10:00", SlotDurationMinutes: 60, IsActive: true}}
	existing := []models.Reservation{reservation(1, "Ana", at(8, 0), at(9, 0), models.StatusScheduled)}

	got := EvaluateSlots(slots.Generate(resource(), rules, monday), existing)
	require.Len(t, got, 2)
	assert.False(t, got[0].Available)
	assert.True(t, got[1].Available)

	again := EvaluateSlots(slots.Generate(resource(), rules, monday), existing)
	assert.Equal(t, got, again)
}

func TestEvaluateSlots_IgnoresInactiveAndOtherDates(t *testing.T) {
	candidates := []models.Slot{{Start: at(8, 0), End: at(9, 0)}, {Start: at(9, 0), End: at(10, 0)}}
	other := reservation(3, "Cy", at(8, 0), at(9, 0), models.StatusConfirmed)
	other.Date = monday.AddDate(0, 0, 7)
	other.Start = other.Start.AddDate(0, 0, 7)
	other.End = other.End.AddDate(0, 0, 7)

	existing := []models.Reservation{
		reservation(1, "Ana", at(8, 0), at(9, 0), models.StatusCancelled),
		reservation(2, "Bob", at(9, 0), at(10, 0), models.StatusCompleted),
		other,
	}

	got := EvaluateSlots(candidates, existing)
	for _, s := range got {
		assert.True(t, s.Available)
	}
}

func TestCheckInterval(t *testing.T) {
	now := monday.AddDate(0, 0, -1).Add(12 * time.Hour)
	existing := []models.Reservation{
		reservation(5, "Late", at(10, 0), at(11, 0), models.StatusConfirmed),
		reservation(4, "Early", at(9, 0), at(10, 0), models.StatusScheduled),
		reservation(6, "Gone", at(9, 0), at(10, 0), models.StatusCancelled),
	}

	tests := []struct {
		name      string
		date      time.Time
		start     time.Time
		end       time.Time
		now       time.Time
		available bool
		reasons   []models.Reason
		conflicts []int64
	}{
		{
			name:      "free interval",
			date:      monday,
			start:     at(12, 0),
			end:       at(13, 0),
			now:       now,
			available: true,
		},
		{
			name:      "conflicts sorted by start",
			date:      monday,
			start:     at(9, 30),
			end:       at(10, 30),
			now:       now,
			reasons:   []models.Reason{models.ReasonConflict},
			conflicts: []int64{4, 5},
		},
		{
			name:      "touching is not a conflict",
			date:      monday,
			start:     at(11, 0),
			end:       at(12, 0),
			now:       now,
			available: true,
		},
		{
			name:    "too soon",
			date:    monday,
			start:   at(12, 0),
			end:     at(13, 0),
			now:     at(10, 30),
			reasons: []models.Reason{models.ReasonTooSoon},
		},
		{
			name:      "too soon and conflicting",
			date:      monday,
			start:     at(9, 0),
			end:       at(10, 0),
			now:       at(8, 0),
			reasons:   []models.Reason{models.ReasonTooSoon, models.ReasonConflict},
			conflicts: []int64{4},
		},
		{
			name:    "too far ahead",
			date:    monday,
			start:   at(12, 0),
			end:     at(13, 0),
			now:     monday.AddDate(0, 0, -15),
			reasons: []models.Reason{models.ReasonTooFarAhead},
		},
		{
			name:      "max advance boundary is inclusive",
			date:      monday,
			start:     at(12, 0),
			end:       at(13, 0),
			now:       monday.AddDate(0, 0, -14),
			available: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := CheckInterval(resource(), tt.date, tt.start, tt.end, existing, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.available, report.Available)
			assert.Equal(t, tt.reasons, report.Reasons)

			var ids []int64
			for _, c := range report.Conflicts {
				ids = append(ids, c.ReservationID)
			}
			assert.Equal(t, tt.conflicts, ids)
		})
	}
}

func TestCheckInterval_InvalidInterval(t *testing.T) {
	_, err := CheckInterval(resource(), monday, at(10, 0), at(9, 0), nil, monday)
	assert.Error(t, err)
}

func TestConflicts_ExcludeAndTieBreak(t *testing.T) {
	existing := []models.Reservation{
		reservation(9, "B", at(9, 0), at(10, 0), models.StatusScheduled),
		reservation(3, "A", at(9, 0), at(9, 30), models.StatusScheduled),
	}

	got := Conflicts(monday, at(8, 0), at(12, 0), existing, 0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ReservationID)
	assert.Equal(t, "A", got[0].RenterName)

	got = Conflicts(monday, at(8, 0), at(12, 0), existing, 3)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].ReservationID)
}
