package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(h, m int) time.Time {
	return time.Date(2025, 6, 2, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		aStart   time.Time
		aEnd     time.Time
		bStart   time.Time
		bEnd     time.Time
		expected bool
	}{
		{"disjoint", clock(9, 0), clock(10, 0), clock(11, 0), clock(12, 0), false},
		{"touching end to start", clock(9, 0), clock(10, 0), clock(10, 0), clock(11, 0), false},
		{"touching start to end", clock(10, 0), clock(11, 0), clock(9, 0), clock(10, 0), false},
		{"partial overlap", clock(9, 0), clock(10, 0), clock(9, 30), clock(10, 30), true},
		{"contained", clock(9, 0), clock(12, 0), clock(10, 0), clock(11, 0), true},
		{"identical", clock(9, 0), clock(10, 0), clock(9, 0), clock(10, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			assert.Equal(t, tt.expected, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd), "overlap must be symmetric")
		})
	}
}

func TestCovers(t *testing.T) {
	assert.True(t, Covers(clock(8, 0), clock(22, 0), clock(8, 0), clock(22, 0)))
	assert.True(t, Covers(clock(8, 0), clock(22, 0), clock(9, 0), clock(10, 0)))
	assert.False(t, Covers(clock(8, 0), clock(22, 0), clock(21, 30), clock(22, 30)))
}

func TestDurationMinutes(t *testing.T) {
	d, err := DurationMinutes(clock(9, 0), clock(10, 30))
	require.NoError(t, err)
	assert.Equal(t, 90, d)

	_, err = DurationMinutes(clock(10, 0), clock(10, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = DurationMinutes(clock(11, 0), clock(10, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"08:00", 480, false},
		{"8:30", 510, false},
		{"23:59", 1439, false},
		{"24:00", MinutesPerDay, false},
		{"24:30", 0, true},
		{"12:60", 0, true},
		{"1200", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWallClock(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	instant := time.Date(2025, 6, 2, 22, 30, 0, 0, time.UTC)

	wc := WallClock(instant, loc)
	assert.Equal(t, time.UTC, wc.Location())
	assert.Equal(t, 3, wc.Day())
	assert.Equal(t, 1, wc.Hour())
	assert.Equal(t, 30, wc.Minute())

	assert.True(t, WallClock(instant, nil).Equal(instant))
}

func TestOnDateAndFormat(t *testing.T) {
	date, err := ParseDate("2025-06-02")
	require.NoError(t, err)

	end, err := OnDate(date, "24:00")
	require.NoError(t, err)
	assert.Equal(t, 3, end.Day())
	assert.Equal(t, "24:00", FormatClock(date, end))

	start, err := OnDate(date, "09:15")
	require.NoError(t, err)
	assert.Equal(t, "09:15", FormatClock(date, start))

	_, err = ParseDate("02.06.2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestValidateOnDate(t *testing.T) {
	date := clock(0, 0)
	assert.NoError(t, ValidateOnDate(date, clock(9, 0), clock(10, 0)))
	assert.NoError(t, ValidateOnDate(date, clock(23, 0), date.Add(24*time.Hour)))
	assert.ErrorIs(t, ValidateOnDate(date, clock(23, 0), date.Add(25*time.Hour)), ErrInvalidInterval)
	assert.ErrorIs(t, ValidateOnDate(date.AddDate(0, 0, 1), clock(9, 0), clock(10, 0)), ErrInvalidInterval)
	assert.ErrorIs(t, ValidateOnDate(date, clock(10, 0), clock(9, 0)), ErrInvalidInterval)
}
