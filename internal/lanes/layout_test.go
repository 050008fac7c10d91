package lanes

import (
	"testing"
	"time"

	"courtbook/internal/interval"
	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func res(id int64, sh, sm, eh, em int) models.Reservation {
	return models.Reservation{
		ID:     id,
		Date:   day,
		Start:  day.Add(time.Duration(sh)*time.Hour + time.Duration(sm)*time.Minute),
		End:    day.Add(time.Duration(eh)*time.Hour + time.Duration(em)*time.Minute),
		Status: models.StatusScheduled,
	}
}

func TestLayout_TransitiveCluster(t *testing.T) {
	a := res(1, 9, 0, 10, 0)
	b := res(2, 9, 30, 10, 30)
	c := res(3, 10, 15, 11, 0)
	d := res(4, 14, 0, 15, 0)

	got := Layout([]models.Reservation{d, c, b, a})
	require.Len(t, got, 4)

	assert.Equal(t, models.LaneAssignment{Lane: 0, TotalLanes: 2}, got[1])
	assert.Equal(t, models.LaneAssignment{Lane: 1, TotalLanes: 2}, got[2])
	assert.Equal(t, models.LaneAssignment{Lane: 0, TotalLanes: 2}, got[3])
	assert.Equal(t, models.LaneAssignment{Lane: 0, TotalLanes: 1}, got[4])
}

func TestLayout_TiesByID(t *testing.T) {
	got := Layout([]models.Reservation{res(9, 9, 0, 10, 0), res(2, 9, 0, 10, 0), res(5, 9, 0, 10, 0)})
	assert.Equal(t, 0, got[2].Lane)
	assert.Equal(t, 1, got[5].Lane)
	assert.Equal(t, 2, got[9].Lane)
	for _, a := range got {
		assert.Equal(t, 3, a.TotalLanes)
	}
}

func TestLayout_SkipsInactive(t *testing.T) {
	cancelled := res(1, 9, 0, 10, 0)
	cancelled.Status = models.StatusCancelled

	got := Layout([]models.Reservation{cancelled, res(2, 9, 0, 10, 0)})
	_, ok := got[1]
	assert.False(t, ok)
	assert.Equal(t, models.LaneAssignment{Lane: 0, TotalLanes: 1}, got[2])
}

func TestLayout_ReusesFreedLane(t *testing.T) {
	got := Layout([]models.Reservation{
		res(1, 8, 0, 12, 0),
		res(2, 8, 0, 9, 0),
		res(3, 9, 0, 10, 0),
		res(4, 9, 30, 10, 30),
	})
	assert.Equal(t, 0, got[1].Lane)
	assert.Equal(t, 1, got[2].Lane)
	assert.Equal(t, 1, got[3].Lane)
	assert.Equal(t, 2, got[4].Lane)
	for _, a := range got {
		assert.Equal(t, 3, a.TotalLanes)
	}
}

func TestLayout_NoSharedLaneWhenOverlapping(t *testing.T) {
	var input []models.Reservation
	for i := 0; i < 40; i++ {
		start := 8*60 + (i*37)%600
		length := 30 + (i*53)%150
		input = append(input, res(int64(i+1), 0, start, 0, start+length))
	}

	got := Layout(input)
	require.Len(t, got, len(input))
	for i := range input {
		for j := i + 1; j < len(input); j++ {
			a, b := input[i], input[j]
			if !interval.Overlaps(a.Start, a.End, b.Start, b.End) {
				continue
			}
			assert.NotEqual(t, got[a.ID].Lane, got[b.ID].Lane)
			assert.Equal(t, got[a.ID].TotalLanes, got[b.ID].TotalLanes)
		}
		assert.Less(t, got[input[i].ID].Lane, got[input[i].ID].TotalLanes)
	}
}

func TestLayout_Empty(t *testing.T) {
	assert.Empty(t, Layout(nil))
}
