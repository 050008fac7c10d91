// Package lanes places a day's reservations into side-by-side columns so
// overlapping bookings never share a column in a calendar view.
package lanes

import (
	"sort"

	"courtbook/internal/interval"
	"courtbook/internal/models"
)

// Layout assigns every active reservation a lane. Reservations are placed in
// start order (ties by id) into the lowest lane not used by an overlapping,
// already placed reservation. All reservations connected through overlaps form
// a cluster and share the cluster's lane count; unrelated reservations keep
// their own.
func Layout(reservations []models.Reservation) map[int64]models.LaneAssignment {
	placed := make([]models.Reservation, 0, len(reservations))
	for _, r := range reservations {
		if r.IsActive() {
			placed = append(placed, r)
		}
	}
	sort.Slice(placed, func(i, j int) bool {
		if !placed[i].Start.Equal(placed[j].Start) {
			return placed[i].Start.Before(placed[j].Start)
		}
		return placed[i].ID < placed[j].ID
	})

	lane := make([]int, len(placed))
	clusters := newUnionFind(len(placed))

	for i := range placed {
		used := make(map[int]bool)
		for j := 0; j < i; j++ {
			if interval.Overlaps(placed[i].Start, placed[i].End, placed[j].Start, placed[j].End) {
				used[lane[j]] = true
				clusters.union(i, j)
			}
		}
		l := 0
		for used[l] {
			l++
		}
		lane[i] = l
	}

	width := make(map[int]int)
	for i := range placed {
		root := clusters.find(i)
		if lane[i]+1 > width[root] {
			width[root] = lane[i] + 1
		}
	}

	out := make(map[int64]models.LaneAssignment, len(placed))
	for i, r := range placed {
		out[r.ID] = models.LaneAssignment{Lane: lane[i], TotalLanes: width[clusters.find(i)]}
	}
	return out
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
