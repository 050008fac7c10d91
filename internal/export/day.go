package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"courtbook/internal/interval"
	"courtbook/internal/models"
)

var dayColumns = []string{
	"ID", "Start", "End", "Lane", "Lanes", "Renter", "Member", "Phone", "Email",
	"Status", "Payment", "Price", "Cancellation fee",
}

// WriteDaySheet writes one resource's reservations on date as an XLSX
// workbook, in start order with their lane placement. Cancelled and completed
// reservations are included without a lane.
func WriteDaySheet(out io.Writer, resource models.Resource, date time.Time, reservations []models.Reservation, lanes map[int64]models.LaneAssignment) error {
	w := NewSheetWriter()
	defer func() { _ = w.Close() }()

	if err := w.AddSheet(fmt.Sprintf("%s %s", date.Format(interval.DateLayout), resource.Name)); err != nil {
		return err
	}
	if err := w.WriteHeader(dayColumns); err != nil {
		return err
	}

	sorted := append([]models.Reservation(nil), reservations...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Start.Before(sorted[j].Start)
		}
		return sorted[i].ID < sorted[j].ID
	})

	for _, r := range sorted {
		var lane, total any = "", ""
		if a, ok := lanes[r.ID]; ok {
			lane, total = a.Lane+1, a.TotalLanes
		}
		var member any = ""
		if r.Renter.MemberID != nil {
			member = *r.Renter.MemberID
		}
		row := []any{
			r.ID,
			interval.FormatClock(r.Date, r.Start),
			interval.FormatClock(r.Date, r.End),
			lane,
			total,
			r.Renter.Name,
			member,
			r.Renter.Phone,
			r.Renter.Email,
			string(r.Status),
			string(r.PaymentStatus),
			cents(r.PriceCents),
			cents(r.CancellationFeeCents),
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return w.Save(out)
}

func cents(v int64) float64 {
	return float64(v) / 100
}
