package export

import (
	"bytes"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestWriteDaySheet(t *testing.T) {
	member := int64(7)
	reservations := []models.Reservation{
		{
			ID: 2, Date: monday, Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour),
			Renter: models.Renter{MemberID: &member, Name: "Member"}, Status: models.StatusConfirmed,
			PaymentStatus: models.PaymentPaid, PriceCents: 4000,
		},
		{
			ID: 1, Date: monday, Start: monday.Add(23 * time.Hour), End: monday.Add(24 * time.Hour),
			Renter: models.Renter{Name: "Guest", Phone: "+100"}, Status: models.StatusScheduled,
			PaymentStatus: models.PaymentPending, PriceCents: 4550,
		},
		{
			ID: 3, Date: monday, Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour),
			Renter: models.Renter{Name: "Gone"}, Status: models.StatusCancelled,
			PaymentStatus: models.PaymentPending, CancellationFeeCents: 1500,
		},
	}
	lanes := map[int64]models.LaneAssignment{
		1: {Lane: 0, TotalLanes: 1},
		2: {Lane: 0, TotalLanes: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDaySheet(&buf, models.Resource{Name: "Court 1"}, monday, reservations, lanes))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 1)
	assert.Equal(t, "2025-06-02 Court 1", sheets[0])

	rows, err := f.GetRows(sheets[0])
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[0][0])

	assert.Equal(t, []string{"3", "09:00", "10:00"}, rows[1][:3])
	assert.Equal(t, "", rows[1][3], "cancelled reservation has no lane")
	assert.Equal(t, "15", rows[1][12])

	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "1", rows[2][3])
	assert.Equal(t, "7", rows[2][6])

	assert.Equal(t, []string{"1", "23:00", "24:00"}, rows[3][:3])
	assert.Equal(t, "45.5", rows[3][11])
}

func TestSheetWriter_NoSheet(t *testing.T) {
	w := NewSheetWriter()
	defer func() { _ = w.Close() }()
	assert.ErrorIs(t, w.WriteRow([]any{"x"}), errNoSheet)
}

func TestSheetWriter_LongName(t *testing.T) {
	w := NewSheetWriter()
	defer func() { _ = w.Close() }()
	require.NoError(t, w.AddSheet("a very long sheet name that exceeds the excel limit"))
	assert.Len(t, w.sheet, maxSheetName)
	require.NoError(t, w.AddSheet("second"))
	assert.Equal(t, "second", w.sheet)
}
