package database

import (
	"context"
	"testing"
	"time"

	"courtbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncResourcesFromConfig(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg, err := config.ParseResourcesConfig([]byte(`
defaults:
  policy:
    price_per_hour_cents: 4000
    cancellation_deadline_hours: 24
    cancellation_fee_cents: 1500
  operating_hours:
    - days: [daily]
      open: "08:00"
      close: "22:00"
      slot_duration_minutes: 60
resources:
  - id: 1
    name: Court 1
  - id: 2
    name: Court 2
holidays:
  - date: "2025-06-02"
    name: Tournament
    resource_ids: [2]
`))
	require.NoError(t, err)
	require.NoError(t, db.SyncResourcesFromConfig(ctx, cfg))

	r, err := db.GetResource(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), r.PricePerHourCents)
	assert.Equal(t, int64(1500), r.CancellationFeeCents)

	rules, err := db.ListRules(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rules, 7)

	closed, err := db.IsClosed(ctx, 2, monday)
	require.NoError(t, err)
	assert.True(t, closed)
	closed, err = db.IsClosed(ctx, 1, monday)
	require.NoError(t, err)
	assert.False(t, closed)

	_, err = db.Reserve(ctx, newReservation("keep", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	// Court 2 disappears and Court 1 changes hours.
	updated, err := config.ParseResourcesConfig([]byte(`
resources:
  - id: 1
    name: Court 1
    policy:
      price_per_hour_cents: 5000
    operating_hours:
      - days: [mon]
        open: "10:00"
        close: "12:00"
        slot_duration_minutes: 30
`))
	require.NoError(t, err)
	require.NoError(t, db.SyncResourcesFromConfig(ctx, updated))

	r, err = db.GetResource(ctx, 2)
	require.NoError(t, err)
	assert.False(t, r.IsActive)

	rules, err = db.ListRules(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, time.Monday, rules[0].DayOfWeek)
	assert.Equal(t, "10:00", rules[0].OpenTime)

	active, err := db.ListResources(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	kept, err := db.GetByTrackingToken(ctx, "keep")
	require.NoError(t, err)
	assert.True(t, kept.IsActive())

	assert.Error(t, db.SyncResourcesFromConfig(ctx, nil))
}
