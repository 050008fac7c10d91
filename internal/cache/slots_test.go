package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func newCache(t *testing.T, ttl time.Duration) (*SlotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := zerolog.New(io.Discard)
	return NewSlotCache(client, ttl, &logger), mr
}

func sample() []models.Slot {
	return []models.Slot{
		{Start: monday.Add(8 * time.Hour), End: monday.Add(9 * time.Hour), PriceCents: 4000, Available: false},
		{Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour), PriceCents: 4000, Available: true},
	}
}

func TestSlotCache_GetSet(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()

	_, gen, ok := c.Get(ctx, 1, monday)
	assert.False(t, ok)
	assert.Equal(t, "0/0", gen)

	c.Set(ctx, 1, monday, gen, sample())
	got, _, ok := c.Get(ctx, 1, monday)
	require.True(t, ok)
	assert.Equal(t, sample(), got)

	_, _, ok = c.Get(ctx, 2, monday)
	assert.False(t, ok, "keys are per resource")
}

func TestSlotCache_EmptyDayIsCached(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()

	_, gen, _ := c.Get(ctx, 1, monday)
	c.Set(ctx, 1, monday, gen, nil)
	got, _, ok := c.Get(ctx, 1, monday)
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestSlotCache_TTL(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()

	_, gen, _ := c.Get(ctx, 1, monday)
	c.Set(ctx, 1, monday, gen, sample())
	mr.FastForward(2 * time.Minute)

	_, _, ok := c.Get(ctx, 1, monday)
	assert.False(t, ok)
}

func TestSlotCache_InvalidateAndFlush(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()

	fill(t, c, 1, monday)
	fill(t, c, 1, monday.AddDate(0, 0, 1))
	fill(t, c, 2, monday)

	c.Invalidate(ctx, 1, monday)
	_, _, ok := c.Get(ctx, 1, monday)
	assert.False(t, ok)
	_, _, ok = c.Get(ctx, 1, monday.AddDate(0, 0, 1))
	assert.True(t, ok)

	mr.Set("unrelated", "keep")
	require.NoError(t, c.Flush(ctx))
	_, _, ok = c.Get(ctx, 2, monday)
	assert.False(t, ok)
	assert.True(t, mr.Exists("unrelated"))
}

func TestSlotCache_Disabled(t *testing.T) {
	var c *SlotCache
	ctx := context.Background()

	c.Set(ctx, 1, monday, "0/0", sample())
	_, gen, ok := c.Get(ctx, 1, monday)
	assert.False(t, ok)
	assert.Empty(t, gen)
	c.Invalidate(ctx, 1, monday)
	assert.NoError(t, c.Flush(ctx))

	zeroTTL, _ := newCache(t, 0)
	zeroTTL.Set(ctx, 1, monday, "0/0", sample())
	_, _, ok = zeroTTL.Get(ctx, 1, monday)
	assert.False(t, ok)
}

func TestSlotCache_RedisDown(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()

	mr.Close()
	c.Set(ctx, 1, monday, "0/0", sample())
	_, gen, ok := c.Get(ctx, 1, monday)
	assert.False(t, ok)
	assert.Empty(t, gen)
}

func TestSlotCache_StaleSnapshotAfterInvalidate(t *testing.T) {
	c, mr := newCache(t, time.Minute)
	ctx := context.Background()

	// A read misses, a write invalidates the day, then the read finishes.
	_, gen, ok := c.Get(ctx, 1, monday)
	require.False(t, ok)
	c.Invalidate(ctx, 1, monday)
	c.Set(ctx, 1, monday, gen, sample())

	assert.False(t, mr.Exists("courtbook:slots:1:2025-06-02"))
	_, fresh, ok := c.Get(ctx, 1, monday)
	assert.False(t, ok)
	assert.NotEqual(t, gen, fresh)

	c.Set(ctx, 1, monday, fresh, sample())
	_, _, ok = c.Get(ctx, 1, monday)
	assert.True(t, ok)
}

func TestSlotCache_StaleSnapshotAfterFlush(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()

	_, gen, _ := c.Get(ctx, 3, monday)
	require.NoError(t, c.Flush(ctx))
	c.Set(ctx, 3, monday, gen, sample())

	_, _, ok := c.Get(ctx, 3, monday)
	assert.False(t, ok)
}

func TestSlotCache_InvalidateOtherDayKeepsGeneration(t *testing.T) {
	c, _ := newCache(t, time.Minute)
	ctx := context.Background()

	_, gen, _ := c.Get(ctx, 1, monday)
	c.Invalidate(ctx, 1, monday.AddDate(0, 0, 1))
	c.Invalidate(ctx, 2, monday)
	c.Set(ctx, 1, monday, gen, sample())

	_, _, ok := c.Get(ctx, 1, monday)
	assert.True(t, ok)
}

func fill(t *testing.T, c *SlotCache, resourceID int64, date time.Time) {
	t.Helper()
	ctx := context.Background()
	_, gen, _ := c.Get(ctx, resourceID, date)
	c.Set(ctx, resourceID, date, gen, sample())
	_, _, ok := c.Get(ctx, resourceID, date)
	require.True(t, ok)
}
