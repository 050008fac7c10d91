// Package cache keeps evaluated slot lists in Redis so repeated availability
// reads skip the database. Entries are advisory: every write path invalidates
// them and Reserve always re-checks against the store.
//
// Each resource day carries a generation counter that Invalidate bumps and
// Flush bumps globally. Get hands the generation back to the caller and Set
// only stores a snapshot whose generation is still current, so a read that
// overlaps a write cannot repopulate the day with pre-write data.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/interval"
	"courtbook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix = "courtbook:slots:"
	genPrefix = "courtbook:slotgen:"
	epochKey  = genPrefix + "epoch"

	// genTTL outlives any single read; counters of idle days expire.
	genTTL = 24 * time.Hour
)

var errStale = errors.New("slot cache: generation moved")

// SlotCache is safe to use as a nil pointer; it then never hits.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewSlotCache(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *SlotCache {
	return &SlotCache{redis: client, ttl: ttl, logger: logger}
}

func (c *SlotCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

func dayKey(resourceID int64, date time.Time) string {
	return fmt.Sprintf("%d:%s", resourceID, date.Format(interval.DateLayout))
}

func key(resourceID int64, date time.Time) string {
	return keyPrefix + dayKey(resourceID, date)
}

func genKey(resourceID int64, date time.Time) string {
	return genPrefix + dayKey(resourceID, date)
}

// stamp joins counter values; missing counters read as zero.
func stamp(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		s, _ := v.(string)
		if s == "" {
			s = "0"
		}
		parts[i] = s
	}
	return strings.Join(parts, "/")
}

// Get returns the cached slots of resourceID on date together with the
// day's generation. The generation is returned on a miss as well and must be
// passed to Set. An empty generation means the cache is unusable right now.
func (c *SlotCache) Get(ctx context.Context, resourceID int64, date time.Time) ([]models.Slot, string, bool) {
	if !c.enabled() {
		return nil, "", false
	}
	vals, err := c.redis.MGet(ctx, key(resourceID, date), genKey(resourceID, date), epochKey).Result()
	if err != nil {
		c.logger.Warn().Err(err).Int64("resource_id", resourceID).Msg("slot cache read failed")
		return nil, "", false
	}
	gen := stamp(vals[1:])
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var out []models.Slot
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, gen, false
	}
	return out, gen, true
}

// Set stores slots for resourceID on date if the day's generation still
// equals gen.
func (c *SlotCache) Set(ctx context.Context, resourceID int64, date time.Time, gen string, slots []models.Slot) {
	if !c.enabled() || gen == "" {
		return
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	payload, err := json.Marshal(slots)
	if err != nil {
		return
	}

	gk := genKey(resourceID, date)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, gk, epochKey).Result()
		if err != nil {
			return err
		}
		if stamp(vals) != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key(resourceID, date), payload, c.ttl)
			return nil
		})
		return err
	}, gk, epochKey)

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug().Int64("resource_id", resourceID).Str("date", date.Format(interval.DateLayout)).Msg("slot cache write skipped, day changed during read")
	default:
		c.logger.Warn().Err(err).Int64("resource_id", resourceID).Msg("slot cache write failed")
	}
}

// Invalidate drops the cached days of resourceID and advances their
// generations.
func (c *SlotCache) Invalidate(ctx context.Context, resourceID int64, dates ...time.Time) {
	if !c.enabled() || len(dates) == 0 {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, d := range dates {
			p.Incr(ctx, genKey(resourceID, d))
			p.Expire(ctx, genKey(resourceID, d), genTTL)
			p.Del(ctx, key(resourceID, d))
		}
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Int64("resource_id", resourceID).Msg("slot cache invalidation failed")
	}
}

// Flush drops every cached day, used after operating hours change.
func (c *SlotCache) Flush(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	if err := c.redis.Incr(ctx, epochKey).Err(); err != nil {
		return err
	}
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}
