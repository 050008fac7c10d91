package database

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/config"
)

// SyncResourcesFromConfig applies resources.yaml to the database in a single
// transaction: resources are upserted, their operating hours and closures
// replaced, and resources missing from the file deactivated. Existing
// reservations are left untouched.
func (db *DB) SyncResourcesFromConfig(ctx context.Context, cfg *config.ResourcesConfig) error {
	if cfg == nil {
		return fmt.Errorf("resources config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin sync", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	seen := make(map[int64]struct{}, len(cfg.Resources))

	for _, rc := range cfg.Resources {
		if err := upsertResource(ctx, tx, rc.Resource(), now); err != nil {
			return fmt.Errorf("sync resource %d: %w", rc.ID, err)
		}
		if err := replaceRules(ctx, tx, rc.ID, rc.Rules()); err != nil {
			return fmt.Errorf("sync resource %d operating hours: %w", rc.ID, err)
		}
		if err := replaceClosures(ctx, tx, rc.ID, cfg.Closures(rc.ID)); err != nil {
			return fmt.Errorf("sync resource %d closures: %w", rc.ID, err)
		}
		seen[rc.ID] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM resources WHERE is_active = 1`)
	if err != nil {
		return storageError("list resources", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return storageError("scan resource id", err)
		}
		if _, ok := seen[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storageError("list resources", err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `UPDATE resources SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return storageError("deactivate resource", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("commit sync", err)
	}

	for _, w := range cfg.Warnings() {
		db.logger.Warn().Msg(w)
	}
	db.logger.Info().
		Int("resources", len(cfg.Resources)).
		Int("deactivated", len(stale)).
		Msg("resources synced from config")
	return nil
}
