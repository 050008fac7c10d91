package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/interval"
	"courtbook/internal/models"
)

const resourceColumns = `id, name, description, price_per_hour_cents, cancellation_deadline_hours,
	cancellation_fee_cents, min_advance_booking_hours, max_advance_booking_days, is_active,
	created_at, updated_at`

func scanResource(row interface{ Scan(...any) error }) (*models.Resource, error) {
	var r models.Resource
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.PricePerHourCents, &r.CancellationDeadlineHours,
		&r.CancellationFeeCents, &r.MinAdvanceBookingHours, &r.MaxAdvanceBookingDays, &r.IsActive,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertResource inserts or updates a resource, keeping its created_at.
func (db *DB) UpsertResource(ctx context.Context, r models.Resource) error {
	return upsertResource(ctx, db.DB, r, time.Now().UTC())
}

func upsertResource(ctx context.Context, q queryer, r models.Resource, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price_per_hour_cents = excluded.price_per_hour_cents,
			cancellation_deadline_hours = excluded.cancellation_deadline_hours,
			cancellation_fee_cents = excluded.cancellation_fee_cents,
			min_advance_booking_hours = excluded.min_advance_booking_hours,
			max_advance_booking_days = excluded.max_advance_booking_days,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, r.Description, r.PricePerHourCents, r.CancellationDeadlineHours,
		r.CancellationFeeCents, r.MinAdvanceBookingHours, r.MaxAdvanceBookingDays, boolToInt(r.IsActive),
		now, now,
	)
	if err != nil {
		return storageError(fmt.Sprintf("upsert resource %d", r.ID), err)
	}
	return nil
}

func (db *DB) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	return getResource(ctx, db.DB, id)
}

func getResource(ctx context.Context, q queryer, id int64) (*models.Resource, error) {
	row := q.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("get resource", err)
	}
	return r, nil
}

// ListResources returns resources ordered by id.
func (db *DB) ListResources(ctx context.Context, activeOnly bool) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageError("list resources", err)
	}
	defer rows.Close()

	var out []models.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, storageError("scan resource", err)
		}
		out = append(out, *r)
	}
	return out, storageError("list resources", rows.Err())
}

// ListRules returns every stored rule of a resource in configuration order.
func (db *DB) ListRules(ctx context.Context, resourceID int64) ([]models.OperatingHourRule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, resource_id, day_of_week, open_time, close_time, slot_duration_minutes,
		       price_override_cents, is_active
		FROM operating_hours
		WHERE resource_id = ?
		ORDER BY position, id`, resourceID)
	if err != nil {
		return nil, storageError("list rules", err)
	}
	defer rows.Close()

	var out []models.OperatingHourRule
	for rows.Next() {
		var (
			r        models.OperatingHourRule
			day      int
			override sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.ResourceID, &day, &r.OpenTime, &r.CloseTime, &r.SlotDurationMinutes, &override, &r.IsActive); err != nil {
			return nil, storageError("scan rule", err)
		}
		r.DayOfWeek = time.Weekday(day)
		if override.Valid {
			v := override.Int64
			r.PriceOverrideCents = &v
		}
		out = append(out, r)
	}
	return out, storageError("list rules", rows.Err())
}

// ReplaceRules swaps the rule set of a resource atomically.
func (db *DB) ReplaceRules(ctx context.Context, resourceID int64, rules []models.OperatingHourRule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin replace rules", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceRules(ctx, tx, resourceID, rules); err != nil {
		return err
	}
	return storageError("commit replace rules", tx.Commit())
}

func replaceRules(ctx context.Context, q queryer, resourceID int64, rules []models.OperatingHourRule) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM operating_hours WHERE resource_id = ?`, resourceID); err != nil {
		return storageError("delete rules", err)
	}
	for i, r := range rules {
		var override any
		if r.PriceOverrideCents != nil {
			override = *r.PriceOverrideCents
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO operating_hours (resource_id, position, day_of_week, open_time, close_time,
			                             slot_duration_minutes, price_override_cents, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			resourceID, i, int(r.DayOfWeek), r.OpenTime, r.CloseTime, r.SlotDurationMinutes, override, boolToInt(r.IsActive))
		if err != nil {
			return storageError("insert rule", err)
		}
	}
	return nil
}

// ReplaceClosures swaps the closed dates of a resource atomically.
func (db *DB) ReplaceClosures(ctx context.Context, resourceID int64, closures []models.Closure) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin replace closures", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceClosures(ctx, tx, resourceID, closures); err != nil {
		return err
	}
	return storageError("commit replace closures", tx.Commit())
}

func replaceClosures(ctx context.Context, q queryer, resourceID int64, closures []models.Closure) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM resource_closures WHERE resource_id = ?`, resourceID); err != nil {
		return storageError("delete closures", err)
	}
	for _, c := range closures {
		_, err := q.ExecContext(ctx, `
			INSERT INTO resource_closures (resource_id, date, reason) VALUES (?, ?, ?)
			ON CONFLICT(resource_id, date) DO UPDATE SET reason = excluded.reason`,
			resourceID, c.Date.Format(interval.DateLayout), c.Reason)
		if err != nil {
			return storageError("insert closure", err)
		}
	}
	return nil
}

// IsClosed reports whether the resource is closed for the whole of date.
func (db *DB) IsClosed(ctx context.Context, resourceID int64, date time.Time) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM resource_closures WHERE resource_id = ? AND date = ?`,
		resourceID, date.Format(interval.DateLayout)).Scan(&n)
	if err != nil {
		return false, storageError("check closure", err)
	}
	return n > 0, nil
}
