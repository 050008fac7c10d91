package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/availability"
	"courtbook/internal/cancellation"
	"courtbook/internal/interval"
	"courtbook/internal/models"
)

const reservationColumns = `id, resource_id, member_id, renter_name, renter_phone, renter_email, renter_tax_id,
	date, start_time, end_time, price_cents, status, payment_status, payment_method,
	cancellation_fee_cents, tracking_token, access_token, created_at, updated_at, cancelled_at`

func scanReservation(row interface{ Scan(...any) error }) (*models.Reservation, error) {
	var (
		r           models.Reservation
		memberID    sql.NullInt64
		method      sql.NullString
		cancelledAt sql.NullTime
		date        string
		start, end  string
	)
	err := row.Scan(&r.ID, &r.ResourceID, &memberID, &r.Renter.Name, &r.Renter.Phone, &r.Renter.Email, &r.Renter.TaxID,
		&date, &start, &end, &r.PriceCents, &r.Status, &r.PaymentStatus, &method,
		&r.CancellationFeeCents, &r.TrackingToken, &r.AccessToken, &r.CreatedAt, &r.UpdatedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}

	if r.Date, err = interval.ParseDate(date); err != nil {
		return nil, err
	}
	if r.Start, err = interval.OnDate(r.Date, start); err != nil {
		return nil, err
	}
	if r.End, err = interval.OnDate(r.Date, end); err != nil {
		return nil, err
	}
	if memberID.Valid {
		id := memberID.Int64
		r.Renter.MemberID = &id
	}
	if method.Valid {
		m := method.String
		r.PaymentMethod = &m
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	return &r, nil
}

func queryReservations(ctx context.Context, q queryer, op, where string, args ...any) ([]models.Reservation, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations `+where, args...)
	if err != nil {
		return nil, storageError(op, err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, storageError(op, err)
		}
		out = append(out, *r)
	}
	return out, storageError(op, rows.Err())
}

func getReservation(ctx context.Context, q queryer, where string, args ...any) (*models.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations `+where, args...)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, storageError("get reservation", err)
	}
	return r, nil
}

func listForDay(ctx context.Context, q queryer, resourceID int64, date time.Time, activeOnly bool) ([]models.Reservation, error) {
	where := `WHERE resource_id = ? AND date = ?`
	if activeOnly {
		where += ` AND status IN ('scheduled', 'confirmed')`
	}
	return queryReservations(ctx, q, "list day", where+` ORDER BY start_time, id`,
		resourceID, date.Format(interval.DateLayout))
}

func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return getReservation(ctx, db.DB, `WHERE id = ?`, id)
}

func (db *DB) GetByTrackingToken(ctx context.Context, token string) (*models.Reservation, error) {
	return getReservation(ctx, db.DB, `WHERE tracking_token = ?`, token)
}

// ListByAccessToken returns every reservation grouped under a guest access
// token, soonest first.
func (db *DB) ListByAccessToken(ctx context.Context, token string) ([]models.Reservation, error) {
	if token == "" {
		return nil, nil
	}
	return queryReservations(ctx, db.DB, "list by access token",
		`WHERE access_token = ? ORDER BY date, start_time, id`, token)
}

// ListForDay returns all reservations of a resource on date regardless of
// status, ordered by start time then id.
func (db *DB) ListForDay(ctx context.Context, resourceID int64, date time.Time) ([]models.Reservation, error) {
	return listForDay(ctx, db.DB, resourceID, date, false)
}

// Reserve persists r if its interval is still free. The conflict check and the
// insert share one write transaction, so of several overlapping attempts at
// most one commits; the others get a *models.ConflictError naming the winner.
//
// Retrying with the same tracking token after an ambiguous failure returns the
// reservation created by the earlier attempt instead of a conflict.
func (db *DB) Reserve(ctx context.Context, r *models.Reservation) (*models.Reservation, error) {
	date := r.Date
	if date.IsZero() {
		date = interval.DateOf(r.Start)
	}
	if err := interval.ValidateOnDate(date, r.Start, r.End); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("begin reserve", err)
	}
	defer func() { _ = tx.Rollback() }()

	if r.TrackingToken != "" {
		prev, err := getReservation(ctx, tx, `WHERE tracking_token = ?`, r.TrackingToken)
		if err == nil {
			return prev, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	resource, err := getResource(ctx, tx, r.ResourceID)
	if err != nil {
		return nil, err
	}
	if !resource.IsActive {
		return nil, fmt.Errorf("resource %d: %w", r.ResourceID, models.ErrResourceInactive)
	}

	day, err := listForDay(ctx, tx, r.ResourceID, date, true)
	if err != nil {
		return nil, err
	}
	if conflicts := availability.Conflicts(date, r.Start, r.End, day, 0); len(conflicts) > 0 {
		return nil, &models.ConflictError{Conflicts: conflicts}
	}

	out := *r
	out.Date = date
	if out.Status == "" {
		out.Status = models.StatusScheduled
	}
	if out.PaymentStatus == "" {
		out.PaymentStatus = models.PaymentPending
	}
	out.CreatedAt = stampOr(out.CreatedAt)
	out.UpdatedAt = out.CreatedAt

	var memberID any
	if out.Renter.MemberID != nil {
		memberID = *out.Renter.MemberID
	}
	var method any
	if out.PaymentMethod != nil {
		method = *out.PaymentMethod
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (resource_id, member_id, renter_name, renter_phone, renter_email, renter_tax_id,
		                          date, start_time, end_time, price_cents, status, payment_status, payment_method,
		                          cancellation_fee_cents, tracking_token, access_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		out.ResourceID, memberID, out.Renter.Name, out.Renter.Phone, out.Renter.Email, out.Renter.TaxID,
		date.Format(interval.DateLayout), interval.FormatClock(date, out.Start), interval.FormatClock(date, out.End),
		out.PriceCents, out.Status, out.PaymentStatus, method,
		out.TrackingToken, out.AccessToken, out.CreatedAt, out.UpdatedAt,
	)
	if err != nil {
		return nil, storageError("insert reservation", err)
	}

	if out.ID, err = res.LastInsertId(); err != nil {
		return nil, storageError("insert reservation", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit reserve", err)
	}

	db.logger.Debug().
		Int64("reservation_id", out.ID).
		Int64("resource_id", out.ResourceID).
		Str("date", date.Format(interval.DateLayout)).
		Msg("reservation stored")
	return &out, nil
}

// Cancel cancels an active reservation, recording the fee owed when the policy
// is evaluated at now (wall clock). The row is kept and stamped with at.
func (db *DB) Cancel(ctx context.Context, id int64, now, at time.Time) (*models.Reservation, cancellation.Outcome, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cancellation.Outcome{}, storageError("begin cancel", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getReservation(ctx, tx, `WHERE id = ?`, id)
	if err != nil {
		return nil, cancellation.Outcome{}, err
	}
	if !r.IsActive() {
		return nil, cancellation.Outcome{}, fmt.Errorf("cancel %s reservation %d: %w", r.Status, id, models.ErrInvalidTransition)
	}

	resource, err := getResource(ctx, tx, r.ResourceID)
	if err != nil {
		return nil, cancellation.Outcome{}, err
	}

	outcome := cancellation.Evaluate(*r, *resource, now)
	stamp := stampOr(at)
	r.Status = models.StatusCancelled
	r.PaymentStatus = cancellation.PaymentStatusAfter(r.PaymentStatus, outcome)
	r.CancellationFeeCents = outcome.FeeCents
	r.UpdatedAt = stamp
	r.CancelledAt = &stamp

	_, err = tx.ExecContext(ctx, `
		UPDATE reservations
		SET status = ?, payment_status = ?, cancellation_fee_cents = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ?`,
		r.Status, r.PaymentStatus, r.CancellationFeeCents, stamp, stamp, id)
	if err != nil {
		return nil, cancellation.Outcome{}, storageError("update cancel", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, cancellation.Outcome{}, storageError("commit cancel", err)
	}
	return r, outcome, nil
}

// Reschedule moves an active reservation to a new interval, checking only the
// other reservations for conflicts.
func (db *DB) Reschedule(ctx context.Context, req models.RescheduleRequest) (*models.Reservation, error) {
	date := req.Date
	if date.IsZero() {
		date = interval.DateOf(req.Start)
	}
	if err := interval.ValidateOnDate(date, req.Start, req.End); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("begin reschedule", err)
	}
	defer func() { _ = tx.Rollback() }()

	r, err := getReservation(ctx, tx, `WHERE id = ?`, req.ID)
	if err != nil {
		return nil, err
	}
	if !r.IsActive() {
		return nil, fmt.Errorf("reschedule %s reservation %d: %w", r.Status, req.ID, models.ErrInvalidTransition)
	}

	day, err := listForDay(ctx, tx, r.ResourceID, date, true)
	if err != nil {
		return nil, err
	}
	if conflicts := availability.Conflicts(date, req.Start, req.End, day, r.ID); len(conflicts) > 0 {
		return nil, &models.ConflictError{Conflicts: conflicts}
	}

	now := stampOr(req.UpdatedAt)
	_, err = tx.ExecContext(ctx, `
		UPDATE reservations
		SET date = ?, start_time = ?, end_time = ?, price_cents = ?, updated_at = ?
		WHERE id = ?`,
		date.Format(interval.DateLayout), interval.FormatClock(date, req.Start), interval.FormatClock(date, req.End),
		req.PriceCents, now, r.ID)
	if err != nil {
		return nil, storageError("update reschedule", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit reschedule", err)
	}

	r.Date, r.Start, r.End, r.PriceCents, r.UpdatedAt = date, req.Start, req.End, req.PriceCents, now
	return r, nil
}

// CompletePast marks active reservations whose interval ended by now (wall
// clock) as completed, stamped with at, and returns how many changed.
func (db *DB) CompletePast(ctx context.Context, now, at time.Time) (int64, error) {
	today := now.Format(interval.DateLayout)
	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET status = 'completed', updated_at = ?
		WHERE status IN ('scheduled', 'confirmed')
		  AND (date < ? OR (date = ? AND end_time <= ?))`,
		stampOr(at), today, today, now.Format(interval.ClockLayout))
	if err != nil {
		return 0, storageError("complete past", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("complete past", err)
	}
	return n, nil
}

// SetPaymentStatus records the outcome reported by a payment collaborator.
func (db *DB) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus, method *string, at time.Time) (*models.Reservation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("payment status %q: %w", status, models.ErrInvalidTransition)
	}

	var m any
	if method != nil {
		m = *method
	}
	res, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET payment_status = ?, payment_method = COALESCE(?, payment_method), updated_at = ?
		WHERE id = ?`,
		status, m, stampOr(at), id)
	if err != nil {
		return nil, storageError("set payment status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("reservation %d: %w", id, models.ErrNotFound)
	}
	return db.GetReservation(ctx, id)
}

// stampOr returns at in UTC, or the current instant when at is unset.
func stampOr(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}
