package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"courtbook/internal/models"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed store for resources, operating hours and
// reservations.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// overlapViolation is raised by the reservation triggers.
const overlapViolation = "reservation_overlap"

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
}

// NewDB opens (and migrates) the database at path.
//
// Writers use BEGIN IMMEDIATE so the database write lock is taken before the
// conflict re-check inside Reserve and Reschedule.
func NewDB(path string, logger *zerolog.Logger, opts ...Options) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	maxOpen := 10
	if len(opts) > 0 && opts[0].MaxOpenConns > 0 {
		maxOpen = opts[0].MaxOpenConns
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}

	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path is the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS resources (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_per_hour_cents INTEGER NOT NULL DEFAULT 0,
			cancellation_deadline_hours INTEGER NOT NULL DEFAULT 0,
			cancellation_fee_cents INTEGER NOT NULL DEFAULT 0,
			min_advance_booking_hours INTEGER NOT NULL DEFAULT 0,
			max_advance_booking_days INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS operating_hours (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			resource_id INTEGER NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			slot_duration_minutes INTEGER NOT NULL,
			price_override_cents INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS resource_closures (
			resource_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (resource_id, date),
			FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			resource_id INTEGER NOT NULL,
			member_id INTEGER,
			renter_name TEXT NOT NULL,
			renter_phone TEXT NOT NULL DEFAULT '',
			renter_email TEXT NOT NULL DEFAULT '',
			renter_tax_id TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			price_cents INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'scheduled',
			payment_status TEXT NOT NULL DEFAULT 'pending',
			payment_method TEXT,
			cancellation_fee_cents INTEGER NOT NULL DEFAULT 0,
			tracking_token TEXT NOT NULL UNIQUE,
			access_token TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			cancelled_at DATETIME,
			CHECK (end_time > start_time),
			FOREIGN KEY (resource_id) REFERENCES resources(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_operating_hours_resource ON operating_hours(resource_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_day ON reservations(resource_id, date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_access_token ON reservations(access_token)`,
		// Last line of defence for the no-overlap invariant; Reserve checks first.
		`CREATE TRIGGER IF NOT EXISTS trg_reservations_no_overlap_insert
		BEFORE INSERT ON reservations
		WHEN NEW.status IN ('scheduled', 'confirmed')
		BEGIN
			SELECT RAISE(ABORT, '` + overlapViolation + `')
			WHERE EXISTS (
				SELECT 1 FROM reservations r
				WHERE r.resource_id = NEW.resource_id
				  AND r.date = NEW.date
				  AND r.status IN ('scheduled', 'confirmed')
				  AND r.start_time < NEW.end_time
				  AND NEW.start_time < r.end_time
			);
		END`,
		`CREATE TRIGGER IF NOT EXISTS trg_reservations_no_overlap_update
		BEFORE UPDATE OF resource_id, date, start_time, end_time, status ON reservations
		WHEN NEW.status IN ('scheduled', 'confirmed')
		BEGIN
			SELECT RAISE(ABORT, '` + overlapViolation + `')
			WHERE EXISTS (
				SELECT 1 FROM reservations r
				WHERE r.id <> NEW.id
				  AND r.resource_id = NEW.resource_id
				  AND r.date = NEW.date
				  AND r.status IN ('scheduled', 'confirmed')
				  AND r.start_time < NEW.end_time
				  AND NEW.start_time < r.end_time
			);
		END`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", trimSQL(q), err)
		}
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// storageError classifies a driver error. Constraint failures are caller
// errors and are returned as-is; everything else is a transient StorageError.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if isOverlapViolation(err) {
		return &models.ConflictError{}
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &models.StorageError{Op: op, Err: err}
}

func isOverlapViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintTrigger {
		return true
	}
	return err != nil && strings.Contains(err.Error(), overlapViolation)
}

func trimSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 60 {
		return q[:60] + "..."
	}
	return q
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
