package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"groomly/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store is the document store backing appointments and day schedules.
// All writes go through RunTransaction; plain accessors are read-only.
type Store struct {
	db     *sql.DB
	path   string
	opts   TxnOptions
	logger *zerolog.Logger
}

// NewStore opens (or creates) the database at path and runs migrations.
func NewStore(path string, opts TxnOptions, logger *zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	// BEGIN IMMEDIATE keeps commit-time read verification sound under
	// concurrent writers; busy_timeout makes them queue instead of fail.
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("store initialized")
	return &Store{db: db, path: path, opts: opts, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
            shop_id TEXT NOT NULL,
            id TEXT NOT NULL,
            customer_name TEXT NOT NULL,
            customer_phone TEXT,
            pet_name TEXT,
            pet_breed TEXT,
            service_type TEXT NOT NULL,
            service_price INTEGER NOT NULL DEFAULT 0,
            duration INTEGER NOT NULL,
            date TEXT NOT NULL,
            time TEXT NOT NULL,
            notes TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1,
            PRIMARY KEY (shop_id, id)
        )`,

		`CREATE TABLE IF NOT EXISTS day_schedules (
            shop_id TEXT NOT NULL,
            date TEXT NOT NULL,
            intervals TEXT NOT NULL DEFAULT '[]',
            version INTEGER NOT NULL DEFAULT 1,
            PRIMARY KEY (shop_id, date)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_appointments_shop_date ON appointments(shop_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const appointmentColumns = `shop_id, id, customer_name, customer_phone, pet_name, pet_breed,
                 service_type, service_price, duration, date, time, notes,
                 status, created_at, updated_at, version`

func scanAppointment(row *sql.Row) (*models.Appointment, error) {
	var a models.Appointment
	var dateStr string
	err := row.Scan(
		&a.ShopID, &a.ID, &a.CustomerName, &a.CustomerPhone, &a.PetName, &a.PetBreed,
		&a.ServiceType, &a.ServicePrice, &a.Duration, &dateStr, &a.Time, &a.Notes,
		&a.Status, &a.CreatedAt, &a.UpdatedAt, &a.Version,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	a.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse appointment date %s: %w", dateStr, err)
	}
	return &a, nil
}

func getAppointment(ctx context.Context, q queryer, shopID, id string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE shop_id = ? AND id = ?`
	return scanAppointment(q.QueryRowContext(ctx, query, shopID, id))
}

func getDaySchedule(ctx context.Context, q queryer, shopID string, date time.Time) (*models.DaySchedule, error) {
	sched := &models.DaySchedule{
		ShopID:    shopID,
		Date:      date,
		Intervals: []models.Interval{},
	}

	var raw string
	query := `SELECT intervals, version FROM day_schedules WHERE shop_id = ? AND date = ?`
	err := q.QueryRowContext(ctx, query, shopID, models.DayKey(date)).Scan(&raw, &sched.Version)
	if err == sql.ErrNoRows {
		// Absent index document means an empty interval set.
		return sched, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get day schedule: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &sched.Intervals); err != nil {
		return nil, fmt.Errorf("decode day schedule intervals: %w", err)
	}
	return sched, nil
}

// GetAppointment reads one appointment outside any transaction.
func (s *Store) GetAppointment(ctx context.Context, shopID, id string) (*models.Appointment, error) {
	return getAppointment(ctx, s.db, shopID, id)
}

// GetDaySchedule reads the interval index for one shop-day. Absence is
// returned as an empty schedule with Version 0.
func (s *Store) GetDaySchedule(ctx context.Context, shopID string, date time.Time) (*models.DaySchedule, error) {
	return getDaySchedule(ctx, s.db, shopID, date)
}

// ListDayAppointments returns all appointments of a shop for one day,
// ordered by start time.
func (s *Store) ListDayAppointments(ctx context.Context, shopID string, date time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
              WHERE shop_id = ? AND date = ? ORDER BY time ASC, created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, shopID, models.DayKey(date))
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		a := &models.Appointment{}
		var dateStr string
		err := rows.Scan(
			&a.ShopID, &a.ID, &a.CustomerName, &a.CustomerPhone, &a.PetName, &a.PetBreed,
			&a.ServiceType, &a.ServicePrice, &a.Duration, &dateStr, &a.Time, &a.Notes,
			&a.Status, &a.CreatedAt, &a.UpdatedAt, &a.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		a.Date, err = time.Parse(models.DateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse appointment date %s: %w", dateStr, err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
