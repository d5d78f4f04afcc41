package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"groomly/internal/metrics"
	"groomly/internal/models"
)

// TxnOptions bounds the optimistic retry loop. The budget is an
// explicit configuration value rather than a driver default.
type TxnOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
}

func (o TxnOptions) nextDelay(attempt int) time.Duration {
	base := o.RetryDelay
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	maxDelay := o.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 250 * time.Millisecond
	}

	d := base
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

type docKind int

const (
	docAppointment docKind = iota
	docSchedule
)

// readStamp records the version of a document at read time.
// Version 0 means the document was absent.
type readStamp struct {
	kind    docKind
	shopID  string
	key     string
	version int64
}

type writeOp struct {
	createAppt *models.Appointment
	updateAppt *models.Appointment
	schedule   *models.DaySchedule
}

// Txn is one optimistic read-modify-write cycle. Reads run against the
// live store and record version stamps; writes are staged and applied
// at commit, where every stamp is re-verified first. Any drift aborts
// the commit and the runner retries the whole cycle.
type Txn struct {
	s      *Store
	stamps []readStamp
	writes []writeOp
}

// Appointment reads an appointment inside the transaction scope.
// A missing document is recorded in the read set and reported as
// ErrNotFound.
func (t *Txn) Appointment(ctx context.Context, shopID, id string) (*models.Appointment, error) {
	a, err := getAppointment(ctx, t.s.db, shopID, id)
	if errors.Is(err, ErrNotFound) {
		t.stamps = append(t.stamps, readStamp{kind: docAppointment, shopID: shopID, key: id})
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	t.stamps = append(t.stamps, readStamp{kind: docAppointment, shopID: shopID, key: id, version: a.Version})
	return a, nil
}

// DaySchedule reads the interval index inside the transaction scope.
// Absence is an empty schedule with Version 0, still tracked in the
// read set so a concurrent creation aborts the commit.
func (t *Txn) DaySchedule(ctx context.Context, shopID string, date time.Time) (*models.DaySchedule, error) {
	sched, err := getDaySchedule(ctx, t.s.db, shopID, date)
	if err != nil {
		return nil, err
	}
	t.stamps = append(t.stamps, readStamp{kind: docSchedule, shopID: shopID, key: models.DayKey(date), version: sched.Version})
	return sched, nil
}

// CreateAppointment stages a new appointment document.
func (t *Txn) CreateAppointment(a *models.Appointment) {
	t.writes = append(t.writes, writeOp{createAppt: a})
}

// UpdateAppointment stages a versioned update of an existing appointment.
func (t *Txn) UpdateAppointment(a *models.Appointment) {
	t.writes = append(t.writes, writeOp{updateAppt: a})
}

// PutDaySchedule stages the full replacement of the interval index.
func (t *Txn) PutDaySchedule(sched *models.DaySchedule) {
	t.writes = append(t.writes, writeOp{schedule: sched})
}

// RunTransaction executes fn and commits its staged writes atomically.
// Version conflicts are retried with exponential backoff up to the
// configured budget; business errors returned by fn abort immediately
// with zero writes.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, txn *Txn) error) error {
	attempts := s.opts.MaxAttempts
	if attempts <= 0 {
		attempts = models.DefaultTxnMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		txn := &Txn{s: s}
		if err := fn(ctx, txn); err != nil {
			return err
		}

		err := txn.commit(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return err
		}

		lastErr = err
		metrics.IncTxnRetry()
		s.logger.Debug().Int("attempt", attempt).Msg("transaction conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.nextDelay(attempt)):
		}
	}

	return fmt.Errorf("%w (%d attempts): %v", ErrContended, attempts, lastErr)
}

func (t *Txn) commit(ctx context.Context) error {
	tx, err := t.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Verify the read set before touching anything. The transaction
	// holds the write lock here, so a clean verification guarantees the
	// reads are still current at commit.
	for _, stamp := range t.stamps {
		current, err := currentVersion(ctx, tx, stamp)
		if err != nil {
			return err
		}
		if current != stamp.version {
			return ErrConcurrentModification
		}
	}

	now := time.Now()
	for _, w := range t.writes {
		switch {
		case w.createAppt != nil:
			if err := insertAppointment(ctx, tx, w.createAppt, now); err != nil {
				return err
			}
		case w.updateAppt != nil:
			if err := updateAppointment(ctx, tx, w.updateAppt, now); err != nil {
				return err
			}
		case w.schedule != nil:
			if err := putSchedule(ctx, tx, w.schedule); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func currentVersion(ctx context.Context, tx *sql.Tx, stamp readStamp) (int64, error) {
	var query string
	switch stamp.kind {
	case docAppointment:
		query = `SELECT version FROM appointments WHERE shop_id = ? AND id = ?`
	default:
		query = `SELECT version FROM day_schedules WHERE shop_id = ? AND date = ?`
	}

	var v int64
	err := tx.QueryRowContext(ctx, query, stamp.shopID, stamp.key).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("verify read set: %w", err)
	}
	return v, nil
}

func insertAppointment(ctx context.Context, tx *sql.Tx, a *models.Appointment, now time.Time) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	a.Version = 1

	query := `INSERT INTO appointments (
                shop_id, id, customer_name, customer_phone, pet_name, pet_breed,
                service_type, service_price, duration, date, time, notes,
                status, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, query,
		a.ShopID, a.ID, a.CustomerName, a.CustomerPhone, a.PetName, a.PetBreed,
		a.ServiceType, a.ServicePrice, a.Duration, models.DayKey(a.Date), a.Time, a.Notes,
		a.Status, a.CreatedAt, a.UpdatedAt, a.Version,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func updateAppointment(ctx context.Context, tx *sql.Tx, a *models.Appointment, now time.Time) error {
	query := `UPDATE appointments SET status = ?, notes = ?, updated_at = ?, version = version + 1
              WHERE shop_id = ? AND id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query, a.Status, a.Notes, now, a.ShopID, a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	a.UpdatedAt = now
	a.Version++
	return nil
}

func putSchedule(ctx context.Context, tx *sql.Tx, sched *models.DaySchedule) error {
	intervals := sched.Intervals
	if intervals == nil {
		intervals = []models.Interval{}
	}
	raw, err := json.Marshal(intervals)
	if err != nil {
		return fmt.Errorf("encode intervals: %w", err)
	}

	if sched.Version == 0 {
		query := `INSERT INTO day_schedules (shop_id, date, intervals, version) VALUES (?, ?, ?, 1)`
		if _, err := tx.ExecContext(ctx, query, sched.ShopID, models.DayKey(sched.Date), string(raw)); err != nil {
			return fmt.Errorf("insert day schedule: %w", err)
		}
		sched.Version = 1
		return nil
	}

	query := `UPDATE day_schedules SET intervals = ?, version = version + 1
              WHERE shop_id = ? AND date = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query, string(raw), sched.ShopID, models.DayKey(sched.Date), sched.Version)
	if err != nil {
		return fmt.Errorf("update day schedule: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	sched.Version++
	return nil
}
