// Package booking owns every write to the appointment store and the
// day schedule index. No other package mutates either document type;
// each mutation is one optimistic store transaction.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"groomly/internal/domain"
	"groomly/internal/events"
	"groomly/internal/metrics"
	"groomly/internal/models"
	"groomly/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	store          *store.Store
	bus            domain.EventPublisher
	maxAdvanceDays int
	logger         *zerolog.Logger
}

func NewService(st *store.Store, bus domain.EventPublisher, maxAdvanceDays int, logger *zerolog.Logger) *Service {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = models.DefaultMaxAdvanceDays
	}
	return &Service{
		store:          st,
		bus:            bus,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
	}
}

func (s *Service) validateDraft(draft *models.Draft) (models.Interval, error) {
	if draft.Duration <= 0 {
		return models.Interval{}, ErrInvalidDuration
	}
	if draft.Date.IsZero() {
		return models.Interval{}, ErrInvalidDate
	}

	start, err := models.ParseClock(draft.Time)
	if err != nil {
		return models.Interval{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	if start+draft.Duration > models.MinutesPerDay {
		return models.Interval{}, fmt.Errorf("%w: slot extends past midnight", ErrInvalidDuration)
	}

	day := models.DayKey(draft.Date)
	today := models.DayKey(time.Now())
	if day < today {
		return models.Interval{}, ErrPastDate
	}
	if day > models.DayKey(time.Now().AddDate(0, 0, s.maxAdvanceDays)) {
		return models.Interval{}, ErrDateTooFar
	}

	return models.Interval{StartMinute: start, EndMinute: start + draft.Duration}, nil
}

// Book atomically validates the candidate slot against the day's valid
// intervals and commits the new pending appointment together against the
// updated index. Stale intervals found along the way are dropped by the
// same index write.
func (s *Service) Book(ctx context.Context, draft models.Draft) (*models.Appointment, error) {
	candidate, err := s.validateDraft(&draft)
	if err != nil {
		metrics.IncBooking("invalid")
		return nil, err
	}

	appt := &models.Appointment{
		ID:            uuid.NewString(),
		ShopID:        draft.ShopID,
		CustomerName:  draft.CustomerName,
		CustomerPhone: draft.CustomerPhone,
		PetName:       draft.PetName,
		PetBreed:      draft.PetBreed,
		ServiceType:   draft.ServiceType,
		ServicePrice:  draft.ServicePrice,
		Duration:      draft.Duration,
		Date:          draft.Date,
		Time:          draft.Time,
		Notes:         draft.Notes,
		Status:        models.StatusPending,
	}
	candidate.AppointmentID = appt.ID

	err = s.store.RunTransaction(ctx, func(ctx context.Context, txn *store.Txn) error {
		sched, err := txn.DaySchedule(ctx, draft.ShopID, draft.Date)
		if err != nil {
			return err
		}

		valid, err := s.validIntervals(ctx, txn, draft.ShopID, sched)
		if err != nil {
			return err
		}

		for _, iv := range valid {
			if candidate.Overlaps(iv) {
				return ErrSlotTaken
			}
		}

		txn.CreateAppointment(appt)
		sched.Intervals = append(valid, candidate)
		txn.PutDaySchedule(sched)
		return nil
	})
	if err != nil {
		metrics.IncBooking(bookingResult(err))
		return nil, err
	}

	metrics.IncBooking("committed")
	s.logger.Info().
		Str("shop_id", appt.ShopID).
		Str("appointment_id", appt.ID).
		Str("date", models.DayKey(appt.Date)).
		Str("time", appt.Time).
		Int("duration", appt.Duration).
		Msg("appointment booked")

	s.publishAppointment(events.EventAppointmentCreated, appt)
	s.publishSchedule(appt.ShopID, appt.Date)
	return appt, nil
}

// validIntervals re-checks, inside the transaction scope, the live
// status of every appointment the index references. Intervals whose
// appointment is cancelled or missing are stale and excluded.
func (s *Service) validIntervals(ctx context.Context, txn *store.Txn, shopID string, sched *models.DaySchedule) ([]models.Interval, error) {
	valid := make([]models.Interval, 0, len(sched.Intervals))
	for _, iv := range sched.Intervals {
		ref, err := txn.Appointment(ctx, shopID, iv.AppointmentID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !ref.Active() {
			continue
		}
		valid = append(valid, iv)
	}
	return valid, nil
}

// Cancel releases the appointment's interval and marks it cancelled in
// one atomic commit; neither write is observable without the other.
func (s *Service) Cancel(ctx context.Context, shopID, appointmentID string) error {
	var appt *models.Appointment
	err := s.store.RunTransaction(ctx, func(ctx context.Context, txn *store.Txn) error {
		a, err := txn.Appointment(ctx, shopID, appointmentID)
		if err != nil {
			return err
		}
		if !models.CanTransition(a.Status, models.StatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, models.StatusCancelled)
		}

		sched, err := txn.DaySchedule(ctx, shopID, a.Date)
		if err != nil {
			return err
		}
		if idx := sched.FindInterval(a.ID); idx >= 0 {
			sched.Intervals = append(sched.Intervals[:idx], sched.Intervals[idx+1:]...)
		}
		txn.PutDaySchedule(sched)

		a.Status = models.StatusCancelled
		txn.UpdateAppointment(a)
		appt = a
		return nil
	})
	if err != nil {
		metrics.IncCancellation(bookingResult(err))
		return err
	}

	metrics.IncCancellation("committed")
	s.logger.Info().
		Str("shop_id", shopID).
		Str("appointment_id", appointmentID).
		Msg("appointment cancelled")

	s.publishAppointment(events.EventAppointmentCancelled, appt)
	s.publishSchedule(appt.ShopID, appt.Date)
	return nil
}

// SetStatus applies confirm/complete as a single-document update; the
// reserved interval stays occupied. Cancellation goes through Cancel so
// the index release stays atomic with the status change.
func (s *Service) SetStatus(ctx context.Context, shopID, appointmentID, status string) error {
	switch status {
	case models.StatusCancelled:
		return s.Cancel(ctx, shopID, appointmentID)
	case models.StatusConfirmed, models.StatusCompleted:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	var appt *models.Appointment
	err := s.store.RunTransaction(ctx, func(ctx context.Context, txn *store.Txn) error {
		a, err := txn.Appointment(ctx, shopID, appointmentID)
		if err != nil {
			return err
		}
		if !models.CanTransition(a.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
		}
		a.Status = status
		txn.UpdateAppointment(a)
		appt = a
		return nil
	})
	if err != nil {
		return err
	}

	eventType := events.EventAppointmentConfirmed
	if status == models.StatusCompleted {
		eventType = events.EventAppointmentCompleted
	}
	s.publishAppointment(eventType, appt)
	return nil
}

// Get reads one appointment.
func (s *Service) Get(ctx context.Context, shopID, appointmentID string) (*models.Appointment, error) {
	return s.store.GetAppointment(ctx, shopID, appointmentID)
}

// ListDay returns the shop's appointments for one day.
func (s *Service) ListDay(ctx context.Context, shopID string, date time.Time) ([]*models.Appointment, error) {
	return s.store.ListDayAppointments(ctx, shopID, date)
}

func (s *Service) publishAppointment(eventType string, a *models.Appointment) {
	if s.bus == nil || a == nil {
		return
	}
	payload := events.AppointmentEventPayload{
		AppointmentID: a.ID,
		ShopID:        a.ShopID,
		CustomerName:  a.CustomerName,
		PetName:       a.PetName,
		ServiceType:   a.ServiceType,
		Status:        a.Status,
		Date:          a.Date,
		Time:          a.Time,
		Duration:      a.Duration,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("publish appointment event")
	}
}

func (s *Service) publishSchedule(shopID string, date time.Time) {
	if s.bus == nil {
		return
	}
	payload := events.ScheduleEventPayload{ShopID: shopID, Date: date}
	if err := s.bus.PublishJSON(events.EventScheduleUpdated, payload); err != nil {
		s.logger.Error().Err(err).Msg("publish schedule event")
	}
}

func bookingResult(err error) string {
	switch {
	case errors.Is(err, ErrSlotTaken):
		return "conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrContended):
		return "contention"
	default:
		return "error"
	}
}
