package domain

import (
	"context"
	"time"

	"groomly/internal/models"
)

// ScheduleReader is the read-only store surface the availability
// observer depends on. It never exposes writes.
type ScheduleReader interface {
	GetAppointment(ctx context.Context, shopID, id string) (*models.Appointment, error)
	GetDaySchedule(ctx context.Context, shopID string, date time.Time) (*models.DaySchedule, error)
}

// EventPublisher publishes domain events after committed writes.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SnapshotRepository caches the observer's latest validated snapshots
// for UI-serving instances.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, shopID string, date time.Time) (*models.AvailabilitySnapshot, error)
	SetSnapshot(ctx context.Context, snap *models.AvailabilitySnapshot) error
	ClearSnapshot(ctx context.Context, shopID string, date time.Time) error
}

// Notifier is the external notification collaborator. Delivery
// transport lives outside this module.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload []byte) error
}

// BookingService is the write surface of the booking core. It is the
// only writer to both the appointment store and the schedule index.
type BookingService interface {
	Book(ctx context.Context, draft models.Draft) (*models.Appointment, error)
	Cancel(ctx context.Context, shopID, appointmentID string) error
	SetStatus(ctx context.Context, shopID, appointmentID, status string) error
	Get(ctx context.Context, shopID, appointmentID string) (*models.Appointment, error)
	ListDay(ctx context.Context, shopID string, date time.Time) ([]*models.Appointment, error)
}
