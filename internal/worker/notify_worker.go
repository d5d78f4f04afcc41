package worker

import (
	"context"
	"errors"
	"time"

	"groomly/internal/domain"
	"groomly/internal/events"
	"groomly/internal/models"

	"github.com/rs/zerolog"
)

// notifyTask is one queued delivery.
type notifyTask struct {
	eventType string
	payload   []byte
	attempts  int
}

// NotifyWorker hands booking events to the external notification
// collaborator. Delivery itself lives outside this module; the worker
// only queues, retries with backoff, and gives up loudly.
type NotifyWorker struct {
	notifier    domain.Notifier
	retryPolicy RetryPolicy
	queue       chan notifyTask
	logger      *zerolog.Logger
}

var errQueueFull = errors.New("notification queue is full")

// NewNotifyWorker builds a worker with sane defaults.
func NewNotifyWorker(notifier domain.Notifier, retry RetryPolicy, queueSize int, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if queueSize <= 0 {
		queueSize = models.WorkerQueueSize
	}

	return &NotifyWorker{
		notifier:    notifier,
		retryPolicy: retry,
		queue:       make(chan notifyTask, queueSize),
		logger:      logger,
	}
}

// SubscribeBus enqueues every appointment lifecycle event published on
// the bus.
func (w *NotifyWorker) SubscribeBus(bus *events.EventBus) {
	types := []string{
		events.EventAppointmentCreated,
		events.EventAppointmentConfirmed,
		events.EventAppointmentCancelled,
		events.EventAppointmentCompleted,
	}
	for _, t := range types {
		bus.Subscribe(t, func(event *events.Event) error {
			return w.Enqueue(event.Type, event.Payload)
		})
	}
}

// Enqueue schedules one notification; a full queue drops the task
// rather than blocking the booking path.
func (w *NotifyWorker) Enqueue(eventType string, payload []byte) error {
	select {
	case w.queue <- notifyTask{eventType: eventType, payload: payload}:
		return nil
	default:
		w.logger.Warn().Str("event", eventType).Msg("notification queue full, dropping")
		return errQueueFull
	}
}

// Start consumes the queue until ctx is cancelled.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.deliver(ctx, task)
		}
	}
}

func (w *NotifyWorker) deliver(ctx context.Context, task notifyTask) {
	for {
		task.attempts++
		err := w.notifier.Notify(ctx, task.eventType, task.payload)
		if err == nil {
			return
		}

		if task.attempts > w.retryPolicy.MaxRetries {
			w.logger.Error().Err(err).
				Str("event", task.eventType).
				Int("attempts", task.attempts).
				Msg("notification delivery abandoned")
			return
		}

		delay := w.retryPolicy.NextDelay(task.attempts)
		w.logger.Warn().Err(err).
			Str("event", task.eventType).
			Dur("retry_in", delay).
			Msg("notification delivery failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
