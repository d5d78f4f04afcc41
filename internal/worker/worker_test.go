package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"groomly/internal/events"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu       sync.Mutex
	calls    []string
	failLeft int
}

func (f *fakeNotifier) Notify(_ context.Context, eventType string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventType)
	if f.failLeft > 0 {
		f.failLeft--
		return errors.New("notifier unavailable")
	}
	return nil
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 8*time.Second, p.NextDelay(4))
	assert.Equal(t, 10*time.Second, p.NextDelay(5), "clamped at max delay")
	assert.Equal(t, 10*time.Second, p.NextDelay(10))
}

func TestNotifyWorkerDelivers(t *testing.T) {
	notifier := &fakeNotifier{}
	w := NewNotifyWorker(notifier, fastRetry(), 8, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.Enqueue(events.EventAppointmentCreated, []byte(`{}`)))

	assert.Eventually(t, func() bool {
		return notifier.callCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNotifyWorkerRetriesTransientFailure(t *testing.T) {
	notifier := &fakeNotifier{failLeft: 2}
	w := NewNotifyWorker(notifier, fastRetry(), 8, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.Enqueue(events.EventAppointmentConfirmed, []byte(`{}`)))

	assert.Eventually(t, func() bool {
		return notifier.callCount() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestNotifyWorkerGivesUpAfterBudget(t *testing.T) {
	notifier := &fakeNotifier{failLeft: 100}
	w := NewNotifyWorker(notifier, fastRetry(), 8, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.Enqueue(events.EventAppointmentCancelled, []byte(`{}`)))

	// MaxRetries 3 means the first attempt plus three retries.
	assert.Eventually(t, func() bool {
		return notifier.callCount() == 4
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, notifier.callCount())
}

func TestNotifyWorkerQueueFull(t *testing.T) {
	notifier := &fakeNotifier{}
	w := NewNotifyWorker(notifier, fastRetry(), 1, testLogger())

	// Worker not started, so the second enqueue has nowhere to go.
	require.NoError(t, w.Enqueue(events.EventAppointmentCreated, nil))
	err := w.Enqueue(events.EventAppointmentCreated, nil)
	assert.Error(t, err)
}

func TestNotifyWorkerSubscribeBus(t *testing.T) {
	notifier := &fakeNotifier{}
	w := NewNotifyWorker(notifier, fastRetry(), 8, testLogger())

	bus := events.NewEventBus()
	w.SubscribeBus(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, bus.PublishJSON(events.EventAppointmentCreated, map[string]string{"id": "a1"}))
	require.NoError(t, bus.PublishJSON(events.EventAppointmentCompleted, map[string]string{"id": "a1"}))

	assert.Eventually(t, func() bool {
		return notifier.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}
