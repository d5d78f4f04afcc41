package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONReachesSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []*Event
	bus.Subscribe(EventAppointmentCreated, func(event *Event) error {
		got = append(got, event)
		return nil
	})
	bus.Subscribe(EventAppointmentCancelled, func(event *Event) error {
		t.Fatal("handler for another event type must not fire")
		return nil
	})

	payload := AppointmentEventPayload{
		AppointmentID: "a1",
		ShopID:        "downtown",
		Status:        "pending",
	}
	require.NoError(t, bus.PublishJSON(EventAppointmentCreated, payload))

	require.Len(t, got, 1)
	assert.Equal(t, EventAppointmentCreated, got[0].Type)
	assert.False(t, got[0].CreatedAt.IsZero())

	var decoded AppointmentEventPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestPublishMultipleHandlers(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(EventScheduleUpdated, func(event *Event) error {
			calls++
			return nil
		})
	}

	bus.Publish(&Event{Type: EventScheduleUpdated, CreatedAt: time.Now()})
	assert.Equal(t, 3, calls)
}

func TestPublishJSONNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventScheduleUpdated, ScheduleEventPayload{ShopID: "s"}))
}

func TestPublishNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: EventAppointmentCompleted})
	})
}
