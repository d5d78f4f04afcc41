package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestIntervalOverlaps(t *testing.T) {
	base := Interval{StartMinute: 600, EndMinute: 660} // 10:00-11:00

	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{StartMinute: 600, EndMinute: 660}, true},
		{"contained", Interval{StartMinute: 615, EndMinute: 645}, true},
		{"overlap_tail", Interval{StartMinute: 630, EndMinute: 690}, true},
		{"overlap_head", Interval{StartMinute: 570, EndMinute: 630}, true},
		{"touching_after", Interval{StartMinute: 660, EndMinute: 720}, false},
		{"touching_before", Interval{StartMinute: 540, EndMinute: 600}, false},
		{"disjoint", Interval{StartMinute: 720, EndMinute: 780}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, base.Overlaps(tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(base))
		})
	}
}

func TestParseClock(t *testing.T) {
	min, err := ParseClock("10:30")
	require.NoError(t, err)
	assert.Equal(t, 630, min)

	min, err = ParseClock("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, min)

	min, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 1439, min)

	for _, bad := range []string{"", "10", "10:3", "1030", "24:00", "10:60", "-1:00", "aa:bb"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "expected error for %q", bad)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "10:30", FormatClock(630))
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "09:05", FormatClock(545))
}

func TestAppointmentInterval(t *testing.T) {
	appt := &Appointment{ID: "a1", Time: "10:00", Duration: 60}
	iv, err := appt.Interval()
	require.NoError(t, err)
	assert.Equal(t, Interval{StartMinute: 600, EndMinute: 660, AppointmentID: "a1"}, iv)

	appt.Time = "bad"
	_, err = appt.Interval()
	assert.Error(t, err)
}

func TestSnapshotSlotBooked(t *testing.T) {
	snap := &AvailabilitySnapshot{
		ShopID: "shop-1",
		Date:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Intervals: []Interval{
			{StartMinute: 600, EndMinute: 660, AppointmentID: "a1"},
		},
	}

	assert.True(t, snap.SlotBooked(630, 60))
	assert.False(t, snap.SlotBooked(660, 60))
	assert.False(t, snap.SlotBooked(480, 60))
}

func TestFindInterval(t *testing.T) {
	sched := &DaySchedule{Intervals: []Interval{
		{StartMinute: 600, EndMinute: 660, AppointmentID: "a1"},
		{StartMinute: 720, EndMinute: 780, AppointmentID: "a2"},
	}}

	assert.Equal(t, 1, sched.FindInterval("a2"))
	assert.Equal(t, -1, sched.FindInterval("missing"))
}
