package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a half-open minute range [StartMinute, EndMinute) within a
// day, occupied by one appointment.
type Interval struct {
	StartMinute   int    `json:"start_minute"`
	EndMinute     int    `json:"end_minute"`
	AppointmentID string `json:"appointment_id"`
}

// Overlaps applies the half-open overlap test. Boundary-touching
// intervals do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.StartMinute < other.EndMinute && other.StartMinute < i.EndMinute
}

// DaySchedule is the denormalized per shop-per-day interval index.
// Version 0 means the document does not exist yet.
type DaySchedule struct {
	ShopID    string     `json:"shop_id"`
	Date      time.Time  `json:"date"`
	Intervals []Interval `json:"intervals"`
	Version   int64      `json:"version"`
}

// FindInterval returns the index of the interval referencing the given
// appointment, or -1.
func (s *DaySchedule) FindInterval(appointmentID string) int {
	for idx, iv := range s.Intervals {
		if iv.AppointmentID == appointmentID {
			return idx
		}
	}
	return -1
}

// ParseClock converts an HH:mm string into minutes since midnight.
func ParseClock(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:mm", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", clock)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as HH:mm.
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// DayKey normalizes a date to its canonical YYYY-MM-DD form.
func DayKey(date time.Time) string {
	return date.Format(DateLayout)
}
