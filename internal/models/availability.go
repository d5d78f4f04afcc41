package models

import "time"

// AvailabilitySnapshot is the observer's latest validated view of one
// shop-day: the interval set with stale entries already excluded.
// Advisory only; the booking transaction is authoritative at commit.
type AvailabilitySnapshot struct {
	ShopID    string     `json:"shop_id"`
	Date      time.Time  `json:"date"`
	Intervals []Interval `json:"intervals"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SlotBooked answers whether a candidate [start, start+duration) slot
// overlaps any interval in the snapshot, using the same half-open
// predicate as the booking transaction.
func (s *AvailabilitySnapshot) SlotBooked(startMinute, duration int) bool {
	candidate := Interval{StartMinute: startMinute, EndMinute: startMinute + duration}
	for _, iv := range s.Intervals {
		if candidate.Overlaps(iv) {
			return true
		}
	}
	return false
}

// Shop describes a tenant. Shops are loaded from the catalog file at
// startup; tenant resolution itself happens upstream.
type Shop struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Open     string `yaml:"open,omitempty" json:"open,omitempty"`
	Close    string `yaml:"close,omitempty" json:"close,omitempty"`
}
