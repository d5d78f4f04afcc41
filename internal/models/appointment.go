package models

import "time"

// Appointment is the authoritative booking record, owned by a shop.
type Appointment struct {
	ID            string    `json:"id"`
	ShopID        string    `json:"shop_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	PetName       string    `json:"pet_name"`
	PetBreed      string    `json:"pet_breed,omitempty"`
	ServiceType   string    `json:"service_type"`
	ServicePrice  int64     `json:"service_price"` // minor currency units
	Duration      int       `json:"duration"`      // minutes
	Date          time.Time `json:"date"`
	Time          string    `json:"time"` // HH:mm, shop-local
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"` // pending, confirmed, completed, cancelled
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// Interval computes the half-open minute range occupied by the appointment.
func (a *Appointment) Interval() (Interval, error) {
	start, err := ParseClock(a.Time)
	if err != nil {
		return Interval{}, err
	}
	return Interval{
		StartMinute:   start,
		EndMinute:     start + a.Duration,
		AppointmentID: a.ID,
	}, nil
}

// Active reports whether the appointment still occupies its interval.
// Confirmed and completed appointments keep their slot; only
// cancellation frees capacity.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a status change is legal.
// Completed and cancelled are terminal.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
