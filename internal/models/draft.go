package models

import "time"

// Draft carries the caller-supplied fields of a booking request.
// Identity, status and timestamps are assigned by the coordinator.
type Draft struct {
	ShopID        string    `json:"shop_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	PetName       string    `json:"pet_name"`
	PetBreed      string    `json:"pet_breed,omitempty"`
	ServiceType   string    `json:"service_type"`
	ServicePrice  int64     `json:"service_price"`
	Duration      int       `json:"duration"`
	Date          time.Time `json:"date"`
	Time          string    `json:"time"`
	Notes         string    `json:"notes,omitempty"`
}
