package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"groomly/internal/booking"
	"groomly/internal/metrics"
	"groomly/internal/models"
	"groomly/internal/store"
)

type bookRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	PetName       string `json:"pet_name"`
	PetBreed      string `json:"pet_breed"`
	ServiceType   string `json:"service_type"`
	ServicePrice  int64  `json:"service_price"`
	Duration      int    `json:"duration"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Notes         string `json:"notes"`
}

type appointmentResponse struct {
	ID            string `json:"id"`
	ShopID        string `json:"shop_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	PetName       string `json:"pet_name,omitempty"`
	PetBreed      string `json:"pet_breed,omitempty"`
	ServiceType   string `json:"service_type"`
	ServicePrice  int64  `json:"service_price,omitempty"`
	Duration      int    `json:"duration"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Notes         string `json:"notes,omitempty"`
	Status        string `json:"status"`
	Version       int64  `json:"version"`
}

func toAppointmentResponse(a *models.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:            a.ID,
		ShopID:        a.ShopID,
		CustomerName:  a.CustomerName,
		CustomerPhone: a.CustomerPhone,
		PetName:       a.PetName,
		PetBreed:      a.PetBreed,
		ServiceType:   a.ServiceType,
		ServicePrice:  a.ServicePrice,
		Duration:      a.Duration,
		Date:          models.DayKey(a.Date),
		Time:          a.Time,
		Notes:         a.Notes,
		Status:        a.Status,
		Version:       a.Version,
	}
}

// shopFrom rejects requests for shops the server was not configured
// with.
func (s *HTTPServer) shopFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	shopID := strings.TrimSpace(r.PathValue("shop"))
	if shopID == "" {
		writeError(w, http.StatusBadRequest, "shop is required")
		return "", false
	}
	if len(s.shops) > 0 {
		if _, ok := s.shops[shopID]; !ok {
			writeError(w, http.StatusNotFound, "unknown shop")
			return "", false
		}
	}
	return shopID, true
}

func parseDateParam(w http.ResponseWriter, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return time.Time{}, false
	}
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")

	shopID, ok := s.shopFrom(w, r)
	if !ok {
		return
	}

	var req bookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, ok := parseDateParam(w, req.Date)
	if !ok {
		return
	}

	appt, err := s.bookings.Book(r.Context(), models.Draft{
		ShopID:        shopID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		PetName:       req.PetName,
		PetBreed:      req.PetBreed,
		ServiceType:   req.ServiceType,
		ServicePrice:  req.ServicePrice,
		Duration:      req.Duration,
		Date:          date,
		Time:          req.Time,
		Notes:         req.Notes,
	})
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_appointment")

	shopID, ok := s.shopFrom(w, r)
	if !ok {
		return
	}

	appt, err := s.bookings.Get(r.Context(), shopID, r.PathValue("id"))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel")

	shopID, ok := s.shopFrom(w, r)
	if !ok {
		return
	}

	if err := s.bookings.Cancel(r.Context(), shopID, r.PathValue("id")); err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusCancelled})
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("set_status")

	shopID, ok := s.shopFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.bookings.SetStatus(r.Context(), shopID, r.PathValue("id"), req.Status); err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("schedule")

	shopID, ok := s.shopFrom(w, r)
	if !ok {
		return
	}
	date, ok := parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	appts, err := s.bookings.ListDay(r.Context(), shopID, date)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

// handleAvailability answers from the observer's validated snapshot.
// With time and duration params it answers for one slot, otherwise it
// returns the whole day's booked intervals.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	shopID, ok := s.shopFrom(w, r)
	if !ok {
		return
	}
	date, ok := parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	clock := strings.TrimSpace(r.URL.Query().Get("time"))
	if clock != "" {
		duration, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("duration")))
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "duration must be a positive integer")
			return
		}

		booked, err := s.availability.IsSlotBooked(r.Context(), shopID, date, clock, duration)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"available": !booked})
		return
	}

	snap, err := s.availability.Snapshot(r.Context(), shopID, date)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	type slot struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	booked := make([]slot, 0, len(snap.Intervals))
	for _, iv := range snap.Intervals {
		booked = append(booked, slot{
			Start: models.FormatClock(iv.StartMinute),
			End:   models.FormatClock(iv.EndMinute),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"shop_id":    shopID,
		"date":       models.DayKey(date),
		"booked":     booked,
		"updated_at": snap.UpdatedAt,
	})
}

// handleExportSchedule builds the shop-day workbook and serves it as a
// download.
func (s *HTTPServer) handleExportSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_schedule")

	shopID, ok := s.shopFrom(w, r)
	if !ok {
		return
	}
	date, ok := parseDateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "schedule export is not configured")
		return
	}

	path, err := s.exporter.DaySchedule(r.Context(), shopID, date)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// writeBookingError maps domain errors onto HTTP statuses.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot already booked")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, store.ErrContended):
		writeError(w, http.StatusServiceUnavailable, "store contention, retry later")
	case errors.Is(err, booking.ErrInvalidDuration),
		errors.Is(err, booking.ErrInvalidTime),
		errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrPastDate),
		errors.Is(err, booking.ErrDateTooFar),
		errors.Is(err, booking.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
