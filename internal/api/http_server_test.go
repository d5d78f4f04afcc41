package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"groomly/internal/booking"
	"groomly/internal/config"
	"groomly/internal/export"
	"groomly/internal/models"
	"groomly/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings struct {
	bookErr   error
	cancelErr error
	statusErr error
	getErr    error
	last      models.Draft
}

func (f *fakeBookings) Book(_ context.Context, draft models.Draft) (*models.Appointment, error) {
	f.last = draft
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &models.Appointment{
		ID:          "appt-1",
		ShopID:      draft.ShopID,
		ServiceType: draft.ServiceType,
		Duration:    draft.Duration,
		Date:        draft.Date,
		Time:        draft.Time,
		Status:      models.StatusPending,
		Version:     1,
	}, nil
}

func (f *fakeBookings) Cancel(_ context.Context, _, _ string) error { return f.cancelErr }

func (f *fakeBookings) SetStatus(_ context.Context, _, _, _ string) error { return f.statusErr }

func (f *fakeBookings) Get(_ context.Context, shopID, id string) (*models.Appointment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.Appointment{ID: id, ShopID: shopID, Status: models.StatusConfirmed, Version: 2}, nil
}

func (f *fakeBookings) ListDay(_ context.Context, shopID string, date time.Time) ([]*models.Appointment, error) {
	return []*models.Appointment{
		{ID: "a1", ShopID: shopID, Date: date, Time: "10:00", Duration: 60, Status: models.StatusPending},
		{ID: "a2", ShopID: shopID, Date: date, Time: "12:00", Duration: 30, Status: models.StatusConfirmed},
	}, nil
}

type fakeAvailability struct {
	booked bool
	snap   *models.AvailabilitySnapshot
}

func (f *fakeAvailability) Snapshot(_ context.Context, shopID string, date time.Time) (*models.AvailabilitySnapshot, error) {
	if f.snap != nil {
		return f.snap, nil
	}
	return &models.AvailabilitySnapshot{ShopID: shopID, Date: date}, nil
}

func (f *fakeAvailability) IsSlotBooked(_ context.Context, _ string, _ time.Time, _ string, _ int) (bool, error) {
	return f.booked, nil
}

func newTestServer(t *testing.T, bookings *fakeBookings, avail *fakeAvailability, cfg config.APIConfig) *HTTPServer {
	t.Helper()
	logger := zerolog.Nop()
	shops := []models.Shop{{ID: "downtown", Name: "Downtown"}}
	exporter := export.NewExporter(bookings, t.TempDir(), &logger)
	return NewHTTPServer(cfg, bookings, avail, exporter, shops, &logger)
}

func openConfig() config.APIConfig {
	return config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true, Port: 8080}}
}

func doJSON(t *testing.T, srv *HTTPServer, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleBookCreated(t *testing.T) {
	bookings := &fakeBookings{}
	srv := newTestServer(t, bookings, &fakeAvailability{}, openConfig())

	body := `{"customer_name":"Ivy","service_type":"full_groom","duration":60,"date":"2026-09-10","time":"10:00"}`
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments", body, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp appointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "appt-1", resp.ID)
	assert.Equal(t, "downtown", resp.ShopID)
	assert.Equal(t, models.StatusPending, resp.Status)
	assert.Equal(t, "2026-09-10", resp.Date)
	assert.Equal(t, "downtown", bookings.last.ShopID)
}

func TestHandleBookErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", booking.ErrSlotTaken, http.StatusConflict},
		{"validation", booking.ErrInvalidDuration, http.StatusBadRequest},
		{"contention", store.ErrContended, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeBookings{bookErr: tc.err}, &fakeAvailability{}, openConfig())
			body := `{"customer_name":"Ivy","service_type":"bath","duration":30,"date":"2026-09-10","time":"11:00"}`
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments", body, nil)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestHandleBookRejectsBadBody(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, openConfig())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments", `{notjson`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments", `{"date":"10.09.2026"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUnknownShop(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, openConfig())
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/shops/nowhere/appointments", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancel(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, openConfig())
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments/a1/cancel", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = newTestServer(t, &fakeBookings{cancelErr: store.ErrNotFound}, &fakeAvailability{}, openConfig())
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments/a1/cancel", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSetStatus(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, openConfig())
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments/a1/status", `{"status":"confirmed"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = newTestServer(t, &fakeBookings{statusErr: booking.ErrInvalidTransition}, &fakeAvailability{}, openConfig())
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments/a1/status", `{"status":"completed"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleSchedule(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, openConfig())
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule?date=2026-09-10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Appointments []appointmentResponse `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Appointments, 2)
	assert.Equal(t, "10:00", resp.Appointments[0].Time)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing date")
}

func TestHandleAvailabilitySlot(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{booked: true}, openConfig())
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/availability?date=2026-09-10&time=10:00&duration=60", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp["available"])

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/availability?date=2026-09-10&time=10:00&duration=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAvailabilityDay(t *testing.T) {
	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	avail := &fakeAvailability{snap: &models.AvailabilitySnapshot{
		ShopID:    "downtown",
		Date:      date,
		Intervals: []models.Interval{{StartMinute: 600, EndMinute: 660, AppointmentID: "a1"}},
		UpdatedAt: time.Now(),
	}}
	srv := newTestServer(t, &fakeBookings{}, avail, openConfig())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/availability?date=2026-09-10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Booked []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"booked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Booked, 1)
	assert.Equal(t, "10:00", resp.Booked[0].Start)
	assert.Equal(t, "11:00", resp.Booked[0].End)
}

func TestHandleExportSchedule(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, openConfig())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule/export?date=2026-09-10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "schedule_downtown_2026-09-10.xlsx")
	assert.NotZero(t, rec.Body.Len())

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule/export", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExportScheduleDisabled(t *testing.T) {
	logger := zerolog.Nop()
	shops := []models.Shop{{ID: "downtown", Name: "Downtown"}}
	srv := NewHTTPServer(openConfig(), &fakeBookings{}, &fakeAvailability{}, nil, shops, &logger)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule/export?date=2026-09-10", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func authConfig() config.APIConfig {
	cfg := openConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      true,
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "key1", Extra: "extra1", Name: "frontend", Permissions: []string{"read", "book"}},
			{Key: "key2", Extra: "extra2", Name: "readonly", Permissions: []string{"read"}},
		},
	}
	return cfg
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, authConfig())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule?date=2026-09-10", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule?date=2026-09-10", "", map[string]string{
		"x-api-key": "key1", "x-api-extra": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule?date=2026-09-10", "", map[string]string{
		"x-api-key": "key1", "x-api-extra": "extra1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthPermissions(t *testing.T) {
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, authConfig())
	headers := map[string]string{"x-api-key": "key2", "x-api-extra": "extra2"}

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/shops/downtown/schedule?date=2026-09-10", "", headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	body := `{"customer_name":"Ivy","service_type":"bath","duration":30,"date":"2026-09-10","time":"11:00"}`
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/shops/downtown/appointments", body, headers)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}
	srv := newTestServer(t, &fakeBookings{}, &fakeAvailability{}, cfg)

	path := "/api/v1/shops/downtown/schedule?date=2026-09-10"
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, srv, http.MethodGet, path, "", nil).Code)
}
