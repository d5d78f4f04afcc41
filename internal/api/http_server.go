package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"groomly/internal/config"
	"groomly/internal/domain"
	"groomly/internal/models"

	"github.com/rs/zerolog"
)

// AvailabilityReader is the observer surface the API serves reads
// from. Snapshots may lag the store; the booking path never consults
// them.
type AvailabilityReader interface {
	Snapshot(ctx context.Context, shopID string, date time.Time) (*models.AvailabilitySnapshot, error)
	IsSlotBooked(ctx context.Context, shopID string, date time.Time, clock string, duration int) (bool, error)
}

// ScheduleExporter writes a shop-day workbook and returns its path.
type ScheduleExporter interface {
	DaySchedule(ctx context.Context, shopID string, date time.Time) (string, error)
}

// HTTPServer exposes the booking and availability endpoints.
type HTTPServer struct {
	cfg          config.APIConfig
	bookings     domain.BookingService
	availability AvailabilityReader
	exporter     ScheduleExporter
	shops        map[string]models.Shop
	server       *http.Server
	logger       *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, availability AvailabilityReader, exporter ScheduleExporter, shops []models.Shop, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		bookings:     bookings,
		availability: availability,
		exporter:     exporter,
		shops:        make(map[string]models.Shop, len(shops)),
		logger:       logger,
	}
	for _, shop := range shops {
		srv.shops[shop.ID] = shop
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/shops/{shop}/appointments", srv.handleBook)
	mux.HandleFunc("GET /api/v1/shops/{shop}/appointments/{id}", srv.handleGetAppointment)
	mux.HandleFunc("POST /api/v1/shops/{shop}/appointments/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("POST /api/v1/shops/{shop}/appointments/{id}/status", srv.handleSetStatus)
	mux.HandleFunc("GET /api/v1/shops/{shop}/schedule", srv.handleSchedule)
	mux.HandleFunc("GET /api/v1/shops/{shop}/availability", srv.handleAvailability)
	mux.HandleFunc("GET /api/v1/shops/{shop}/schedule/export", srv.handleExportSchedule)

	auth := NewHTTPAuth(cfg)
	handler := srv.loggingMiddleware(auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler exposes the full middleware chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
