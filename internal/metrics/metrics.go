package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groomly",
			Name:      "bookings_total",
			Help:      "Booking attempts by result.",
		},
		[]string{"result"},
	)

	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groomly",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by result.",
		},
		[]string{"result"},
	)

	txnRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "groomly",
			Name:      "txn_retries_total",
			Help:      "Optimistic transaction retries after version conflicts.",
		},
	)

	observerRefreshes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "groomly",
			Name:      "observer_refreshes_total",
			Help:      "Availability observer snapshot refreshes.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "groomly",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookings, cancellations, txnRetries, observerRefreshes, httpRequests)
	})
}

// IncBooking increments the booking counter for a result label.
func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

// IncCancellation increments the cancellation counter for a result label.
func IncCancellation(result string) {
	cancellations.WithLabelValues(result).Inc()
}

// IncTxnRetry counts one optimistic retry.
func IncTxnRetry() {
	txnRetries.Inc()
}

// IncObserverRefresh counts one observer snapshot refresh.
func IncObserverRefresh() {
	observerRefreshes.Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
