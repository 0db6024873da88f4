// Package metrics declares the Prometheus collectors exported by the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsReserved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_reserved_total",
		Help: "Total number of committed reservations",
	})
	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of committed cancellations",
	})
	BookingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_failures_total",
		Help: "Total number of failed booking operations by reason",
	}, []string{"operation", "reason"})
	TransactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_transaction_duration_seconds",
		Help:    "Duration of booking transactions in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_dropped_total",
		Help: "Audit entries dropped because the buffer was full or publishing failed",
	})
	AuditStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_stored_total",
		Help: "Audit entries persisted by the audit consumer",
	})
)

// ObserveTransaction records the outcome and duration of one booking operation.
func ObserveTransaction(operation string, start time.Time, failureReason string) {
	TransactionDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if failureReason != "" {
		BookingFailures.WithLabelValues(operation, failureReason).Inc()
	}
}
