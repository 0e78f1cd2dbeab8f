package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the sale service exports
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthErrorsCounter   *prometheus.CounterVec

	// Database operation metrics
	DBOperationDuration *prometheus.HistogramVec

	// Sale pipeline metrics
	SaleOperationsCounter *prometheus.CounterVec
	SaleRevenueCounter    prometheus.Counter
	StockReservations     *prometheus.CounterVec
	StockCompensations    *prometheus.CounterVec
	CommitRetriesCounter  prometheus.Counter
	InvoiceAssignDuration prometheus.Histogram

	// Audit metrics
	AuditEventsCounter *prometheus.CounterVec
	AuditQueueDepth    prometheus.Gauge
}

// NewMetrics registers the collectors on reg with the given name prefix
func NewMetrics(prefix string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		AuthAttemptsCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_auth_attempts_total",
				Help: "Total number of token validations",
			},
		),
		AuthErrorsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_auth_errors_total",
				Help: "Total number of rejected tokens by reason",
			},
			[]string{"reason"},
		),
		DBOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation_type"},
		),
		SaleOperationsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_operations_total",
				Help: "Total number of sale operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		SaleRevenueCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_revenue_total",
				Help: "Sum of completed sale totals",
			},
		),
		StockReservations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_stock_reservations_total",
				Help: "Total number of stock reservations by outcome",
			},
			[]string{"outcome"},
		),
		StockCompensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_stock_compensations_total",
				Help: "Stock releases issued by compensating rollback, by outcome",
			},
			[]string{"outcome"},
		),
		CommitRetriesCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_commit_retries_total",
				Help: "Total number of retried sale commits",
			},
		),
		InvoiceAssignDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    prefix + "_invoice_assign_duration_seconds",
				Help:    "Time taken to obtain an invoice number",
				Buckets: prometheus.DefBuckets,
			},
		),
		AuditEventsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_audit_events_total",
				Help: "Audit events by delivery outcome",
			},
			[]string{"outcome"},
		),
		AuditQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: prefix + "_audit_queue_depth",
				Help: "Audit events waiting for delivery",
			},
		),
	}
}

// TrackDBOperation returns a function that records the duration of a database operation
func (m *Metrics) TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		m.DBOperationDuration.WithLabelValues(operationType).Observe(time.Since(startTime).Seconds())
	}
}

// RecordSaleOperation increments the counter for sale operations
func (m *Metrics) RecordSaleOperation(operation, outcome string) {
	m.SaleOperationsCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordReservation increments the reservation counter
func (m *Metrics) RecordReservation(outcome string) {
	m.StockReservations.WithLabelValues(outcome).Inc()
}

// RecordCompensation increments the compensating release counter
func (m *Metrics) RecordCompensation(outcome string) {
	m.StockCompensations.WithLabelValues(outcome).Inc()
}

// RecordAuditEvent increments the audit delivery counter
func (m *Metrics) RecordAuditEvent(outcome string) {
	m.AuditEventsCounter.WithLabelValues(outcome).Inc()
}

// RecordAuthError increments the auth error counter
func (m *Metrics) RecordAuthError(reason string) {
	m.AuthErrorsCounter.WithLabelValues(reason).Inc()
}
