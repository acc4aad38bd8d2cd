package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// KafkaMessages counts consumed bus messages by topic and outcome.
var KafkaMessages = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finstream_kafka_messages_total",
		Help: "Total number of Kafka messages consumed, by topic and status",
	},
	[]string{"topic", "status"},
)

// PublishFailures counts failed publishes of derived events by topic.
var PublishFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finstream_publish_failures_total",
		Help: "Total number of failed event publishes, by destination topic",
	},
	[]string{"topic"},
)

// Payment processing outcomes and latency.
var (
	PaymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finstream_payments_processed_total",
			Help: "Total number of payments processed successfully",
		},
		[]string{"payment_method", "currency"},
	)

	PaymentsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finstream_payments_failed_total",
			Help: "Total number of failed payments",
		},
		[]string{"payment_method", "currency", "error_type"},
	)

	PaymentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finstream_payment_processing_duration_seconds",
			Help:    "Payment processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"payment_method"},
	)
)

// Ledger mutation outcomes.
var (
	LedgerEntriesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finstream_ledger_entries_applied_total",
			Help: "Total number of ledger entries applied, by type and currency",
		},
		[]string{"type", "currency"},
	)

	LedgerDuplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "finstream_ledger_duplicate_entries_total",
			Help: "Total number of redelivered ledger entries absorbed by the dedup index",
		},
	)
)

// Audit and compliance outcomes.
var (
	AuditEventsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finstream_audit_events_stored_total",
			Help: "Total number of audit events stored, by event type and origin service",
		},
		[]string{"event_type", "service"},
	)

	ComplianceViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finstream_compliance_violations_total",
			Help: "Total number of compliance violations detected, by violation tag",
		},
		[]string{"violation"},
	)
)

// NotificationsSent counts notification dispatch outcomes.
var NotificationsSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finstream_notifications_sent_total",
		Help: "Total number of notifications dispatched, by type and status",
	},
	[]string{"type", "status"},
)

func init() {
	prometheus.MustRegister(KafkaMessages, PublishFailures)
	prometheus.MustRegister(PaymentsProcessed, PaymentsFailed, PaymentDuration)
	prometheus.MustRegister(LedgerEntriesApplied, LedgerDuplicates)
	prometheus.MustRegister(AuditEventsStored, ComplianceViolations)
	prometheus.MustRegister(NotificationsSent)
}
