package messaging

// Topic is a logical bus destination.
type Topic string

// Topics exchanged between the services. Ledger-bound traffic is keyed by
// accountId so that every entry for an account maps to a single partition;
// that precondition is what lets the ledger apply entries without global
// locking.
const (
	TopicPaymentRequested Topic = "payments.payment-requested"
	TopicPaymentProcessed Topic = "payments.payment-processed"
	TopicPaymentFailed    Topic = "payments.payment-failed"

	TopicTransactionRequested Topic = "ledger.transaction-requested"
	TopicBalanceUpdated       Topic = "ledger.balance-updated"

	TopicNotificationRequested Topic = "notifications.notification-requested"
	TopicNotificationSent      Topic = "notifications.notification-sent"
	TopicNotificationFailed    Topic = "notifications.notification-failed"

	TopicAuditPaymentEvents      Topic = "audit.payment-events"
	TopicAuditLedgerEvents       Topic = "audit.ledger-events"
	TopicAuditNotificationEvents Topic = "audit.notification-events"
	TopicAuditSystemEvents       Topic = "audit.system-events"
	TopicComplianceAlerts        Topic = "audit.compliance-alerts"
)

// Message header keys.
const (
	HeaderCorrelationID = "correlation-id"
	HeaderService       = "service"
	HeaderEventType     = "event-type"
	HeaderAlertType     = "alert-type"
)
