// Package models defines the wire-level domain entities shared by the
// payments, ledger, audit and notifications services. All payloads travel as
// JSON over the bus; the struct tags here are the canonical schema.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the two-valued direction of a ledger entry.
type TransactionType string

const (
	TransactionDebit  TransactionType = "debit"
	TransactionCredit TransactionType = "credit"
)

// Valid reports whether t is one of the recognized transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionDebit || t == TransactionCredit
}

// LedgerEntry is a signed balance mutation for one account and currency.
// EntryID doubles as the idempotency key under redelivery.
type LedgerEntry struct {
	EntryID         string                 `json:"entryId"`
	AccountID       string                 `json:"accountId"`
	TransactionType TransactionType        `json:"transactionType"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	Reference       string                 `json:"reference"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// AccountBalance is the derived state for one (account, currency) key.
type AccountBalance struct {
	AccountID   string          `json:"accountId"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// PaymentStatus is the terminal outcome of processing a payment request.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentRequest is the inbound payload on payments.payment-requested.
type PaymentRequest struct {
	PaymentID     string                 `json:"paymentId"`
	UserID        string                 `json:"userId"`
	Amount        decimal.Decimal        `json:"amount"`
	Currency      string                 `json:"currency"`
	PaymentMethod string                 `json:"paymentMethod"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// PaymentResult is published to payments.payment-processed or
// payments.payment-failed. The request's account, amount and currency are
// carried along so downstream consumers (the ledger in particular) never need
// to join back to the request.
type PaymentResult struct {
	PaymentID     string          `json:"paymentId"`
	UserID        string          `json:"userId"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transactionId,omitempty"`
	ErrorCode     string          `json:"errorCode,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NotificationType enumerates supported delivery channels.
type NotificationType string

const (
	NotificationEmail   NotificationType = "email"
	NotificationSMS     NotificationType = "sms"
	NotificationPush    NotificationType = "push"
	NotificationWebhook NotificationType = "webhook"
)

// NotificationStatus is the terminal outcome of a delivery attempt.
type NotificationStatus string

const (
	NotificationSent      NotificationStatus = "sent"
	NotificationUndeliver NotificationStatus = "failed"
)

// NotificationRequest is the inbound payload on
// notifications.notification-requested.
type NotificationRequest struct {
	NotificationID string                 `json:"notificationId"`
	UserID         string                 `json:"userId"`
	Type           NotificationType       `json:"type"`
	Channel        string                 `json:"channel"`
	Subject        string                 `json:"subject,omitempty"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationResult is published to notifications.notification-sent or
// notifications.notification-failed.
type NotificationResult struct {
	NotificationID string             `json:"notificationId"`
	Status         NotificationStatus `json:"status"`
	DeliveredAt    *time.Time         `json:"deliveredAt,omitempty"`
	ErrorCode      string             `json:"errorCode,omitempty"`
	ErrorMessage   string             `json:"errorMessage,omitempty"`
}

// Audit event types emitted by the services.
const (
	EventPaymentProcessed     = "PAYMENT_PROCESSED"
	EventLedgerEntryProcessed = "LEDGER_ENTRY_PROCESSED"
	EventNotificationSent     = "NOTIFICATION_SENT"
	EventAuthFailed           = "AUTH_FAILED"
)

// AuditEvent is an immutable record of a domain action. EventID is assigned
// by the audit store when absent.
type AuditEvent struct {
	EventID   string                 `json:"eventId,omitempty"`
	EventType string                 `json:"eventType"`
	Service   string                 `json:"service"`
	UserID    string                 `json:"userId,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// ComplianceAlert bundles every violation an audit event triggered, together
// with the original event and the detection time.
type ComplianceAlert struct {
	EventID    string     `json:"eventId"`
	Violations []string   `json:"violations"`
	Event      AuditEvent `json:"event"`
	Timestamp  time.Time  `json:"timestamp"`
}
