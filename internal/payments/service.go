// Package payments processes payment requests from the bus and publishes
// their outcomes and audit trail.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/infrastructure/messaging"
	"github.com/finstream/finstream/pkg/metrics"
	"github.com/finstream/finstream/pkg/models"
)

// ServiceName identifies the payments service on headers and audit events.
const ServiceName = "payments-service"

// ErrValidation marks malformed payment requests.
var ErrValidation = errors.New("invalid payment request")

// Service is the payments message handler.
type Service struct {
	outcomes OutcomeProvider
	logger   *zap.Logger
}

// NewService creates the payments handler.
func NewService(outcomes OutcomeProvider, logger *zap.Logger) *Service {
	return &Service{outcomes: outcomes, logger: logger}
}

// Topics lists the subscribed inbound topics.
func (s *Service) Topics() []messaging.Topic {
	return []messaging.Topic{messaging.TopicPaymentRequested}
}

func validate(req models.PaymentRequest) error {
	if req.PaymentID == "" {
		return fmt.Errorf("%w: paymentId is required", ErrValidation)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if req.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if req.PaymentMethod == "" {
		return fmt.Errorf("%w: paymentMethod is required", ErrValidation)
	}
	return nil
}

// Handle processes one payment request and derives the result and audit
// events.
func (s *Service) Handle(ctx context.Context, msg messaging.Message) ([]messaging.OutgoingMessage, error) {
	started := time.Now()

	var req models.PaymentRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return nil, fmt.Errorf("%w: unparsable payment payload: %v", ErrValidation, err)
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	s.logger.Info("processing payment request",
		zap.String("payment_id", req.PaymentID),
		zap.String("user_id", req.UserID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency))

	result := s.outcomes.Process(ctx, req)

	resultTopic := messaging.TopicPaymentProcessed
	if result.Status != models.PaymentSuccess {
		resultTopic = messaging.TopicPaymentFailed
	}

	auditEvent := models.AuditEvent{
		EventType: models.EventPaymentProcessed,
		Service:   ServiceName,
		UserID:    req.UserID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"paymentId":     req.PaymentID,
			"userId":        req.UserID,
			"amount":        req.Amount.InexactFloat64(),
			"currency":      req.Currency,
			"paymentMethod": req.PaymentMethod,
			"status":        string(result.Status),
			"transactionId": result.TransactionID,
			"errorCode":     result.ErrorCode,
		},
	}

	metrics.PaymentDuration.WithLabelValues(req.PaymentMethod).Observe(time.Since(started).Seconds())
	if result.Status == models.PaymentSuccess {
		metrics.PaymentsProcessed.WithLabelValues(req.PaymentMethod, req.Currency).Inc()
	} else {
		errorType := result.ErrorCode
		if errorType == "" {
			errorType = "unknown"
		}
		metrics.PaymentsFailed.WithLabelValues(req.PaymentMethod, req.Currency, errorType).Inc()
	}

	return []messaging.OutgoingMessage{
		{
			Topic:   resultTopic,
			Key:     result.PaymentID,
			Payload: result,
		},
		{
			Topic:   messaging.TopicAuditPaymentEvents,
			Key:     req.PaymentID,
			Payload: auditEvent,
			Headers: map[string]string{
				messaging.HeaderEventType: models.EventPaymentProcessed,
			},
		},
	}, nil
}
