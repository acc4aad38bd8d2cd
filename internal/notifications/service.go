// Package notifications delivers user-facing notifications for explicit
// requests and for payment outcomes observed on the bus.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/infrastructure/messaging"
	"github.com/finstream/finstream/pkg/metrics"
	"github.com/finstream/finstream/pkg/models"
)

// ServiceName identifies the notifications service on headers and audit
// events.
const ServiceName = "notifications-service"

// ErrValidation marks malformed notification requests.
var ErrValidation = errors.New("invalid notification request")

// Service is the notifications message handler.
type Service struct {
	outcomes OutcomeProvider
	logger   *zap.Logger
}

// NewService creates the notifications handler.
func NewService(outcomes OutcomeProvider, logger *zap.Logger) *Service {
	return &Service{outcomes: outcomes, logger: logger}
}

// Topics lists the subscribed inbound topics. Payment outcomes are consumed
// directly so users hear about their payments without anyone having to enqueue
// a notification request.
func (s *Service) Topics() []messaging.Topic {
	return []messaging.Topic{
		messaging.TopicNotificationRequested,
		messaging.TopicPaymentProcessed,
		messaging.TopicPaymentFailed,
	}
}

func validate(req models.NotificationRequest) error {
	if req.NotificationID == "" {
		return fmt.Errorf("%w: notificationId is required", ErrValidation)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	switch req.Type {
	case models.NotificationEmail, models.NotificationSMS, models.NotificationPush, models.NotificationWebhook:
	default:
		return fmt.Errorf("%w: unknown notification type %q", ErrValidation, req.Type)
	}
	if req.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	return nil
}

// requestFrom maps an inbound message to the notification to deliver. Payment
// outcome events are translated into synthetic email requests.
func requestFrom(msg messaging.Message) (models.NotificationRequest, error) {
	switch msg.Topic {
	case string(messaging.TopicNotificationRequested):
		var req models.NotificationRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			return models.NotificationRequest{}, fmt.Errorf("%w: unparsable notification payload: %v", ErrValidation, err)
		}
		return req, validate(req)

	case string(messaging.TopicPaymentProcessed), string(messaging.TopicPaymentFailed):
		var result models.PaymentResult
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			return models.NotificationRequest{}, fmt.Errorf("%w: unparsable payment payload: %v", ErrValidation, err)
		}
		if result.PaymentID == "" || result.UserID == "" {
			return models.NotificationRequest{}, fmt.Errorf("%w: payment result missing paymentId or userId", ErrValidation)
		}
		subject := "Payment confirmation"
		message := fmt.Sprintf("Your payment of %s %s was processed successfully.", result.Amount.String(), result.Currency)
		if result.Status != models.PaymentSuccess {
			subject = "Payment failed"
			message = fmt.Sprintf("Your payment of %s %s could not be processed: %s", result.Amount.String(), result.Currency, result.ErrorMessage)
		}
		return models.NotificationRequest{
			NotificationID: uuid.NewString(),
			UserID:         result.UserID,
			Type:           models.NotificationEmail,
			Subject:        subject,
			Message:        message,
			Metadata: map[string]interface{}{
				"paymentId": result.PaymentID,
				"status":    string(result.Status),
			},
		}, nil

	default:
		return models.NotificationRequest{}, fmt.Errorf("%w: unexpected topic %s", ErrValidation, msg.Topic)
	}
}

// Handle delivers one notification and derives the result and audit events.
func (s *Service) Handle(ctx context.Context, msg messaging.Message) ([]messaging.OutgoingMessage, error) {
	req, err := requestFrom(msg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivering notification",
		zap.String("notification_id", req.NotificationID),
		zap.String("user_id", req.UserID),
		zap.String("type", string(req.Type)))

	result := s.outcomes.Deliver(ctx, req)

	resultTopic := messaging.TopicNotificationSent
	if result.Status != models.NotificationSent {
		resultTopic = messaging.TopicNotificationFailed
	}
	metrics.NotificationsSent.WithLabelValues(string(req.Type), string(result.Status)).Inc()

	auditEvent := models.AuditEvent{
		EventType: models.EventNotificationSent,
		Service:   ServiceName,
		UserID:    req.UserID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"notificationId": req.NotificationID,
			"type":           string(req.Type),
			"status":         string(result.Status),
			"errorCode":      result.ErrorCode,
		},
	}

	return []messaging.OutgoingMessage{
		{
			Topic:   resultTopic,
			Key:     result.NotificationID,
			Payload: result,
		},
		{
			Topic:   messaging.TopicAuditNotificationEvents,
			Key:     req.NotificationID,
			Payload: auditEvent,
			Headers: map[string]string{
				messaging.HeaderEventType: models.EventNotificationSent,
			},
		},
	}, nil
}
