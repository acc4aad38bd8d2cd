package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/infrastructure/messaging"
	"github.com/finstream/finstream/pkg/metrics"
	"github.com/finstream/finstream/pkg/models"
)

// ServiceName identifies the audit service on headers and alerts.
const ServiceName = "audit-service"

// Service consumes the audit fan-in topics, records events, evaluates the
// compliance rules and derives alert events.
type Service struct {
	store    *Store
	detector *Detector
	archive  *Archive
	logger   *zap.Logger
}

// NewService creates the audit handler. archive may be nil when the durable
// sink is disabled.
func NewService(store *Store, detector *Detector, archive *Archive, logger *zap.Logger) *Service {
	return &Service{store: store, detector: detector, archive: archive, logger: logger}
}

// Topics lists the audit fan-in topics.
func (s *Service) Topics() []messaging.Topic {
	return []messaging.Topic{
		messaging.TopicAuditPaymentEvents,
		messaging.TopicAuditLedgerEvents,
		messaging.TopicAuditNotificationEvents,
		messaging.TopicAuditSystemEvents,
	}
}

// Handle stores one audit event and returns a compliance alert when any rule
// fires.
func (s *Service) Handle(ctx context.Context, msg messaging.Message) ([]messaging.OutgoingMessage, error) {
	var event models.AuditEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("%w: unparsable audit payload: %v", ErrValidation, err)
	}

	stored, err := s.store.Store(event)
	if err != nil {
		return nil, err
	}
	metrics.AuditEventsStored.WithLabelValues(stored.EventType, stored.Service).Inc()

	if s.archive != nil {
		if err := s.archive.Append(stored); err != nil {
			// The in-memory window is authoritative; archive lag is logged,
			// never propagated.
			s.logger.Error("failed to archive audit event",
				zap.Error(err),
				zap.String("event_id", stored.EventID))
		}
	}

	violations := s.detector.Evaluate(stored)
	if len(violations) == 0 {
		return nil, nil
	}

	for _, v := range violations {
		metrics.ComplianceViolations.WithLabelValues(v).Inc()
	}
	s.logger.Warn("compliance violations detected",
		zap.String("event_id", stored.EventID),
		zap.Strings("violations", violations))

	alert := models.ComplianceAlert{
		EventID:    stored.EventID,
		Violations: violations,
		Event:      stored,
		Timestamp:  time.Now(),
	}
	return []messaging.OutgoingMessage{
		{
			Topic:   messaging.TopicComplianceAlerts,
			Key:     stored.EventID,
			Payload: alert,
			Headers: map[string]string{
				messaging.HeaderAlertType: "COMPLIANCE_VIOLATION",
				messaging.HeaderService:   ServiceName,
			},
		},
	}, nil
}

// GetEvents is the query surface exposed to collaborators.
func (s *Service) GetEvents(filter Filter) []models.AuditEvent {
	return s.store.Query(filter)
}
