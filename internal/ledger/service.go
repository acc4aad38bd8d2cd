package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/infrastructure/messaging"
	"github.com/finstream/finstream/pkg/models"
)

// ServiceName identifies the ledger service on headers and audit events.
const ServiceName = "ledger-service"

// Service is the ledger's message handler: it consumes entry requests and
// processed payments, applies them to the engine and derives balance and
// audit events.
type Service struct {
	engine *Engine
	logger *zap.Logger
}

// NewService creates the ledger handler.
func NewService(engine *Engine, logger *zap.Logger) *Service {
	return &Service{engine: engine, logger: logger}
}

// Topics lists the subscribed inbound topics.
func (s *Service) Topics() []messaging.Topic {
	return []messaging.Topic{
		messaging.TopicTransactionRequested,
		messaging.TopicPaymentProcessed,
	}
}

// Handle applies one inbound message and returns the derived events.
func (s *Service) Handle(ctx context.Context, msg messaging.Message) ([]messaging.OutgoingMessage, error) {
	entry, ok, err := s.entryFrom(msg)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Failed payments carry nothing to book.
		return nil, nil
	}

	s.logger.Info("processing ledger entry",
		zap.String("entry_id", entry.EntryID),
		zap.String("account_id", entry.AccountID),
		zap.String("type", string(entry.TransactionType)),
		zap.String("amount", entry.Amount.String()))

	balance, err := s.engine.Apply(ctx, entry)
	if err != nil {
		return nil, err
	}

	auditEvent := models.AuditEvent{
		EventType: models.EventLedgerEntryProcessed,
		Service:   ServiceName,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"entryId":         entry.EntryID,
			"accountId":       entry.AccountID,
			"transactionType": string(entry.TransactionType),
			"amount":          entry.Amount.InexactFloat64(),
			"currency":        entry.Currency,
			"newBalance":      balance.Balance.InexactFloat64(),
		},
	}

	return []messaging.OutgoingMessage{
		{
			Topic:   messaging.TopicBalanceUpdated,
			Key:     entry.AccountID,
			Payload: balance,
		},
		{
			Topic:   messaging.TopicAuditLedgerEvents,
			Key:     entry.AccountID,
			Payload: auditEvent,
			Headers: map[string]string{
				messaging.HeaderEventType: models.EventLedgerEntryProcessed,
			},
		},
	}, nil
}

// entryFrom maps an inbound message to a ledger entry. Successful payments
// become credit entries keyed by the payment id, so payment redelivery is
// absorbed by the same dedup index as entry redelivery.
func (s *Service) entryFrom(msg messaging.Message) (models.LedgerEntry, bool, error) {
	switch msg.Topic {
	case string(messaging.TopicTransactionRequested):
		var entry models.LedgerEntry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return models.LedgerEntry{}, false, fmt.Errorf("%w: unparsable entry payload: %v", ErrValidation, err)
		}
		return entry, true, nil

	case string(messaging.TopicPaymentProcessed):
		var result models.PaymentResult
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			return models.LedgerEntry{}, false, fmt.Errorf("%w: unparsable payment payload: %v", ErrValidation, err)
		}
		if result.Status != models.PaymentSuccess {
			return models.LedgerEntry{}, false, nil
		}
		return models.LedgerEntry{
			EntryID:         result.PaymentID,
			AccountID:       result.UserID,
			TransactionType: models.TransactionCredit,
			Amount:          result.Amount,
			Currency:        result.Currency,
			Reference:       result.TransactionID,
		}, true, nil

	default:
		return models.LedgerEntry{}, false, fmt.Errorf("%w: unexpected topic %s", ErrValidation, msg.Topic)
	}
}
