package ledger_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/infrastructure/messaging"
	"github.com/finstream/finstream/internal/ledger"
	"github.com/finstream/finstream/internal/ledger/store/memory"
	"github.com/finstream/finstream/pkg/models"
)

func newLedgerService(t *testing.T) *ledger.Service {
	t.Helper()
	engine := ledger.NewEngine(memory.NewStore(1000), zap.NewNop())
	return ledger.NewService(engine, zap.NewNop())
}

func message(t *testing.T, topic messaging.Topic, payload interface{}) messaging.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return messaging.Message{Topic: string(topic), Value: data}
}

func TestHandleTransactionRequested(t *testing.T) {
	svc := newLedgerService(t)

	out, err := svc.Handle(context.Background(), message(t, messaging.TopicTransactionRequested, models.LedgerEntry{
		EntryID:         "e1",
		AccountID:       "acct-1",
		TransactionType: models.TransactionCredit,
		Amount:          decimal.NewFromInt(100),
		Currency:        "USD",
	}))
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, messaging.TopicBalanceUpdated, out[0].Topic)
	assert.Equal(t, "acct-1", out[0].Key, "balance events must be keyed by account")
	balance, ok := out[0].Payload.(models.AccountBalance)
	require.True(t, ok)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, messaging.TopicAuditLedgerEvents, out[1].Topic)
	audit, ok := out[1].Payload.(models.AuditEvent)
	require.True(t, ok)
	assert.Equal(t, models.EventLedgerEntryProcessed, audit.EventType)
	assert.Equal(t, ledger.ServiceName, audit.Service)
	assert.Equal(t, models.EventLedgerEntryProcessed, out[1].Headers[messaging.HeaderEventType])
}

func TestHandleSuccessfulPaymentBooksCredit(t *testing.T) {
	svc := newLedgerService(t)

	out, err := svc.Handle(context.Background(), message(t, messaging.TopicPaymentProcessed, models.PaymentResult{
		PaymentID: "pay-1",
		UserID:    "user-1",
		Status:    models.PaymentSuccess,
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
		Timestamp: time.Now(),
	}))
	require.NoError(t, err)
	require.Len(t, out, 2)

	balance, ok := out[0].Payload.(models.AccountBalance)
	require.True(t, ok)
	assert.Equal(t, "user-1", balance.AccountID)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(50)))
}

func TestHandleFailedPaymentBooksNothing(t *testing.T) {
	svc := newLedgerService(t)

	out, err := svc.Handle(context.Background(), message(t, messaging.TopicPaymentProcessed, models.PaymentResult{
		PaymentID: "pay-1",
		UserID:    "user-1",
		Status:    models.PaymentFailed,
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
	}))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestHandlePaymentRedeliveryIsIdempotent(t *testing.T) {
	svc := newLedgerService(t)
	msg := message(t, messaging.TopicPaymentProcessed, models.PaymentResult{
		PaymentID: "pay-1",
		UserID:    "user-1",
		Status:    models.PaymentSuccess,
		Amount:    decimal.NewFromInt(50),
		Currency:  "USD",
	})

	first, err := svc.Handle(context.Background(), msg)
	require.NoError(t, err)
	second, err := svc.Handle(context.Background(), msg)
	require.NoError(t, err)

	b1 := first[0].Payload.(models.AccountBalance)
	b2 := second[0].Payload.(models.AccountBalance)
	assert.True(t, b1.Balance.Equal(b2.Balance))
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	svc := newLedgerService(t)

	_, err := svc.Handle(context.Background(), messaging.Message{
		Topic: string(messaging.TopicTransactionRequested),
		Value: []byte("{not json"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestHandleRejectsUnexpectedTopic(t *testing.T) {
	svc := newLedgerService(t)

	_, err := svc.Handle(context.Background(), messaging.Message{
		Topic: "payments.payment-requested",
		Value: []byte("{}"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
