package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finstream/finstream/pkg/models"
)

func paymentEvent(amount interface{}) models.AuditEvent {
	return models.AuditEvent{
		EventType: models.EventPaymentProcessed,
		Service:   "payments-service",
		Data:      map[string]interface{}{"amount": amount},
	}
}

func TestHighValueRule(t *testing.T) {
	detector := NewDetector(10000)

	violations := detector.Evaluate(paymentEvent(float64(15000)))
	assert.Equal(t, []string{ViolationHighValueTransaction}, violations)

	assert.Empty(t, detector.Evaluate(paymentEvent(float64(9999))))

	// Exactly at the threshold does not fire.
	assert.Empty(t, detector.Evaluate(paymentEvent(float64(10000))))
}

func TestHighValueRuleIgnoresOtherEventTypes(t *testing.T) {
	detector := NewDetector(10000)

	e := models.AuditEvent{
		EventType: models.EventLedgerEntryProcessed,
		Service:   "ledger-service",
		Data:      map[string]interface{}{"amount": float64(50000)},
	}
	assert.Empty(t, detector.Evaluate(e))
}

func TestHighValueRuleToleratesAmountEncodings(t *testing.T) {
	detector := NewDetector(10000)

	assert.NotEmpty(t, detector.Evaluate(paymentEvent("15000.50")))
	assert.NotEmpty(t, detector.Evaluate(paymentEvent(int(20000))))
	assert.Empty(t, detector.Evaluate(paymentEvent("not a number")))
	assert.Empty(t, detector.Evaluate(models.AuditEvent{
		EventType: models.EventPaymentProcessed,
		Service:   "payments-service",
		Data:      map[string]interface{}{},
	}))
}

func TestAuthFailureRule(t *testing.T) {
	detector := NewDetector(10000)

	violations := detector.Evaluate(models.AuditEvent{
		EventType: models.EventAuthFailed,
		Service:   "payments-service",
		Data:      map[string]interface{}{},
	})
	assert.Equal(t, []string{ViolationAuthenticationFailure}, violations)
}
