package audit

import (
	"encoding/json"
	"strconv"

	"github.com/finstream/finstream/pkg/models"
)

// Compliance violation tags.
const (
	ViolationHighValueTransaction  = "HIGH_VALUE_TRANSACTION"
	ViolationAuthenticationFailure = "AUTHENTICATION_FAILURE"
)

// Rule inspects one audit event and reports a violation tag, or "" when the
// rule does not fire. Rules are pure and evaluated independently.
type Rule func(event models.AuditEvent) string

// Detector evaluates the configured rule table against audit events. It
// holds no state beyond the rules themselves.
type Detector struct {
	rules []Rule
}

// NewDetector creates a detector with the built-in rule table.
// highValueThreshold is the PAYMENT_PROCESSED amount above which the
// high-value rule fires.
func NewDetector(highValueThreshold float64) *Detector {
	return &Detector{
		rules: []Rule{
			highValueRule(highValueThreshold),
			authFailureRule,
		},
	}
}

// Evaluate returns every violation the event triggers, possibly none.
func (d *Detector) Evaluate(event models.AuditEvent) []string {
	var violations []string
	for _, rule := range d.rules {
		if v := rule(event); v != "" {
			violations = append(violations, v)
		}
	}
	return violations
}

func highValueRule(threshold float64) Rule {
	return func(event models.AuditEvent) string {
		if event.EventType != models.EventPaymentProcessed {
			return ""
		}
		amount, ok := amountField(event.Data, "amount")
		if !ok || amount <= threshold {
			return ""
		}
		return ViolationHighValueTransaction
	}
}

func authFailureRule(event models.AuditEvent) string {
	if event.EventType != models.EventAuthFailed {
		return ""
	}
	return ViolationAuthenticationFailure
}

// amountField extracts a numeric field from the free-form event data. JSON
// round-trips deliver float64, but producers that serialize decimals as
// strings are accepted too.
func amountField(data map[string]interface{}, key string) (float64, bool) {
	raw, ok := data[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
