package notifications

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/finstream/finstream/pkg/models"
)

// OutcomeProvider attempts delivery of a notification. The real channel
// integrations (email, sms, push, webhook) sit behind this interface so tests
// can substitute deterministic doubles.
type OutcomeProvider interface {
	Deliver(ctx context.Context, req models.NotificationRequest) models.NotificationResult
}

// SimulatedChannel delivers a configurable fraction of notifications and
// fails the rest with DELIVERY_FAILED.
type SimulatedChannel struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedChannel creates a channel with the given success rate in [0,1].
func NewSimulatedChannel(successRate float64) *SimulatedChannel {
	return &SimulatedChannel{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *SimulatedChannel) roll() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64()
}

func (c *SimulatedChannel) Deliver(ctx context.Context, req models.NotificationRequest) models.NotificationResult {
	if c.roll() < c.successRate {
		now := time.Now()
		return models.NotificationResult{
			NotificationID: req.NotificationID,
			Status:         models.NotificationSent,
			DeliveredAt:    &now,
		}
	}
	return models.NotificationResult{
		NotificationID: req.NotificationID,
		Status:         models.NotificationUndeliver,
		ErrorCode:      "DELIVERY_FAILED",
		ErrorMessage:   "Notification channel rejected the delivery",
	}
}
