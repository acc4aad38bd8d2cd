package payments

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finstream/finstream/pkg/models"
)

// OutcomeProvider decides the result of a payment request. The production
// gateway integration is modeled behind this interface so deterministic
// doubles can replace it in tests.
type OutcomeProvider interface {
	Process(ctx context.Context, req models.PaymentRequest) models.PaymentResult
}

// SimulatedGateway approves a configurable fraction of payments and declines
// the rest with INSUFFICIENT_FUNDS, mimicking a real gateway's shape.
type SimulatedGateway struct {
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedGateway creates a gateway with the given success rate in [0,1].
func NewSimulatedGateway(successRate float64) *SimulatedGateway {
	return &SimulatedGateway{
		successRate: successRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *SimulatedGateway) roll() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64()
}

func (g *SimulatedGateway) Process(ctx context.Context, req models.PaymentRequest) models.PaymentResult {
	if g.roll() < g.successRate {
		return models.PaymentResult{
			PaymentID:     req.PaymentID,
			UserID:        req.UserID,
			Status:        models.PaymentSuccess,
			Amount:        req.Amount,
			Currency:      req.Currency,
			TransactionID: fmt.Sprintf("txn_%s", uuid.NewString()),
			Timestamp:     time.Now(),
		}
	}
	return models.PaymentResult{
		PaymentID:    req.PaymentID,
		UserID:       req.UserID,
		Status:       models.PaymentFailed,
		Amount:       req.Amount,
		Currency:     req.Currency,
		ErrorCode:    "INSUFFICIENT_FUNDS",
		ErrorMessage: "Payment declined due to insufficient funds",
		Timestamp:    time.Now(),
	}
}
