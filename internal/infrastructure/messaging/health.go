package messaging

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// HealthChecker verifies broker connectivity for the readiness probes and the
// startup gate.
type HealthChecker struct {
	brokers []string
}

// NewHealthChecker creates a checker for the given brokers.
func NewHealthChecker(brokers []string) *HealthChecker {
	return &HealthChecker{brokers: brokers}
}

// Check dials the first broker and reads partition metadata. An error means
// the bus is unreachable.
func (h *HealthChecker) Check(ctx context.Context) error {
	if len(h.brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", h.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker %s: %w", h.brokers[0], err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}
	return nil
}
