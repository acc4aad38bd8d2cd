// Package messaging wraps the Kafka transport behind small publish/subscribe
// interfaces. Delivery is at-least-once: consumers commit offsets only after
// processing, producers retry with backoff and may spill to a dead-letter
// topic.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// OutgoingMessage is a derived event to publish.
type OutgoingMessage struct {
	Topic   Topic
	Key     string
	Payload interface{}
	Headers map[string]string
}

// Producer publishes derived events to the bus.
type Producer interface {
	Publish(ctx context.Context, msg OutgoingMessage) error
	Close() error
}

// RetryPolicy parameterizes publish retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// Backoff returns the delay before the given 1-based retry attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.MinBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// KafkaProducer implements Producer on segmentio/kafka-go with one writer per
// topic. Writers hash the message key, so a fixed key always lands on the
// same partition.
type KafkaProducer struct {
	brokers []string
	retry   RetryPolicy
	logger  *zap.Logger
	writers map[Topic]*kafka.Writer
	mu      sync.RWMutex
}

// NewKafkaProducer creates a producer for the given brokers.
func NewKafkaProducer(brokers []string, retry RetryPolicy, logger *zap.Logger) *KafkaProducer {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &KafkaProducer{
		brokers: brokers,
		retry:   retry,
		logger:  logger,
		writers: make(map[Topic]*kafka.Writer),
	}
}

func (p *KafkaProducer) getWriter(topic Topic) *kafka.Writer {
	p.mu.RLock()
	writer, exists := p.writers[topic]
	p.mu.RUnlock()
	if exists {
		return writer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if writer, exists := p.writers[topic]; exists {
		return writer
	}

	writer = &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        string(topic),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	p.writers[topic] = writer
	return writer
}

// Publish serializes the payload as JSON and writes it to the topic,
// retrying transient failures per the configured policy.
func (p *KafkaProducer) Publish(ctx context.Context, msg OutgoingMessage) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", msg.Topic, err)
	}

	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	kafkaMsg := kafka.Message{
		Key:     []byte(msg.Key),
		Value:   data,
		Headers: headers,
		Time:    time.Now(),
	}

	writer := p.getWriter(msg.Topic)
	var lastErr error
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		lastErr = writer.WriteMessages(ctx, kafkaMsg)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < p.retry.MaxAttempts {
			backoff := p.retry.Backoff(attempt)
			p.logger.Warn("publish failed, retrying",
				zap.Error(lastErr),
				zap.String("topic", string(msg.Topic)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return fmt.Errorf("publish to %s failed after %d attempts: %w", msg.Topic, p.retry.MaxAttempts, lastErr)
}

// Close closes all topic writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
			p.logger.Error("failed to close writer", zap.Error(err), zap.String("topic", string(topic)))
		}
	}
	return lastErr
}
