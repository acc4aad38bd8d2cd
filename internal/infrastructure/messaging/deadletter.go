package messaging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DeadLetterMessage wraps an unprocessable message for later inspection.
type DeadLetterMessage struct {
	OriginalTopic     string            `json:"original_topic"`
	OriginalKey       string            `json:"original_key"`
	OriginalValue     []byte            `json:"original_value"`
	OriginalHeaders   map[string]string `json:"original_headers"`
	OriginalPartition int               `json:"original_partition"`
	OriginalOffset    int64             `json:"original_offset"`
	FailureReason     string            `json:"failure_reason"`
	FailureTimestamp  time.Time         `json:"failure_timestamp"`
}

// DeadLetterSink publishes unprocessable messages to a designated topic
// instead of dropping them. A nil *DeadLetterSink is a valid no-op sink.
type DeadLetterSink struct {
	producer Producer
	topic    Topic
	logger   *zap.Logger
}

// NewDeadLetterSink creates a sink for the given topic. Returns nil when the
// topic is empty, which disables dead-lettering.
func NewDeadLetterSink(producer Producer, topic Topic, logger *zap.Logger) *DeadLetterSink {
	if topic == "" {
		return nil
	}
	return &DeadLetterSink{producer: producer, topic: topic, logger: logger}
}

// Send forwards the failed message with its failure context.
func (s *DeadLetterSink) Send(ctx context.Context, original Message, cause error) error {
	if s == nil {
		return nil
	}
	dlm := DeadLetterMessage{
		OriginalTopic:     original.Topic,
		OriginalKey:       original.Key,
		OriginalValue:     original.Value,
		OriginalHeaders:   original.Headers,
		OriginalPartition: original.Partition,
		OriginalOffset:    original.Offset,
		FailureReason:     cause.Error(),
		FailureTimestamp:  time.Now(),
	}
	key := fmt.Sprintf("dlq_%s_%d_%d", original.Topic, original.Partition, original.Offset)

	s.logger.Warn("sending message to dead letter topic",
		zap.String("original_topic", original.Topic),
		zap.String("dlq_topic", string(s.topic)),
		zap.String("failure_reason", cause.Error()))

	return s.producer.Publish(ctx, OutgoingMessage{Topic: s.topic, Key: key, Payload: dlm})
}
