package messaging

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Message is a received bus message with its metadata.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Time      time.Time
}

// HandleFunc processes one message. It must contain all per-message failures;
// the offset is committed after it returns regardless of the outcome.
type HandleFunc func(ctx context.Context, msg Message)

// ConsumerConfig configures a consumer-group session.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []Topic
}

// Consumer reads messages within one consumer group, one reader per topic.
// Messages from a reader are processed serially, which preserves the bus's
// per-partition ordering end to end.
type Consumer struct {
	readers []*kafka.Reader
	logger  *zap.Logger
}

// NewConsumer creates a consumer for the given topics.
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) *Consumer {
	readers := make([]*kafka.Reader, 0, len(cfg.Topics))
	for _, topic := range cfg.Topics {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       string(topic),
			StartOffset: kafka.LastOffset,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Sugar().Errorf(msg, args...)
			}),
		}))
	}
	return &Consumer{readers: readers, logger: logger}
}

// Run consumes until the context is cancelled, then lets in-flight messages
// finish before returning. Offsets are committed only after handle returns,
// giving the dispatcher at-least-once semantics.
func (c *Consumer) Run(ctx context.Context, handle HandleFunc) error {
	var wg sync.WaitGroup
	for _, reader := range c.readers {
		wg.Add(1)
		go func(r *kafka.Reader) {
			defer wg.Done()
			c.consume(ctx, r, handle)
		}(reader)
	}
	wg.Wait()
	return ctx.Err()
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader, handle HandleFunc) {
	topic := reader.Config().Topic
	c.logger.Info("consuming from topic", zap.String("topic", topic))

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			c.logger.Error("failed to fetch message", zap.Error(err), zap.String("topic", topic))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		handle(ctx, convertMessage(msg))

		// The short-circuit Failed path is still "handled": the offset
		// advances so the group does not re-deliver a poison message.
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit offset",
				zap.Error(err),
				zap.String("topic", topic),
				zap.Int64("offset", msg.Offset))
		}
	}
}

// Close closes all topic readers.
func (c *Consumer) Close() error {
	var lastErr error
	for _, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = err
			c.logger.Error("failed to close reader", zap.Error(err), zap.String("topic", reader.Config().Topic))
		}
	}
	return lastErr
}

func convertMessage(msg kafka.Message) Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Topic:     msg.Topic,
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
}
