// Package dispatch runs the consume-process-publish loop shared by all
// services. Each inbound message moves through
// Received -> Validated -> Applied -> Published -> Acknowledged, reaching the
// Failed terminal from any step; failures never escape a single message.
package dispatch

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/infrastructure/messaging"
	"github.com/finstream/finstream/pkg/metrics"
)

// Handler validates and applies one inbound message, returning the derived
// events to publish. Errors mark the message Failed; the dispatcher logs,
// counts and (optionally) dead-letters it, then acknowledges.
type Handler interface {
	Topics() []messaging.Topic
	Handle(ctx context.Context, msg messaging.Message) ([]messaging.OutgoingMessage, error)
}

// Source delivers inbound messages; the offset behind a message is committed
// after the handle callback returns. *messaging.Consumer implements it.
type Source interface {
	Run(ctx context.Context, handle messaging.HandleFunc) error
	Close() error
}

// Dispatcher ties a Source, a Handler and a Producer together for one
// service's consumer-group session.
type Dispatcher struct {
	service  string
	source   Source
	producer messaging.Producer
	handler  Handler
	dlq      *messaging.DeadLetterSink
	logger   *zap.Logger
}

// New creates a dispatcher. dlq may be nil to disable dead-lettering.
func New(service string, source Source, producer messaging.Producer, handler Handler, dlq *messaging.DeadLetterSink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		service:  service,
		source:   source,
		producer: producer,
		handler:  handler,
		dlq:      dlq,
		logger:   logger,
	}
}

// Run consumes until the context is cancelled, letting in-flight messages
// reach Acknowledged or Failed before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.source.Run(ctx, d.process)
}

func (d *Dispatcher) process(ctx context.Context, msg messaging.Message) {
	correlationID := msg.Headers[messaging.HeaderCorrelationID]
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := d.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.String("correlation_id", correlationID),
	)

	derived, err := d.handler.Handle(ctx, msg)
	if err != nil {
		// Failed terminal: the message is handled, not retried. State in the
		// engines is untouched because handlers reject before applying.
		log.Error("failed to process message", zap.Error(err))
		metrics.KafkaMessages.WithLabelValues(msg.Topic, "failure").Inc()
		if dlqErr := d.dlq.Send(ctx, msg, err); dlqErr != nil {
			log.Error("failed to dead-letter message", zap.Error(dlqErr))
		}
		return
	}

	for _, out := range derived {
		if out.Headers == nil {
			out.Headers = make(map[string]string, 2)
		}
		if _, ok := out.Headers[messaging.HeaderCorrelationID]; !ok {
			out.Headers[messaging.HeaderCorrelationID] = correlationID
		}
		if _, ok := out.Headers[messaging.HeaderService]; !ok {
			out.Headers[messaging.HeaderService] = d.service
		}

		// Publish failures do not roll back the Applied step; the derived
		// event is logged and counted as lost.
		if err := d.producer.Publish(ctx, out); err != nil {
			log.Error("failed to publish derived event",
				zap.Error(err),
				zap.String("derived_topic", string(out.Topic)))
			metrics.PublishFailures.WithLabelValues(string(out.Topic)).Inc()
		}
	}

	metrics.KafkaMessages.WithLabelValues(msg.Topic, "success").Inc()
}
