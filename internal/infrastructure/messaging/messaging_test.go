package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryPolicyBackoff(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 5,
		MinBackoff:  100 * time.Millisecond,
		MaxBackoff:  1 * time.Second,
	}

	assert.Equal(t, 100*time.Millisecond, policy.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, policy.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, policy.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, policy.Backoff(4))
	// Capped at MaxBackoff from here on.
	assert.Equal(t, 1*time.Second, policy.Backoff(5))
	assert.Equal(t, 1*time.Second, policy.Backoff(10))
}

func TestNilDeadLetterSinkIsNoOp(t *testing.T) {
	var sink *DeadLetterSink
	err := sink.Send(context.Background(), Message{Topic: "t"}, errors.New("boom"))
	assert.NoError(t, err)
}

func TestNewDeadLetterSinkDisabledOnEmptyTopic(t *testing.T) {
	sink := NewDeadLetterSink(nil, "", zap.NewNop())
	assert.Nil(t, sink)
}

type recordingProducer struct {
	published []OutgoingMessage
}

func (p *recordingProducer) Publish(ctx context.Context, msg OutgoingMessage) error {
	p.published = append(p.published, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestDeadLetterSinkWrapsOriginal(t *testing.T) {
	producer := &recordingProducer{}
	sink := NewDeadLetterSink(producer, "finstream.dead-letter", zap.NewNop())
	require.NotNil(t, sink)

	original := Message{
		Topic:     "payments.payment-requested",
		Key:       "pay-1",
		Value:     []byte("{not json"),
		Headers:   map[string]string{HeaderCorrelationID: "corr-1"},
		Partition: 2,
		Offset:    41,
	}
	require.NoError(t, sink.Send(context.Background(), original, errors.New("unparsable payload")))

	require.Len(t, producer.published, 1)
	out := producer.published[0]
	assert.Equal(t, Topic("finstream.dead-letter"), out.Topic)

	dlm, ok := out.Payload.(DeadLetterMessage)
	require.True(t, ok)
	assert.Equal(t, "payments.payment-requested", dlm.OriginalTopic)
	assert.Equal(t, "pay-1", dlm.OriginalKey)
	assert.Equal(t, int64(41), dlm.OriginalOffset)
	assert.Equal(t, "unparsable payload", dlm.FailureReason)
}
