package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAck записывает, как было подтверждено сообщение.
type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func newTestConsumer(h Handler) *Consumer {
	return &Consumer{
		logger:   telemetry.Discard(),
		queue:    QueueTrigger,
		handler:  h,
		prefetch: 1,
	}
}

func delivery(t *testing.T, ack amqp.Acknowledger, msg *Message, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body, Redelivered: redelivered}
}

// --- Consumer Tests ---

func TestConsumer_AckOnSuccess(t *testing.T) {
	var got TriggerPayload
	c := newTestConsumer(func(_ context.Context, msg *Message) error {
		var err error
		got, err = ParsePayload[TriggerPayload](msg)
		return err
	})
	ack := &fakeAck{}

	c.handleDelivery(context.Background(), delivery(t, ack, NewMessage(MessageTypeTrigger, TriggerPayload{Source: "cli"}), false))

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Equal(t, "cli", got.Source)
}

func TestConsumer_RequeueOnFirstFailure(t *testing.T) {
	c := newTestConsumer(func(context.Context, *Message) error { return errors.New("db down") })
	ack := &fakeAck{}

	c.handleDelivery(context.Background(), delivery(t, ack, NewMessage(MessageTypeTrigger, nil), false))

	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestConsumer_DeadLetterOnRedeliveredFailure(t *testing.T) {
	c := newTestConsumer(func(context.Context, *Message) error { return errors.New("db down") })
	ack := &fakeAck{}

	c.handleDelivery(context.Background(), delivery(t, ack, NewMessage(MessageTypeTrigger, nil), true))

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestConsumer_DeadLetterOnMalformedBody(t *testing.T) {
	called := false
	c := newTestConsumer(func(context.Context, *Message) error { called = true; return nil })
	ack := &fakeAck{}

	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("{not json")})

	assert.False(t, called)
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
}

// --- Message Tests ---

func TestScheduleOutcomePayload_MessageType(t *testing.T) {
	ok := ScheduleOutcomePayload{Status: domain.ScheduleStatusSuccess}
	failed := ScheduleOutcomePayload{Status: domain.ScheduleStatusFailed, RetryCount: 3, Exhausted: true}

	assert.Equal(t, MessageTypeScheduleSucceeded, ok.MessageType())
	assert.Equal(t, MessageTypeScheduleFailed, failed.MessageType())
}

func TestEncodeMessage(t *testing.T) {
	payload := ScheduleOutcomePayload{
		ScheduleID: uuid.New(),
		PostID:     uuid.New(),
		Platform:   domain.PlatformTwitter,
		Status:     domain.ScheduleStatusFailed,
		RetryCount: 1,
		Error:      "HTTP 500",
	}
	msg := NewMessage(payload.MessageType(), payload)

	pub, err := encodeMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, msg.ID, pub.MessageId)
	assert.Equal(t, string(MessageTypeScheduleFailed), pub.Type)

	var decoded Message
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	back, err := ParsePayload[ScheduleOutcomePayload](&decoded)
	require.NoError(t, err)
	assert.Equal(t, payload, back)
}

func TestParsePayload_TypeMismatch(t *testing.T) {
	msg := &Message{Payload: map[string]any{"source": 42}}

	_, err := ParsePayload[TriggerPayload](msg)

	assert.Error(t, err)
}

// --- Topology Tests ---

func TestHeraldTopology_BindingsReferenceDeclared(t *testing.T) {
	topo := heraldTopology()

	exchanges := map[Exchange]bool{}
	for _, ex := range topo.exchanges {
		exchanges[ex.name] = true
	}
	queues := map[Queue]amqp.Table{}
	for _, q := range topo.queues {
		queues[q.name] = q.args
	}

	for _, b := range topo.bindings {
		assert.True(t, exchanges[b.exchange], "exchange %s not declared", b.exchange)
		_, ok := queues[b.queue]
		assert.True(t, ok, "queue %s not declared", b.queue)
	}

	assert.Equal(t, string(ExchangeDLQ), queues[QueueTrigger]["x-dead-letter-exchange"])
	assert.Equal(t, string(ExchangeDLQ), queues[QueueOutcomes]["x-dead-letter-exchange"])
}
