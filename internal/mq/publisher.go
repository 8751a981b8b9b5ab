package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/telemetry"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTrigger           MessageType = "schedule.trigger"
	MessageTypeScheduleSucceeded MessageType = "schedule.succeeded"
	MessageTypeScheduleFailed    MessageType = "schedule.failed"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID и текущим временем.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// TriggerPayload — запрос на проход trigger'а.
type TriggerPayload struct {
	// Source — кто запросил (cli, api, cron, ...). Только для логов.
	Source string `json:"source"`
}

// ScheduleOutcomePayload — итог попытки публикации.
type ScheduleOutcomePayload struct {
	ScheduleID uuid.UUID             `json:"schedule_id"`
	PostID     uuid.UUID             `json:"post_id"`
	Platform   domain.Platform       `json:"platform,omitempty"`
	Status     domain.ScheduleStatus `json:"status"`
	RetryCount int                   `json:"retry_count"`
	Exhausted  bool                  `json:"exhausted"`
	Error      string                `json:"error,omitempty"`
}

// MessageType возвращает тип события по статусу.
func (p ScheduleOutcomePayload) MessageType() MessageType {
	if p.Status == domain.ScheduleStatusSuccess {
		return MessageTypeScheduleSucceeded
	}
	return MessageTypeScheduleFailed
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	publishing, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			publishing,
		)
	})
	if err != nil {
		telemetry.MQMessagesPublished.WithLabelValues(string(routingKey), "error").Inc()
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	telemetry.MQMessagesPublished.WithLabelValues(string(routingKey), "ok").Inc()
	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishScheduleOutcome публикует schedule.succeeded или schedule.failed.
func (p *Publisher) PublishScheduleOutcome(ctx context.Context, payload ScheduleOutcomePayload) error {
	msg := NewMessage(payload.MessageType(), payload)
	return p.Publish(ctx, ExchangeSchedules, RoutingKeyOutcome, msg)
}

// PublishTrigger ставит в очередь запрос на проход trigger'а.
// Потребитель: herald-scheduler.
func (p *Publisher) PublishTrigger(ctx context.Context, source string) error {
	msg := NewMessage(MessageTypeTrigger, TriggerPayload{Source: source})
	return p.Publish(ctx, ExchangeSchedules, RoutingKeyTrigger, msg)
}

// encodeMessage сериализует сообщение в persistent JSON publishing.
func encodeMessage(msg *Message) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}, nil
}
