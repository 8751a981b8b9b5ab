package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeSchedules Exchange = "herald.schedules"
	ExchangeDLQ       Exchange = "herald.dlq"
)

// Queues — имена очередей.
const (
	QueueTrigger      Queue = "schedules.trigger"
	QueueOutcomes     Queue = "schedules.outcomes"
	QueueDLQSchedules Queue = "dlq.schedules"
)

// Routing keys.
const (
	RoutingKeyTrigger RoutingKey = "trigger"
	RoutingKeyOutcome RoutingKey = "outcome"
	RoutingKeyDLQ     RoutingKey = "schedules"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology — полное описание обменников, очередей и привязок.
type topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

// heraldTopology возвращает топологию сервиса.
// Обе рабочие очереди отправляют отклонённые сообщения в dlq.schedules.
func heraldTopology() topology {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	return topology{
		exchanges: []exchangeDecl{
			{ExchangeSchedules, amqp.ExchangeDirect},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		queues: []queueDecl{
			{QueueTrigger, dlqArgs},
			{QueueOutcomes, dlqArgs},
			{QueueDLQSchedules, nil},
		},
		bindings: []bindingDecl{
			{QueueTrigger, RoutingKeyTrigger, ExchangeSchedules},
			{QueueOutcomes, RoutingKeyOutcome, ExchangeSchedules},
			{QueueDLQSchedules, RoutingKeyDLQ, ExchangeDLQ},
		},
	}
}

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	t := heraldTopology()

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range t.exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range t.queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range t.bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Herald RabbitMQ Topology:

    herald.schedules (direct)
    ├── schedules.trigger  [routing: trigger]   Consumer: herald-scheduler
    └── schedules.outcomes [routing: outcome]   Consumer: alerting / analytics

    herald.dlq (direct)
    └── dlq.schedules [routing: schedules]      Manual processing
`
}
