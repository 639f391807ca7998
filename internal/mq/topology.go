package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Обменники.
const (
	ExchangeRuns   Exchange = "treeflow.runs"
	ExchangeEvents Exchange = "treeflow.events"
	ExchangeDLQ    Exchange = "treeflow.dlq"
)

// Очереди.
const (
	QueueRunsRequested Queue = "runs.requested"
	QueueRunsCompleted Queue = "runs.completed"
	QueueDLQRuns       Queue = "dlq.runs"
)

// Ключи маршрутизации.
const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyDLQRuns   RoutingKey = "runs"
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
	queue    Queue
	key      RoutingKey
	exchange Exchange
}

// Topology — набор объявлений брокера.
type Topology struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}

// DefaultTopology возвращает топологию Treeflow:
//
//	treeflow.runs (direct)
//	├── runs.requested [requested]  → worker, DLQ: dlq.runs
//	└── runs.completed [completed]  → api/cli (наблюдение)
//	treeflow.events (topic)         ← сервис publish из планов
//	treeflow.dlq (direct)
//	└── dlq.runs [runs]
func DefaultTopology() *Topology {
	dlq := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}

	return &Topology{
		exchanges: []exchangeDecl{
			{ExchangeRuns, amqp.ExchangeDirect},
			{ExchangeEvents, amqp.ExchangeTopic},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		queues: []queueDecl{
			{QueueRunsRequested, dlq},
			{QueueRunsCompleted, nil},
			{QueueDLQRuns, nil},
		},
		bindings: []bindingDecl{
			{QueueRunsRequested, RoutingKeyRequested, ExchangeRuns},
			{QueueRunsCompleted, RoutingKeyCompleted, ExchangeRuns},
			{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
		},
	}
}

// Declare объявляет обменники, очереди и привязки (все durable).
func (t *Topology) Declare(ch *amqp.Channel) error {
	for _, ex := range t.exchanges {
		if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	for _, q := range t.queues {
		if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	for _, b := range t.bindings {
		if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// SetupTopology объявляет DefaultTopology на соединении.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, DefaultTopology().Declare)
}
