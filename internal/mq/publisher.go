package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Treeflow/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunCompleted MessageType = "run.completed"
	MessageTypeEvent        MessageType = "event"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(typ MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// RunRequestedPayload — запрос на выполнение плана.
type RunRequestedPayload struct {
	RunID          uuid.UUID      `json:"run_id"`
	Plan           string         `json:"plan"`
	Trigger        domain.Trigger `json:"trigger,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// RunCompletedPayload — итог выполнения run.
type RunCompletedPayload struct {
	RunID      uuid.UUID        `json:"run_id"`
	Plan       string           `json:"plan"`
	Status     domain.RunStatus `json:"status"`
	Result     any              `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// CompletedPayload строит RunCompletedPayload из записи run.
func CompletedPayload(run *domain.Run) RunCompletedPayload {
	return RunCompletedPayload{
		RunID:      run.ID,
		Plan:       run.Plan,
		Status:     run.Status,
		Result:     run.Result,
		Error:      run.Error,
		DurationMs: run.Duration().Milliseconds(),
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish сериализует msg в JSON и публикует его persistent-сообщением.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(key), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", key,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunRequested ставит run в очередь worker'ов.
func (p *Publisher) PublishRunRequested(ctx context.Context, payload RunRequestedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, NewMessage(MessageTypeRunRequested, payload))
}

// PublishRunCompleted сообщает о завершении run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, payload RunCompletedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyCompleted, NewMessage(MessageTypeRunCompleted, payload))
}

// PublishEvent публикует произвольное событие в treeflow.events.
func (p *Publisher) PublishEvent(ctx context.Context, key string, payload any) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKey(key), NewMessage(MessageTypeEvent, payload))
}
