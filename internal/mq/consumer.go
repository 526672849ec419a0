package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Pagebind/internal/telemetry"
)

// Handler обрабатывает одно сообщение очереди.
//
// nil — сообщение подтверждается. Ошибка, обёрнутая в Permanent, отправляет
// сообщение в DLQ сразу; остальные ошибки возвращают его в очередь один раз.
type Handler func(ctx context.Context, msg *Message) error

// DataSourceChangedHandler применяет внешнее изменение источника данных.
type DataSourceChangedHandler func(ctx context.Context, payload DataSourceChangedPayload) error

// ErrPermanent — сообщение не может быть обработано повторно.
var ErrPermanent = errors.New("permanent message failure")

// ErrUnexpectedType — в очередь пришло сообщение чужого типа.
var ErrUnexpectedType = errors.New("unexpected message type")

// Permanent помечает ошибку обработчика как неповторяемую.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// HandleDataSourceChanged строит Handler очереди datasources.changed.
// Чужой тип сообщения и битый payload — неповторяемые ошибки.
func HandleDataSourceChanged(fn DataSourceChangedHandler) Handler {
	return func(ctx context.Context, msg *Message) error {
		if msg.Type != MessageTypeDataSourceChanged {
			return Permanent(fmt.Errorf("%w: %q", ErrUnexpectedType, msg.Type))
		}
		payload, err := ParsePayload[DataSourceChangedPayload](msg)
		if err != nil {
			return Permanent(err)
		}
		if payload.SourceID == "" {
			return Permanent(errors.New("payload: source_id is required"))
		}
		return fn(ctx, payload)
	}
}

// Исход обработки сообщения, используется как label "result".
type outcome string

const (
	outcomeAck        outcome = "ack"
	outcomeRequeue    outcome = "requeue"
	outcomeDeadLetter outcome = "dead_letter"
)

// settle выбирает исход по ошибке обработчика.
// Повторная неудача после redelivery уходит в DLQ очереди.
func settle(err error, redelivered bool) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case errors.Is(err, ErrPermanent), redelivered:
		return outcomeDeadLetter
	default:
		return outcomeRequeue
	}
}

// Consumer читает очередь RabbitMQ и передаёт сообщения Handler по одному
// на каждое доставленное сообщение. Переживает переподключения Connection.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int

	cancel context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  Handler
	Prefetch int // по умолчанию 1
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   telemetry.OrDiscard(logger).With("queue", string(cfg.Queue)),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start читает очередь до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			if err := c.drain(ctx, deliveries); err != nil {
				return err
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, restarting consumer")
		}
	}
}

// Stop останавливает Start.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// autoAck=false: подтверждаем после обработчика.
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает доставки, пока канал открыт.
// Возвращает ошибку только при отмене ctx.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.settleDelivery(raw, c.process(ctx, raw.Body, raw.Redelivered))
		}
	}
}

// process декодирует тело сообщения, вызывает Handler и выбирает исход.
func (c *Consumer) process(ctx context.Context, body []byte, redelivered bool) outcome {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(body))
		return c.record(outcomeDeadLetter)
	}

	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)
	logger.Debug("received message")

	err := c.handler(ctx, &msg)
	result := settle(err, redelivered)
	if err != nil {
		logger.Error("handler failed", "result", result, "error", err)
	}
	return c.record(result)
}

func (c *Consumer) record(result outcome) outcome {
	telemetry.MessagesConsumed.WithLabelValues(string(c.queue), string(result)).Inc()
	return result
}

func (c *Consumer) settleDelivery(raw amqp.Delivery, result outcome) {
	var err error
	switch result {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "result", result, "error", err)
	}
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
