package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Pagebind/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeDataSourceChanged MessageType = "datasource.changed"
	MessageTypeNodesUpdated      MessageType = "nodes.updated"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// DataSourceChangedPayload — внешнее изменение данных источника.
//
// Пустой Path — данные источника заменяются на Data.
// Иначе Value записывается по пути Path.
type DataSourceChangedPayload struct {
	AppID    uuid.UUID `json:"app_id"`
	SourceID string    `json:"source_id"`
	Data     any       `json:"data,omitempty"`
	Path     []string  `json:"path,omitempty"`
	Value    any       `json:"value,omitempty"`
}

// NodesUpdatedPayload — событие update-data приложения.
type NodesUpdatedPayload struct {
	AppID    uuid.UUID      `json:"app_id"`
	SourceID string         `json:"source_id"`
	Kind     string         `json:"kind"`
	Nodes    []*domain.Node `json:"nodes"`
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
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishDataSourceChanged публикует внешнее изменение источника.
// Потребитель: pagebind-runtime.
func (p *Publisher) PublishDataSourceChanged(ctx context.Context, payload DataSourceChangedPayload) error {
	msg := NewMessage(MessageTypeDataSourceChanged, payload)
	return p.Publish(ctx, ExchangeDataSources, RoutingKeyChanged, msg)
}

// PublishNodesUpdated публикует пересчитанные узлы.
// Потребители: рендереры страниц.
func (p *Publisher) PublishNodesUpdated(ctx context.Context, payload NodesUpdatedPayload) error {
	msg := NewMessage(MessageTypeNodesUpdated, payload)
	return p.Publish(ctx, ExchangeNodes, RoutingKeyUpdated, msg)
}
