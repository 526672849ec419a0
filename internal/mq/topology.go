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
	ExchangeDataSources Exchange = "pagebind.datasources"
	ExchangeNodes       Exchange = "pagebind.nodes"
	ExchangeDLQ         Exchange = "pagebind.dlq"
)

// Queues — имена очередей.
const (
	QueueDataSourcesChanged Queue = "datasources.changed"
	QueueNodesUpdated       Queue = "nodes.updated"
	QueueDLQDataSources     Queue = "dlq.datasources"
)

// Routing keys.
const (
	RoutingKeyChanged        RoutingKey = "changed"
	RoutingKeyUpdated        RoutingKey = "updated"
	RoutingKeyDLQDataSources RoutingKey = "datasources"
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

// topology — полное описание объектов брокера.
var topology = struct {
	exchanges []exchangeDecl
	queues    []queueDecl
	bindings  []bindingDecl
}{
	exchanges: []exchangeDecl{
		{ExchangeDataSources, amqp.ExchangeDirect},
		{ExchangeNodes, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	},
	queues: []queueDecl{
		// datasources.changed — отклонённые сообщения уходят в DLQ
		{QueueDataSourcesChanged, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQDataSources),
		}},
		{QueueNodesUpdated, nil},
		{QueueDLQDataSources, nil},
	},
	bindings: []bindingDecl{
		{QueueDataSourcesChanged, RoutingKeyChanged, ExchangeDataSources},
		{QueueNodesUpdated, RoutingKeyUpdated, ExchangeNodes},
		{QueueDLQDataSources, RoutingKeyDLQDataSources, ExchangeDLQ},
	},
}

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range topology.exchanges {
			// durable, не auto-delete, не internal
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range topology.queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range topology.bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Pagebind RabbitMQ Topology:

    pagebind.datasources (direct)
    └── datasources.changed [routing: changed]
            Consumer: pagebind-runtime
            DLQ: dlq.datasources

    pagebind.nodes (direct)
    └── nodes.updated [routing: updated]
            Consumer: renderers

    pagebind.dlq (direct)
    └── dlq.datasources [routing: datasources]
            Manual processing
`
}
