package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Виды пересчёта, используются как значение label "kind".
const (
	KindCondition = "condition"
	KindValue     = "value"
)

var (
	// NodesRecomputed — количество пересчитанных узлов.
	NodesRecomputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebind_nodes_recomputed_total",
		Help: "Nodes recomputed after data source changes",
	}, []string{"kind"})

	// CompileErrors — ошибки компиляции узлов.
	CompileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebind_compile_errors_total",
		Help: "Node compilation failures",
	}, []string{"kind"})

	// UpdateEvents — отправленные события update-data.
	UpdateEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebind_update_events_total",
		Help: "update-data events emitted",
	}, []string{"kind"})

	// ChangeDuration — длительность обработки одного изменения источника.
	ChangeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagebind_change_duration_seconds",
		Help:    "Time spent handling one data source change",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// DataSourceFetches — запросы http источников по результату.
	DataSourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebind_datasource_fetches_total",
		Help: "HTTP data source fetches",
	}, []string{"result"})

	// MessagesConsumed — сообщения очередей по исходу (ack, requeue, dead_letter).
	MessagesConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagebind_mq_messages_consumed_total",
		Help: "Messages consumed from RabbitMQ queues",
	}, []string{"queue", "result"})
)
