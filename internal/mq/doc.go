// Package mq — шина изменений источников данных поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление, типизированная обработка datasource.changed, ack/requeue/DLQ
//
// Типы сообщений:
//   - datasource.changed — внешнее изменение данных источника приложения
//   - nodes.updated      — узлы приложения пересчитаны (событие update-data)
//
// Exchanges:
//   - pagebind.datasources — входящие изменения источников
//   - pagebind.nodes       — исходящие события пересчёта
//   - pagebind.dlq         — dead letter queue
package mq
