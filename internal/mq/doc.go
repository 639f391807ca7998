// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений с ack/nack/DLQ
//
// Типы сообщений:
//   - run.requested — запрос на выполнение плана (api, cli submit, scheduler → worker)
//   - run.completed — итог выполнения run (worker → наблюдатели)
//   - event         — событие из плана (сервис publish)
//
// Exchanges:
//   - treeflow.runs   — запросы и итоги runs
//   - treeflow.events — события планов (topic)
//   - treeflow.dlq    — dead letter queue
package mq
