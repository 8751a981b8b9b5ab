// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - schedule.trigger    — запрос на проход trigger'а
//   - schedule.succeeded  — публикация поста прошла успешно
//   - schedule.failed     — попытка публикации не удалась
//
// Exchanges:
//   - herald.schedules — запросы trigger'а и итоги публикаций
//   - herald.dlq       — dead letter queue
package mq
