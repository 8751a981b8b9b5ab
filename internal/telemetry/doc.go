// Package telemetry обеспечивает наблюдаемость Herald.
//
// Включает:
//   - logging.go — structured logging через slog (text или json)
//   - metrics.go — Prometheus метрики с префиксом herald_
//
// Логгер передаётся явно через конфигурацию сервисов или через context
// (WithLogger / FromContext). API и scheduler экспортируют метрики
// на /metrics endpoint.
package telemetry
