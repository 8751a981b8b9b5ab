// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (сервис планировщика, каталог, trigger, очередь, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, metrics)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - schedule_handler.go — обработчики для schedules
//   - catalog_handler.go  — создание брендов, кампаний и постов
//
// Ответы: {"data": ...}, списки {"data": [...], "total": N},
// ошибки {"error": {"code": "...", "message": "..."}}.
package api
