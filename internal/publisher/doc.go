// Package publisher — адаптеры публикации постов на платформы.
//
// Publisher получает Request и возвращает nil при успехе или ошибку при
// отказе платформы. Таймаут задаётся вызывающим через ctx.
//
// Реализации:
//   - LogPublisher  — только логирует и всегда успешен (режим разработки)
//   - Webhook       — POST JSON на внешний endpoint
//   - RateLimited   — обёртка, ограничивающая частоту вызовов
//   - Registry      — маршрутизация по платформе с fallback
package publisher
