// Package trigger запускает проходы планировщика.
//
// Источники запуска:
//   - cron (robfig/cron) — по расписанию, только у держателя lease
//   - API — POST /api/v1/schedules/trigger
//   - AMQP — сообщение schedule.trigger в очереди schedules.trigger
//
// Все источники проходят через Driver.RunOnce, который сериализует
// проходы внутри процесса.
package trigger
