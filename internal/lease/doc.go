// Package lease выбирает лидера среди экземпляров herald-scheduler.
//
// Только лидер запускает trigger по расписанию. Корректность не зависит
// от lease (дубли исключает атомарный захват schedule), lease лишь убирает
// лишние проходы.
//
// Реализации:
//   - Postgres — pg_try_advisory_lock на выделенном соединении
//   - Redis    — SET NX PX с токеном владельца
//   - Local    — единственный экземпляр, lease всегда получен
package lease
