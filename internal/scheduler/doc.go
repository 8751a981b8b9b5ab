// Package scheduler реализует планирование и доставку публикаций кампаний.
//
// Структура:
//   - distribute.go — Planner: распределение моментов публикации по окну кампании
//   - service.go    — Service: создание, перенос и чтение schedules
//   - catalog.go    — Catalog: регистрация брендов, кампаний и постов
//   - process.go    — проход trigger'а: выборка, захват, публикация, фиксация итога
//   - errors.go     — sentinel-ошибки
//
// State machine schedule:
//
//	PENDING (due) | FAILED (retry < max) --claim--> PROCESSING
//	PROCESSING --успех--> SUCCESS
//	PROCESSING --отказ, таймаут, паника, пост не найден--> FAILED (retry_count + 1)
//	PROCESSING (захват просрочен) --expire--> FAILED (retry_count + 1)
//	FAILED с retry_count >= max — терминальный, больше не выбирается
//
// Reschedule возвращает последний schedule поста в PENDING с retry_count = 0
// из любого статуса.
//
// Использование:
//
//	svc := scheduler.New(scheduler.Config{
//	    Brands:    brandRepo,
//	    Campaigns: campaignRepo,
//	    Posts:     postRepo,
//	    Schedules: scheduleRepo,
//	    Publisher: pub,
//	    Notifier:  mqPublisher, // опционально
//	    Logger:    logger,
//	})
//
//	results, err := svc.TriggerSchedule(ctx)
//
// Service не сериализует вызовы TriggerSchedule: это делает драйвер
// (internal/trigger). Дубли публикаций между процессами исключает
// атомарный захват строки.
package scheduler
