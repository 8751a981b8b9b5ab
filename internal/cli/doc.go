// Package cli реализует инструмент командной строки Herald.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Herald API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Herald API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и ошибки API (APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	schedules, err := client.ListCampaignSchedules(campaignID)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) — в stderr.
// Это позволяет использовать pipe: herald schedule list ID --json | jq .
//
// ## Commands
//
//   - brand, campaign, post: create
//   - schedule: create, list, show, update, trigger, attempts
//
// NewScheduleCmd принимает clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
