package domain

import "fmt"

// ScheduleStatus — статус доставки schedule.
//
// Жизненный цикл:
//
//	PENDING → PROCESSING → SUCCESS
//	                     ↘ FAILED (retry_count += 1, может быть выбран снова)
//
// PROCESSING — маркер «в работе»: строка захвачена одним вызовом trigger
// и не может быть захвачена другим, пока не истечёт claimed_until.
type ScheduleStatus string

const (
	// ScheduleStatusPending — ожидает наступления publish_time.
	ScheduleStatusPending ScheduleStatus = "PENDING"

	// ScheduleStatusProcessing — захвачен для публикации.
	ScheduleStatusProcessing ScheduleStatus = "PROCESSING"

	// ScheduleStatusSuccess — опубликован.
	ScheduleStatusSuccess ScheduleStatus = "SUCCESS"

	// ScheduleStatusFailed — последняя попытка завершилась ошибкой.
	ScheduleStatusFailed ScheduleStatus = "FAILED"
)

// String возвращает строковое представление ScheduleStatus.
func (s ScheduleStatus) String() string {
	return string(s)
}

// IsValid проверяет, что статус известен.
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case ScheduleStatusPending, ScheduleStatusProcessing, ScheduleStatusSuccess, ScheduleStatusFailed:
		return true
	default:
		return false
	}
}

// ParseScheduleStatus парсит строку в ScheduleStatus.
func ParseScheduleStatus(s string) (ScheduleStatus, error) {
	status := ScheduleStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown schedule status %q", s)
	}
	return status, nil
}
