package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleAttempt — запись об одной попытке публикации.
//
// Пишется в той же транзакции, что и смена статуса schedule,
// поэтому история попыток всегда согласована с RetryCount.
type ScheduleAttempt struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID uuid.UUID `json:"schedule_id"`

	// Attempt — номер попытки, начиная с 1.
	Attempt int `json:"attempt"`

	// Status — итог попытки: SUCCESS или FAILED.
	Status ScheduleStatus `json:"status"`

	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает длительность попытки.
func (a *ScheduleAttempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}
