package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — запланированная публикация поста и её результат.
//
// У поста может накопиться несколько schedules (каждая генерация расписания
// кампании добавляет строки; reschedule перезаписывает последнюю).
// Активным считается schedule с наибольшим PublishTime.
//
// Schedule изменяется только сервисом планировщика.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// PostID — пост, который нужно опубликовать.
	PostID uuid.UUID `json:"post_id"`

	// PublishTime — момент публикации, всегда в UTC.
	PublishTime time.Time `json:"publish_time"`

	// Status — текущий статус доставки.
	Status ScheduleStatus `json:"status"`

	// RetryCount — количество неудачных попыток.
	RetryCount int `json:"retry_count"`

	// LastError — текст ошибки последней неудачной попытки.
	LastError string `json:"last_error,omitempty"`

	// ClaimToken — токен захвата; выдаётся при переходе в PROCESSING.
	// Завершить попытку может только владелец токена.
	ClaimToken *uuid.UUID `json:"-"`

	// ClaimedUntil — до какого момента захват действителен.
	// Просроченный захват засчитывается как неудачная попытка (ExpireClaim).
	ClaimedUntil *time.Time `json:"claimed_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSchedule создаёт schedule в статусе PENDING.
func NewSchedule(postID uuid.UUID, publishTime time.Time) Schedule {
	now := time.Now().UTC()
	return Schedule{
		ID:          uuid.New(),
		PostID:      postID,
		PublishTime: publishTime.UTC(),
		Status:      ScheduleStatusPending,
		RetryCount:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsDue проверяет, наступило ли время публикации.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Status == ScheduleStatusPending && !s.PublishTime.After(now)
}

// IsRetryable возвращает true для FAILED, у которого ещё есть попытки.
func (s *Schedule) IsRetryable(maxRetry int) bool {
	return s.Status == ScheduleStatusFailed && s.RetryCount < maxRetry
}

// IsExhausted возвращает true, если попытки исчерпаны.
// Такой schedule больше никогда не выбирается trigger'ом.
func (s *Schedule) IsExhausted(maxRetry int) bool {
	return s.Status == ScheduleStatusFailed && s.RetryCount >= maxRetry
}

// IsClaimExpired проверяет, что захват PROCESSING просрочен.
func (s *Schedule) IsClaimExpired(now time.Time) bool {
	if s.Status != ScheduleStatusProcessing {
		return false
	}
	return s.ClaimedUntil == nil || s.ClaimedUntil.Before(now)
}

// IsEligible — предикат выборки trigger'а: due PENDING или retryable FAILED.
// PROCESSING с просроченным захватом сначала переводится в FAILED
// (см. ExpireClaim) и дальше подчиняется лимиту попыток.
func (s *Schedule) IsEligible(now time.Time, maxRetry int) bool {
	return s.IsDue(now) || s.IsRetryable(maxRetry)
}

// Claim переводит schedule в PROCESSING.
func (s *Schedule) Claim(token uuid.UUID, until time.Time) {
	s.Status = ScheduleStatusProcessing
	s.ClaimToken = &token
	s.ClaimedUntil = &until
	s.UpdatedAt = time.Now().UTC()
}

// MarkSucceeded переводит schedule в SUCCESS.
func (s *Schedule) MarkSucceeded() {
	s.Status = ScheduleStatusSuccess
	s.LastError = ""
	s.releaseClaim()
}

// MarkFailed переводит schedule в FAILED и увеличивает RetryCount.
func (s *Schedule) MarkFailed(errMsg string) {
	s.Status = ScheduleStatusFailed
	s.RetryCount++
	s.LastError = errMsg
	s.releaseClaim()
}

// ExpireClaim засчитывает брошенную попытку: просроченный захват
// становится FAILED с RetryCount + 1.
func (s *Schedule) ExpireClaim(errMsg string) {
	s.MarkFailed(errMsg)
}

// Reschedule сбрасывает state machine: новое время, PENDING, RetryCount = 0.
// Работает из любого статуса, в том числе терминального.
func (s *Schedule) Reschedule(publishTime time.Time) {
	s.PublishTime = publishTime.UTC()
	s.Status = ScheduleStatusPending
	s.RetryCount = 0
	s.LastError = ""
	s.releaseClaim()
}

func (s *Schedule) releaseClaim() {
	s.ClaimToken = nil
	s.ClaimedUntil = nil
	s.UpdatedAt = time.Now().UTC()
}
