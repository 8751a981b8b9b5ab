package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/scheduler"
)

// Schedule DTOs

// UpdateScheduleRequest — запрос на перенос публикации поста.
type UpdateScheduleRequest struct {
	// Timestamp — wall-clock время, например "2026-02-01T10:00:00".
	// Смещение, если указано, игнорируется.
	Timestamp string `json:"timestamp"`

	// Timezone — IANA timezone; по умолчанию timezone бренда.
	Timezone string `json:"timezone,omitempty"`
}

// ScheduleResponse — ответ со schedule.
type ScheduleResponse struct {
	ID           uuid.UUID             `json:"id"`
	PostID       uuid.UUID             `json:"post_id"`
	PublishTime  time.Time             `json:"publish_time"`
	Status       domain.ScheduleStatus `json:"status"`
	RetryCount   int                   `json:"retry_count"`
	Exhausted    bool                  `json:"exhausted"`
	LastError    string                `json:"last_error,omitempty"`
	ClaimedUntil *time.Time            `json:"claimed_until,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// ScheduleFromView конвертирует scheduler.ScheduleView в ScheduleResponse.
func ScheduleFromView(v scheduler.ScheduleView) ScheduleResponse {
	return ScheduleResponse{
		ID:           v.ID,
		PostID:       v.PostID,
		PublishTime:  v.PublishTime.UTC(),
		Status:       v.Status,
		RetryCount:   v.RetryCount,
		Exhausted:    v.Exhausted,
		LastError:    v.LastError,
		ClaimedUntil: v.ClaimedUntil,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

// SchedulesFromViews конвертирует список.
func SchedulesFromViews(views []scheduler.ScheduleView) []ScheduleResponse {
	out := make([]ScheduleResponse, len(views))
	for i := range views {
		out[i] = ScheduleFromView(views[i])
	}
	return out
}

// Attempt DTOs

// AttemptResponse — ответ с попыткой публикации.
type AttemptResponse struct {
	Attempt    int                   `json:"attempt"`
	Status     domain.ScheduleStatus `json:"status"`
	Error      string                `json:"error,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	DurationMs int64                 `json:"duration_ms"`
}

// AttemptFromDomain конвертирует domain.ScheduleAttempt в AttemptResponse.
func AttemptFromDomain(a domain.ScheduleAttempt) AttemptResponse {
	return AttemptResponse{
		Attempt:    a.Attempt,
		Status:     a.Status,
		Error:      a.Error,
		StartedAt:  a.StartedAt,
		FinishedAt: a.FinishedAt,
		DurationMs: a.Duration().Milliseconds(),
	}
}

// Trigger DTOs

// TriggerResponse — итог прохода trigger'а.
type TriggerResponse struct {
	Processed int                       `json:"processed"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Results   []scheduler.TriggerResult `json:"results"`
}

// EnqueueResponse — ответ асинхронного trigger'а.
type EnqueueResponse struct {
	Queued bool `json:"queued"`
}

// TriggerFromResults считает итоги прохода.
func TriggerFromResults(results []scheduler.TriggerResult) TriggerResponse {
	resp := TriggerResponse{Processed: len(results), Results: results}
	if resp.Results == nil {
		resp.Results = []scheduler.TriggerResult{}
	}
	for _, r := range results {
		if r.Status == domain.ScheduleStatusSuccess {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}
