package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/trigger"
)

// CreateCampaignSchedule распределяет посты кампании по окну кампании.
// POST /api/v1/campaigns/{id}/schedules?platform=TWITTER
func (h *Handler) CreateCampaignSchedule(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid campaign id")
		return
	}

	var platform domain.Platform
	if p := strings.TrimSpace(r.URL.Query().Get("platform")); p != "" {
		platform, err = domain.ParsePlatform(p)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	views, err := h.service.CreateCampaignSchedule(r.Context(), campaignID, platform)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Created(w, SchedulesFromViews(views))
}

// GetCampaignSchedules возвращает все schedules постов кампании.
// GET /api/v1/campaigns/{id}/schedules
func (h *Handler) GetCampaignSchedules(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid campaign id")
		return
	}

	views, err := h.service.GetCampaignSchedules(r.Context(), campaignID)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	List(w, SchedulesFromViews(views), len(views))
}

// GetPostSchedule возвращает последний schedule поста.
// GET /api/v1/posts/{id}/schedule
func (h *Handler) GetPostSchedule(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid post id")
		return
	}

	view, err := h.service.GetPostSchedule(r.Context(), postID)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, ScheduleFromView(*view))
}

// UpdatePostSchedule переносит последний schedule поста.
// PUT /api/v1/posts/{id}/schedule
func (h *Handler) UpdatePostSchedule(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid post id")
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Timestamp) == "" {
		BadRequest(w, "timestamp is required")
		return
	}

	view, err := h.service.UpdatePostSchedule(r.Context(), postID, req.Timestamp, req.Timezone)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, ScheduleFromView(*view))
}

// TriggerSchedule выполняет проход планировщика синхронно.
// С ?async=true только ставит запрос в очередь herald-scheduler (202).
// POST /api/v1/schedules/trigger
func (h *Handler) TriggerSchedule(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("async") == "true" {
		h.enqueueTrigger(w, r)
		return
	}

	results, err := h.trigger.RunOnce(r.Context(), trigger.SourceAPI)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Success(w, TriggerFromResults(results))
}

func (h *Handler) enqueueTrigger(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		Unavailable(w, "message queue is not configured")
		return
	}
	if err := h.queue.PublishTrigger(r.Context(), trigger.SourceAPI); err != nil {
		h.logger.Error("failed to enqueue trigger", "error", err)
		Unavailable(w, "failed to enqueue trigger")
		return
	}
	JSON(w, http.StatusAccepted, DataResponse{Data: EnqueueResponse{Queued: true}})
}

// ListScheduleAttempts возвращает историю попыток schedule.
// GET /api/v1/schedules/{id}/attempts
func (h *Handler) ListScheduleAttempts(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	attempts, err := h.service.ListScheduleAttempts(r.Context(), scheduleID)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	result := make([]AttemptResponse, len(attempts))
	for i := range attempts {
		result[i] = AttemptFromDomain(attempts[i])
	}

	List(w, result, len(result))
}
