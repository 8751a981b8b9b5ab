package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Catalog
	mux.Handle("POST /api/v1/brands", chain(http.HandlerFunc(h.CreateBrand)))
	mux.Handle("POST /api/v1/campaigns", chain(http.HandlerFunc(h.CreateCampaign)))
	mux.Handle("POST /api/v1/posts", chain(http.HandlerFunc(h.CreatePost)))

	// Campaigns
	mux.Handle("POST /api/v1/campaigns/{id}/schedules", chain(http.HandlerFunc(h.CreateCampaignSchedule)))
	mux.Handle("GET /api/v1/campaigns/{id}/schedules", chain(http.HandlerFunc(h.GetCampaignSchedules)))

	// Posts
	mux.Handle("GET /api/v1/posts/{id}/schedule", chain(http.HandlerFunc(h.GetPostSchedule)))
	mux.Handle("PUT /api/v1/posts/{id}/schedule", chain(http.HandlerFunc(h.UpdatePostSchedule)))

	// Schedules
	mux.Handle("POST /api/v1/schedules/trigger", chain(http.HandlerFunc(h.TriggerSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}/attempts", chain(http.HandlerFunc(h.ListScheduleAttempts)))
}
