package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
)

// CreateBrandRequest — запрос на создание бренда.
type CreateBrandRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// CreateCampaignRequest — запрос на создание кампании.
type CreateCampaignRequest struct {
	BrandID   string `json:"brand_id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // 2006-01-02
	EndDate   string `json:"end_date"`
}

// CreatePostRequest — запрос на создание поста.
type CreatePostRequest struct {
	CampaignID string `json:"campaign_id"`
	Platform   string `json:"platform"`
	Title      string `json:"title"`
	ContentRef string `json:"content_ref"`
}

// CreateBrand создаёт бренд.
// POST /api/v1/brands
func (h *Handler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	var req CreateBrandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Timezone) == "" {
		BadRequest(w, "timezone is required")
		return
	}

	brand, err := h.catalog.CreateBrand(r.Context(), req.Name, req.Timezone)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Created(w, brand)
}

// CreateCampaign создаёт кампанию бренда.
// POST /api/v1/campaigns
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	brandID, err := uuid.Parse(req.BrandID)
	if err != nil {
		BadRequest(w, "invalid brand_id")
		return
	}
	start, err := civil.ParseDate(req.StartDate)
	if err != nil {
		BadRequest(w, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	end, err := civil.ParseDate(req.EndDate)
	if err != nil {
		BadRequest(w, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	campaign, err := h.catalog.CreateCampaign(r.Context(), brandID, req.Name, start, end)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Created(w, campaign)
}

// CreatePost создаёт пост кампании.
// POST /api/v1/posts
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		BadRequest(w, "invalid campaign_id")
		return
	}
	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	post, err := h.catalog.CreatePost(r.Context(), campaignID, platform, req.Title, req.ContentRef)
	if HandleServiceError(w, h.logger, err) {
		return
	}

	Created(w, post)
}
