package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID           string `json:"id"`
	PostID       string `json:"post_id"`
	PublishTime  string `json:"publish_time"`
	Status       string `json:"status"`
	RetryCount   int    `json:"retry_count"`
	Exhausted    bool   `json:"exhausted"`
	LastError    string `json:"last_error,omitempty"`
	ClaimedUntil string `json:"claimed_until,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// AttemptResponse — попытка публикации из API.
type AttemptResponse struct {
	Attempt    int    `json:"attempt"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	DurationMs int64  `json:"duration_ms"`
}

// TriggerResult — итог обработки одного schedule.
type TriggerResult struct {
	ScheduleID string `json:"schedule_id"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	Exhausted  bool   `json:"exhausted"`
	Error      string `json:"error,omitempty"`
}

// TriggerResponse — итог прохода trigger'а.
type TriggerResponse struct {
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []TriggerResult `json:"results"`
}

// BrandResponse — бренд из API.
type BrandResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timezone  string `json:"timezone"`
	CreatedAt string `json:"created_at"`
}

// CampaignResponse — кампания из API.
type CampaignResponse struct {
	ID        string `json:"id"`
	BrandID   string `json:"brand_id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	CreatedAt string `json:"created_at"`
}

// PostResponse — пост из API.
type PostResponse struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Platform   string `json:"platform"`
	Title      string `json:"title"`
	ContentRef string `json:"content_ref"`
	CreatedAt  string `json:"created_at"`
}

// --- Request types ---

// CreateBrandRequest — создание бренда.
type CreateBrandRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// CreateCampaignRequest — создание кампании.
type CreateCampaignRequest struct {
	BrandID   string `json:"brand_id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CreatePostRequest — создание поста.
type CreatePostRequest struct {
	CampaignID string `json:"campaign_id"`
	Platform   string `json:"platform"`
	Title      string `json:"title"`
	ContentRef string `json:"content_ref"`
}

// UpdateScheduleRequest — перенос публикации поста.
type UpdateScheduleRequest struct {
	Timestamp string `json:"timestamp"`
	Timezone  string `json:"timezone,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Herald API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Trigger синхронный и может занять несколько таймаутов публикации.
			Timeout: 5 * time.Minute,
		},
	}
}

// --- Catalog ---

// CreateBrand создаёт бренд.
func (c *Client) CreateBrand(req CreateBrandRequest) (*BrandResponse, error) {
	var brand BrandResponse
	err := c.post("/api/v1/brands", req, &brand)
	return &brand, err
}

// CreateCampaign создаёт кампанию.
func (c *Client) CreateCampaign(req CreateCampaignRequest) (*CampaignResponse, error) {
	var campaign CampaignResponse
	err := c.post("/api/v1/campaigns", req, &campaign)
	return &campaign, err
}

// CreatePost создаёт пост.
func (c *Client) CreatePost(req CreatePostRequest) (*PostResponse, error) {
	var post PostResponse
	err := c.post("/api/v1/posts", req, &post)
	return &post, err
}

// --- Schedules ---

// CreateCampaignSchedule распределяет посты кампании. Пустая платформа —
// платформа по умолчанию сервера.
func (c *Client) CreateCampaignSchedule(campaignID, platform string) ([]ScheduleResponse, error) {
	path := "/api/v1/campaigns/" + campaignID + "/schedules"
	if platform != "" {
		path += "?platform=" + platform
	}
	var schedules []ScheduleResponse
	err := c.post(path, nil, &schedules)
	return schedules, err
}

// ListCampaignSchedules возвращает schedules всех постов кампании.
func (c *Client) ListCampaignSchedules(campaignID string) ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/campaigns/"+campaignID+"/schedules", &schedules)
	return schedules, err
}

// GetPostSchedule возвращает последний schedule поста.
func (c *Client) GetPostSchedule(postID string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/posts/"+postID+"/schedule", &schedule)
	return &schedule, err
}

// UpdatePostSchedule переносит последний schedule поста.
func (c *Client) UpdatePostSchedule(postID string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/posts/"+postID+"/schedule", req, &schedule)
	return &schedule, err
}

// Trigger запускает проход планировщика и ждёт результата.
func (c *Client) Trigger() (*TriggerResponse, error) {
	var resp TriggerResponse
	err := c.post("/api/v1/schedules/trigger", nil, &resp)
	return &resp, err
}

// EnqueueTrigger ставит проход в очередь herald-scheduler и не ждёт его.
func (c *Client) EnqueueTrigger() error {
	var resp struct {
		Queued bool `json:"queued"`
	}
	return c.post("/api/v1/schedules/trigger?async=true", nil, &resp)
}

// ListAttempts возвращает историю попыток schedule.
func (c *Client) ListAttempts(scheduleID string) ([]AttemptResponse, error) {
	var attempts []AttemptResponse
	err := c.list("/api/v1/schedules/"+scheduleID+"/attempts", &attempts)
	return attempts, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
