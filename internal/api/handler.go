package api

import (
	"context"
	"log/slog"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/scheduler"
)

// ScheduleService — операции планировщика, доступные через API.
// Реализация: scheduler.Service.
type ScheduleService interface {
	CreateCampaignSchedule(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) ([]scheduler.ScheduleView, error)
	GetCampaignSchedules(ctx context.Context, campaignID uuid.UUID) ([]scheduler.ScheduleView, error)
	GetPostSchedule(ctx context.Context, postID uuid.UUID) (*scheduler.ScheduleView, error)
	UpdatePostSchedule(ctx context.Context, postID uuid.UUID, timestamp, timezone string) (*scheduler.ScheduleView, error)
	ListScheduleAttempts(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleAttempt, error)
}

// CatalogService — регистрация брендов, кампаний и постов.
// Реализация: scheduler.Catalog.
type CatalogService interface {
	CreateBrand(ctx context.Context, name, timezone string) (*domain.Brand, error)
	CreateCampaign(ctx context.Context, brandID uuid.UUID, name string, start, end civil.Date) (*domain.Campaign, error)
	CreatePost(ctx context.Context, campaignID uuid.UUID, platform domain.Platform, title, contentRef string) (*domain.Post, error)
}

// Triggerer запускает проход планировщика. Реализация: trigger.Driver.
type Triggerer interface {
	RunOnce(ctx context.Context, source string) ([]scheduler.TriggerResult, error)
}

// Enqueuer ставит запрос trigger'а в очередь. Реализация: mq.Publisher.
type Enqueuer interface {
	PublishTrigger(ctx context.Context, source string) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	service ScheduleService
	catalog CatalogService
	trigger Triggerer
	queue   Enqueuer
	logger  *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Service ScheduleService
	Catalog CatalogService
	Trigger Triggerer
	Queue   Enqueuer // опционально, без него async trigger недоступен
	Logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: cfg.Service,
		catalog: cfg.Catalog,
		trigger: cfg.Trigger,
		queue:   cfg.Queue,
		logger:  logger,
	}
}
