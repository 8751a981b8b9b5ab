package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/mq"
	"github.com/shaiso/Herald/internal/publisher"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/telemetry"
)

// Значения по умолчанию для Config.
const (
	DefaultMaxRetryCount  = 3
	DefaultPublishTimeout = 30 * time.Second
	DefaultClaimLease     = 2 * time.Minute
	DefaultBatchSize      = 100
)

// BrandStore — чтение брендов.
type BrandStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error)
}

// CampaignStore — чтение кампаний.
type CampaignStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
}

// PostStore — чтение постов.
type PostStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, platform *domain.Platform) ([]domain.Post, error)
}

// ScheduleStore — хранилище schedules. Реализация: repo.ScheduleRepo.
type ScheduleStore interface {
	CreateBatch(ctx context.Context, schedules []domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	LatestByPost(ctx context.Context, postID uuid.UUID) (*domain.Schedule, error)
	ListByPosts(ctx context.Context, postIDs []uuid.UUID) ([]domain.Schedule, error)
	RescheduleLatest(ctx context.Context, postID uuid.UUID, publishTime, now time.Time) (*domain.Schedule, error)
	ListEligible(ctx context.Context, now time.Time, maxRetry, limit int) ([]domain.Schedule, error)
	ExpireClaims(ctx context.Context, now time.Time, errMsg string) (int, error)
	Claim(ctx context.Context, id uuid.UUID, now time.Time, maxRetry int, token uuid.UUID, until time.Time) (*domain.Schedule, error)
	Complete(ctx context.Context, c repo.Completion) (*domain.Schedule, error)
	MarkFailed(ctx context.Context, id, token uuid.UUID, errMsg string, now time.Time) (*domain.Schedule, error)
	ListAttempts(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleAttempt, error)
}

// Notifier публикует итоги попыток. Реализация: mq.Publisher.
type Notifier interface {
	PublishScheduleOutcome(ctx context.Context, payload mq.ScheduleOutcomePayload) error
}

// Config — конфигурация Service.
type Config struct {
	Brands    BrandStore
	Campaigns CampaignStore
	Posts     PostStore
	Schedules ScheduleStore

	Publisher publisher.Publisher
	Notifier  Notifier // опционально
	Logger    *slog.Logger

	MaxRetryCount   int           // default: 3
	PostingHour     *int          // default: 19 (nil), локальное время бренда
	PublishTimeout  time.Duration // default: 30s
	ClaimLease      time.Duration // default: 2m
	Concurrency     int           // default: 1 (последовательно)
	BatchSize       int           // default: 100
	DefaultPlatform domain.Platform

	// Clock — источник текущего времени (для тестов). Default: time.Now.
	Clock func() time.Time
}

// Service — сервис планирования и доставки публикаций.
type Service struct {
	brands    BrandStore
	campaigns CampaignStore
	posts     PostStore
	schedules ScheduleStore

	publisher publisher.Publisher
	notifier  Notifier
	logger    *slog.Logger

	planner         Planner
	maxRetry        int
	publishTimeout  time.Duration
	claimLease      time.Duration
	concurrency     int
	batchSize       int
	defaultPlatform domain.Platform
	clock           func() time.Time
}

// New создаёт новый Service.
func New(cfg Config) *Service {
	s := &Service{
		brands:          cfg.Brands,
		campaigns:       cfg.Campaigns,
		posts:           cfg.Posts,
		schedules:       cfg.Schedules,
		publisher:       cfg.Publisher,
		notifier:        cfg.Notifier,
		logger:          cfg.Logger,
		planner:         Planner{PostingHour: DefaultPostingHour},
		maxRetry:        cmp.Or(cfg.MaxRetryCount, DefaultMaxRetryCount),
		publishTimeout:  cmp.Or(cfg.PublishTimeout, DefaultPublishTimeout),
		claimLease:      cmp.Or(cfg.ClaimLease, DefaultClaimLease),
		concurrency:     max(cfg.Concurrency, 1),
		batchSize:       cmp.Or(cfg.BatchSize, DefaultBatchSize),
		defaultPlatform: cmp.Or(cfg.DefaultPlatform, domain.PlatformTwitter),
		clock:           cfg.Clock,
	}
	if cfg.PostingHour != nil {
		s.planner.PostingHour = *cfg.PostingHour
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// MaxRetryCount возвращает лимит попыток.
func (s *Service) MaxRetryCount() int {
	return s.maxRetry
}

// ScheduleView — schedule с производным признаком исчерпания попыток.
type ScheduleView struct {
	domain.Schedule
	Exhausted bool `json:"exhausted"`
}

func (s *Service) view(sched *domain.Schedule) ScheduleView {
	return ScheduleView{Schedule: *sched, Exhausted: sched.IsExhausted(s.maxRetry)}
}

func (s *Service) views(schedules []domain.Schedule) []ScheduleView {
	out := make([]ScheduleView, 0, len(schedules))
	for i := range schedules {
		out = append(out, s.view(&schedules[i]))
	}
	return out
}

// CreateCampaignSchedule распределяет посты кампании для платформы по окну
// кампании и создаёт для каждого PENDING schedule. Пустая платформа —
// платформа по умолчанию.
//
// Все schedules создаются в одной транзакции.
func (s *Service) CreateCampaignSchedule(ctx context.Context, campaignID uuid.UUID, platform domain.Platform) ([]ScheduleView, error) {
	if platform == "" {
		platform = s.defaultPlatform
	}
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
	}

	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, notFound(err, ErrCampaignNotFound, "get campaign")
	}

	brand, err := s.brands.GetByID(ctx, campaign.BrandID)
	if err != nil {
		return nil, notFound(err, ErrBrandNotFound, "get brand")
	}

	posts, err := s.posts.ListByCampaign(ctx, campaignID, &platform)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("%w: campaign %s, platform %s", ErrNoPosts, campaignID, platform)
	}
	slices.SortStableFunc(posts, comparePosts)

	times, err := s.planner.Distribute(len(posts), campaign.StartDate, campaign.EndDate, brand.Timezone)
	if err != nil {
		return nil, fmt.Errorf("distribute campaign %s: %w", campaignID, err)
	}

	now := s.clock().UTC()
	schedules := make([]domain.Schedule, len(posts))
	for i := range posts {
		schedules[i] = domain.NewSchedule(posts[i].ID, times[i])
		schedules[i].CreatedAt = now
		schedules[i].UpdatedAt = now
	}

	if err := s.schedules.CreateBatch(ctx, schedules); err != nil {
		return nil, fmt.Errorf("create schedules: %w", err)
	}

	telemetry.SchedulesCreated.Add(float64(len(schedules)))
	s.logger.Info("campaign scheduled",
		"campaign_id", campaignID,
		"platform", platform,
		"timezone", brand.Timezone,
		"count", len(schedules),
		"first", times[0],
		"last", times[len(times)-1],
	)

	return s.views(schedules), nil
}

// UpdatePostSchedule переносит последний schedule поста на timestamp.
//
// Цифры wall-clock из timestamp интерпретируются в timezone; пустой timezone —
// timezone бренда поста. Смещение в timestamp игнорируется.
// Schedule сбрасывается в PENDING с retry_count = 0 из любого статуса.
func (s *Service) UpdatePostSchedule(ctx context.Context, postID uuid.UUID, timestamp, timezone string) (*ScheduleView, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, ErrPostNotFound, "get post")
	}

	if timezone == "" {
		timezone, err = s.brandTimezone(ctx, post)
		if err != nil {
			return nil, err
		}
	}

	loc, err := loadLocation(timezone)
	if err != nil {
		return nil, err
	}
	wall, err := ParseWallClock(timestamp)
	if err != nil {
		return nil, err
	}
	publishTime := Localize(wall, loc).UTC()

	sched, err := s.schedules.RescheduleLatest(ctx, postID, publishTime, s.clock().UTC())
	if err != nil {
		return nil, notFound(err, ErrScheduleNotFound, "reschedule")
	}

	telemetry.SchedulesRescheduled.Inc()
	s.logger.Info("post rescheduled",
		"post_id", postID,
		"schedule_id", sched.ID,
		"publish_time", publishTime,
		"timezone", timezone,
	)

	v := s.view(sched)
	return &v, nil
}

// brandTimezone находит timezone бренда через кампанию поста.
func (s *Service) brandTimezone(ctx context.Context, post *domain.Post) (string, error) {
	campaign, err := s.campaigns.GetByID(ctx, post.CampaignID)
	if err != nil {
		return "", notFound(err, ErrCampaignNotFound, "get campaign")
	}
	brand, err := s.brands.GetByID(ctx, campaign.BrandID)
	if err != nil {
		return "", notFound(err, ErrBrandNotFound, "get brand")
	}
	return brand.Timezone, nil
}

// GetCampaignSchedules возвращает все schedules всех постов кампании.
// ErrNoPosts, если у кампании нет постов.
func (s *Service) GetCampaignSchedules(ctx context.Context, campaignID uuid.UUID) ([]ScheduleView, error) {
	posts, err := s.posts.ListByCampaign(ctx, campaignID, nil)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("%w: campaign %s", ErrNoPosts, campaignID)
	}

	ids := make([]uuid.UUID, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}

	schedules, err := s.schedules.ListByPosts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return s.views(schedules), nil
}

// GetPostSchedule возвращает последний schedule поста.
func (s *Service) GetPostSchedule(ctx context.Context, postID uuid.UUID) (*ScheduleView, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, notFound(err, ErrPostNotFound, "get post")
	}

	sched, err := s.schedules.LatestByPost(ctx, postID)
	if err != nil {
		return nil, notFound(err, ErrScheduleNotFound, "get latest schedule")
	}

	v := s.view(sched)
	return &v, nil
}

// ListScheduleAttempts возвращает историю попыток публикации schedule.
func (s *Service) ListScheduleAttempts(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleAttempt, error) {
	if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
		return nil, notFound(err, ErrScheduleNotFound, "get schedule")
	}

	attempts, err := s.schedules.ListAttempts(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// notFound переводит repo.ErrNotFound в sentinel сервиса,
// остальные ошибки оборачивает с контекстом op.
func notFound(err, sentinel error, op string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

// comparePosts — стабильный порядок постов: created_at, затем id.
func comparePosts(a, b domain.Post) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return slices.Compare(a.ID[:], b.ID[:])
}
