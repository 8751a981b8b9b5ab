package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
)

// BrandWriter — чтение и создание брендов. Реализация: repo.BrandRepo.
type BrandWriter interface {
	BrandStore
	Create(ctx context.Context, brand *domain.Brand) error
}

// CampaignWriter — чтение и создание кампаний. Реализация: repo.CampaignRepo.
type CampaignWriter interface {
	CampaignStore
	Create(ctx context.Context, c *domain.Campaign) error
}

// PostWriter — создание постов. Реализация: repo.PostRepo.
type PostWriter interface {
	Create(ctx context.Context, post *domain.Post) error
}

// CatalogConfig — конфигурация Catalog.
type CatalogConfig struct {
	Brands    BrandWriter
	Campaigns CampaignWriter
	Posts     PostWriter
	Logger    *slog.Logger
	Clock     func() time.Time
}

// Catalog регистрирует бренды, кампании и посты, которые затем
// распределяет Service. Посты обычно приходят от генератора контента.
type Catalog struct {
	brands    BrandWriter
	campaigns CampaignWriter
	posts     PostWriter
	logger    *slog.Logger
	clock     func() time.Time
}

// NewCatalog создаёт Catalog.
func NewCatalog(cfg CatalogConfig) *Catalog {
	c := &Catalog{
		brands:    cfg.Brands,
		campaigns: cfg.Campaigns,
		posts:     cfg.Posts,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

// CreateBrand создаёт бренд. Timezone должен быть IANA-идентификатором.
func (c *Catalog) CreateBrand(ctx context.Context, name, timezone string) (*domain.Brand, error) {
	timezone = strings.TrimSpace(timezone)
	if _, err := loadLocation(timezone); err != nil {
		return nil, err
	}

	brand := &domain.Brand{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Timezone:  timezone,
		CreatedAt: c.clock().UTC(),
	}
	if err := c.brands.Create(ctx, brand); err != nil {
		return nil, fmt.Errorf("create brand: %w", err)
	}

	c.logger.Info("brand created", "brand_id", brand.ID, "timezone", timezone)
	return brand, nil
}

// CreateCampaign создаёт кампанию бренда с окном [start, end].
func (c *Catalog) CreateCampaign(ctx context.Context, brandID uuid.UUID, name string, start, end civil.Date) (*domain.Campaign, error) {
	if !start.IsValid() || !end.IsValid() || end.Before(start) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, start, end)
	}
	if _, err := c.brands.GetByID(ctx, brandID); err != nil {
		return nil, notFound(err, ErrBrandNotFound, "get brand")
	}

	campaign := &domain.Campaign{
		ID:        uuid.New(),
		BrandID:   brandID,
		Name:      strings.TrimSpace(name),
		StartDate: start,
		EndDate:   end,
		CreatedAt: c.clock().UTC(),
	}
	if err := c.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	c.logger.Info("campaign created",
		"campaign_id", campaign.ID,
		"brand_id", brandID,
		"start", start,
		"end", end,
	)
	return campaign, nil
}

// CreatePost создаёт пост кампании для платформы.
func (c *Catalog) CreatePost(ctx context.Context, campaignID uuid.UUID, platform domain.Platform, title, contentRef string) (*domain.Post, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, platform)
	}
	if _, err := c.campaigns.GetByID(ctx, campaignID); err != nil {
		return nil, notFound(err, ErrCampaignNotFound, "get campaign")
	}

	post := &domain.Post{
		ID:         uuid.New(),
		CampaignID: campaignID,
		Platform:   platform,
		Title:      strings.TrimSpace(title),
		ContentRef: strings.TrimSpace(contentRef),
		CreatedAt:  c.clock().UTC(),
	}
	if err := c.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	c.logger.Debug("post created", "post_id", post.ID, "campaign_id", campaignID, "platform", platform)
	return post, nil
}
