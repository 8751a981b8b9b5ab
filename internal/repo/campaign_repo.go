package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Herald/internal/domain"
)

// CampaignRepo — репозиторий для работы с campaigns.
type CampaignRepo struct {
	pool *pgxpool.Pool
}

// NewCampaignRepo создаёт новый CampaignRepo.
func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

// Create создаёт новую campaign.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO campaigns (id, brand_id, name, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.BrandID,
		c.Name,
		dateValue(c.StartDate),
		dateValue(c.EndDate),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// GetByID возвращает campaign по ID.
func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `
		SELECT id, brand_id, name, start_date, end_date, created_at
		FROM campaigns
		WHERE id = $1
	`
	var c domain.Campaign
	var start, end time.Time

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.BrandID,
		&c.Name,
		&start,
		&end,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign by id: %w", err)
	}

	c.StartDate = civil.DateOf(start)
	c.EndDate = civil.DateOf(end)
	return &c, nil
}

// dateValue переводит календарную дату в значение для колонки DATE.
func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}
