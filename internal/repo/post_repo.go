package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Herald/internal/domain"
)

// PostRepo — репозиторий для работы с posts.
type PostRepo struct {
	pool *pgxpool.Pool
}

// NewPostRepo создаёт новый PostRepo.
func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

// Create создаёт новый post.
func (r *PostRepo) Create(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (id, campaign_id, platform, title, content_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		post.ID,
		post.CampaignID,
		post.Platform,
		post.Title,
		post.ContentRef,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetByID возвращает post по ID.
func (r *PostRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	query := `
		SELECT id, campaign_id, platform, title, content_ref, created_at
		FROM posts
		WHERE id = $1
	`
	return r.scanPost(r.pool.QueryRow(ctx, query, id))
}

// ListByCampaign возвращает посты кампании в стабильном порядке
// (created_at, id). Если platform задан, выборка ограничивается им.
func (r *PostRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID, platform *domain.Platform) ([]domain.Post, error) {
	query := `
		SELECT id, campaign_id, platform, title, content_ref, created_at
		FROM posts
		WHERE campaign_id = $1
		  AND ($2::text IS NULL OR platform = $2)
		ORDER BY created_at ASC, id ASC
	`
	var platformArg *string
	if platform != nil {
		s := platform.String()
		platformArg = &s
	}

	rows, err := r.pool.Query(ctx, query, campaignID, platformArg)
	if err != nil {
		return nil, fmt.Errorf("list posts by campaign: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := r.scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

// scanPost сканирует одну строку в Post.
// pgx.Rows удовлетворяет pgx.Row, поэтому helper общий для QueryRow и Query.
func (r *PostRepo) scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	var platform string

	err := row.Scan(
		&p.ID,
		&p.CampaignID,
		&platform,
		&p.Title,
		&p.ContentRef,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}

	p.Platform = domain.Platform(platform)
	return &p, nil
}
