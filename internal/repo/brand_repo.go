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

// BrandRepo — репозиторий для работы с brands.
type BrandRepo struct {
	pool *pgxpool.Pool
}

// NewBrandRepo создаёт новый BrandRepo.
func NewBrandRepo(pool *pgxpool.Pool) *BrandRepo {
	return &BrandRepo{pool: pool}
}

// Create создаёт новый brand.
func (r *BrandRepo) Create(ctx context.Context, brand *domain.Brand) error {
	query := `
		INSERT INTO brands (id, name, timezone, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, brand.ID, brand.Name, brand.Timezone, brand.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

// GetByID возвращает brand по ID.
func (r *BrandRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	query := `
		SELECT id, name, timezone, created_at
		FROM brands
		WHERE id = $1
	`
	var b domain.Brand
	err := r.pool.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Timezone, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brand by id: %w", err)
	}
	return &b, nil
}
