package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Herald/internal/domain"
)

const scheduleColumns = `id, post_id, publish_time, status, retry_count, last_error,
		       claim_token, claimed_until, created_at, updated_at`

// ScheduleRepo — репозиторий для работы с schedules и schedule_attempts.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Completion — итог попытки публикации захваченного schedule.
type Completion struct {
	ScheduleID uuid.UUID
	ClaimToken uuid.UUID

	// Status — SUCCESS или FAILED. FAILED увеличивает retry_count.
	Status domain.ScheduleStatus
	Error  string

	StartedAt  time.Time
	FinishedAt time.Time
}

// CreateBatch создаёт schedules в одной транзакции:
// либо создаются все, либо ни одного.
func (r *ScheduleRepo) CreateBatch(ctx context.Context, schedules []domain.Schedule) error {
	query := `
		INSERT INTO schedules (id, post_id, publish_time, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range schedules {
			s := &schedules[i]
			_, err := tx.Exec(ctx, query,
				s.ID,
				s.PostID,
				s.PublishTime.UTC(),
				s.Status,
				s.RetryCount,
				s.CreatedAt,
				s.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert schedule %s: %w", s.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create schedules: %w", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// LatestByPost возвращает последний (по publish_time) schedule поста.
func (r *ScheduleRepo) LatestByPost(ctx context.Context, postID uuid.UUID) (*domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE post_id = $1
		ORDER BY publish_time DESC
		LIMIT 1
	`
	return scanSchedule(r.pool.QueryRow(ctx, query, postID))
}

// ListByPosts возвращает все schedules указанных постов.
func (r *ScheduleRepo) ListByPosts(ctx context.Context, postIDs []uuid.UUID) ([]domain.Schedule, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE post_id = ANY($1)
		ORDER BY publish_time ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, postIDs)
	if err != nil {
		return nil, fmt.Errorf("list schedules by posts: %w", err)
	}
	return collectSchedules(rows)
}

// RescheduleLatest перезаписывает последний schedule поста:
// новое время, PENDING, retry_count = 0, захват и ошибка сбрасываются.
// Возвращает ErrNotFound, если у поста нет schedules.
func (r *ScheduleRepo) RescheduleLatest(ctx context.Context, postID uuid.UUID, publishTime, now time.Time) (*domain.Schedule, error) {
	query := `
		UPDATE schedules
		SET publish_time = $2, status = 'PENDING', retry_count = 0, last_error = NULL,
		    claim_token = NULL, claimed_until = NULL, updated_at = $3
		WHERE id = (
			SELECT id FROM schedules
			WHERE post_id = $1
			ORDER BY publish_time DESC
			LIMIT 1
		)
		RETURNING ` + scheduleColumns
	return scanSchedule(r.pool.QueryRow(ctx, query, postID, publishTime.UTC(), now.UTC()))
}

// ListEligible возвращает schedules, готовые к обработке:
//   - PENDING с publish_time <= now
//   - FAILED с retry_count < maxRetry
//
// Предикат совпадает с domain.Schedule.IsEligible.
func (r *ScheduleRepo) ListEligible(ctx context.Context, now time.Time, maxRetry, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE (status = 'PENDING' AND publish_time <= $1)
		   OR (status = 'FAILED' AND retry_count < $2)
		ORDER BY publish_time ASC, id ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, now.UTC(), maxRetry, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligible schedules: %w", err)
	}
	return collectSchedules(rows)
}

// Claim атомарно захватывает schedule для публикации.
//
// UPDATE повторно проверяет предикат выборки, поэтому из двух конкурентных
// вызовов trigger захват получит только один. Второй получит ErrInvalidState.
func (r *ScheduleRepo) Claim(ctx context.Context, id uuid.UUID, now time.Time, maxRetry int, token uuid.UUID, until time.Time) (*domain.Schedule, error) {
	query := `
		UPDATE schedules
		SET status = 'PROCESSING', claim_token = $4, claimed_until = $5, updated_at = $2
		WHERE id = $1
		  AND (
		        (status = 'PENDING' AND publish_time <= $2)
		     OR (status = 'FAILED' AND retry_count < $3)
		  )
		RETURNING ` + scheduleColumns
	sched, err := scanSchedule(r.pool.QueryRow(ctx, query, id, now.UTC(), maxRetry, token, until.UTC()))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidState
	}
	return sched, err
}

// ExpireClaims переводит PROCESSING с просроченным захватом в FAILED
// (retry_count + 1) и записывает брошенную попытку в schedule_attempts.
// Возвращает число просроченных захватов.
func (r *ScheduleRepo) ExpireClaims(ctx context.Context, now time.Time, errMsg string) (int, error) {
	query := `
		WITH expired AS (
			UPDATE schedules
			SET status = 'FAILED', retry_count = retry_count + 1, last_error = $2,
			    claim_token = NULL, claimed_until = NULL, updated_at = $1
			WHERE status = 'PROCESSING' AND (claimed_until IS NULL OR claimed_until < $1)
			RETURNING id
		)
		INSERT INTO schedule_attempts (id, schedule_id, attempt, status, error, started_at, finished_at)
		SELECT gen_random_uuid(), e.id,
		       COALESCE((SELECT MAX(a.attempt) FROM schedule_attempts a WHERE a.schedule_id = e.id), 0) + 1,
		       'FAILED', $2, $1, $1
		FROM expired e
	`
	tag, err := r.pool.Exec(ctx, query, now.UTC(), errMsg)
	if err != nil {
		return 0, fmt.Errorf("expire claims: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Complete фиксирует итог попытки в одной транзакции:
// смена статуса (только владельцем захвата) + запись в schedule_attempts.
// Если захват утерян, транзакция откатывается и возвращается ErrInvalidState.
func (r *ScheduleRepo) Complete(ctx context.Context, c Completion) (*domain.Schedule, error) {
	updateQuery := `
		UPDATE schedules
		SET status = $3::text,
		    retry_count = retry_count + CASE WHEN $3::text = 'FAILED' THEN 1 ELSE 0 END,
		    last_error = $4,
		    claim_token = NULL, claimed_until = NULL, updated_at = $5
		WHERE id = $1 AND claim_token = $2 AND status = 'PROCESSING'
		RETURNING ` + scheduleColumns

	attemptQuery := `
		INSERT INTO schedule_attempts (id, schedule_id, attempt, status, error, started_at, finished_at)
		SELECT $1, $2, COALESCE(MAX(attempt), 0) + 1, $3, $4, $5, $6
		FROM schedule_attempts
		WHERE schedule_id = $2
	`

	var result *domain.Schedule
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		sched, err := scanSchedule(tx.QueryRow(ctx, updateQuery,
			c.ScheduleID,
			c.ClaimToken,
			c.Status,
			nullString(c.Error),
			c.FinishedAt.UTC(),
		))
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidState
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, attemptQuery,
			uuid.New(),
			c.ScheduleID,
			c.Status,
			nullString(c.Error),
			c.StartedAt.UTC(),
			c.FinishedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}

		result = sched
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("complete schedule: %w", err)
	}
	return result, nil
}

// MarkFailed — корректирующая запись FAILED вне транзакции Complete.
// Используется, когда Complete не удалось зафиксировать.
func (r *ScheduleRepo) MarkFailed(ctx context.Context, id, token uuid.UUID, errMsg string, now time.Time) (*domain.Schedule, error) {
	query := `
		UPDATE schedules
		SET status = 'FAILED', retry_count = retry_count + 1, last_error = $3,
		    claim_token = NULL, claimed_until = NULL, updated_at = $4
		WHERE id = $1 AND claim_token = $2 AND status = 'PROCESSING'
		RETURNING ` + scheduleColumns
	sched, err := scanSchedule(r.pool.QueryRow(ctx, query, id, token, nullString(errMsg), now.UTC()))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidState
	}
	return sched, err
}

// ListAttempts возвращает историю попыток schedule.
func (r *ScheduleRepo) ListAttempts(ctx context.Context, scheduleID uuid.UUID) ([]domain.ScheduleAttempt, error) {
	query := `
		SELECT id, schedule_id, attempt, status, error, started_at, finished_at
		FROM schedule_attempts
		WHERE schedule_id = $1
		ORDER BY attempt ASC
	`
	rows, err := r.pool.Query(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.ScheduleAttempt
	for rows.Next() {
		var a domain.ScheduleAttempt
		var status string
		var attemptErr *string

		if err := rows.Scan(&a.ID, &a.ScheduleID, &a.Attempt, &status, &attemptErr, &a.StartedAt, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Status = domain.ScheduleStatus(status)
		if attemptErr != nil {
			a.Error = *attemptErr
		}
		a.StartedAt = a.StartedAt.UTC()
		a.FinishedAt = a.FinishedAt.UTC()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// --- Helpers ---

// scanSchedule сканирует одну строку в Schedule.
func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var status string
	var lastError *string

	err := row.Scan(
		&s.ID,
		&s.PostID,
		&s.PublishTime,
		&status,
		&s.RetryCount,
		&lastError,
		&s.ClaimToken,
		&s.ClaimedUntil,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	s.Status = domain.ScheduleStatus(status)
	s.PublishTime = s.PublishTime.UTC()
	if lastError != nil {
		s.LastError = *lastError
	}
	if s.ClaimedUntil != nil {
		until := s.ClaimedUntil.UTC()
		s.ClaimedUntil = &until
	}
	return &s, nil
}

// collectSchedules читает все строки и закрывает rows.
func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
