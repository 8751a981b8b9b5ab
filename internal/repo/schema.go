package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL — схема хранилища. Все выражения идемпотентны.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS brands (
		id          UUID PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		timezone    TEXT NOT NULL DEFAULT 'UTC',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id          UUID PRIMARY KEY,
		brand_id    UUID NOT NULL REFERENCES brands(id),
		name        TEXT NOT NULL DEFAULT '',
		start_date  DATE NOT NULL,
		end_date    DATE NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (start_date <= end_date)
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id           UUID PRIMARY KEY,
		campaign_id  UUID NOT NULL REFERENCES campaigns(id),
		platform     TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		content_ref  TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS posts_campaign_platform_idx ON posts (campaign_id, platform)`,
	`CREATE TABLE IF NOT EXISTS schedules (
		id             UUID PRIMARY KEY,
		post_id        UUID NOT NULL REFERENCES posts(id),
		publish_time   TIMESTAMPTZ NOT NULL,
		status         TEXT NOT NULL DEFAULT 'PENDING',
		retry_count    INT NOT NULL DEFAULT 0 CHECK (retry_count >= 0),
		last_error     TEXT,
		claim_token    UUID,
		claimed_until  TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS schedules_post_publish_idx ON schedules (post_id, publish_time DESC)`,
	`CREATE INDEX IF NOT EXISTS schedules_status_publish_idx ON schedules (status, publish_time)`,
	`CREATE TABLE IF NOT EXISTS schedule_attempts (
		id           UUID PRIMARY KEY,
		schedule_id  UUID NOT NULL REFERENCES schedules(id),
		attempt      INT NOT NULL,
		status       TEXT NOT NULL,
		error        TEXT,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (schedule_id, attempt)
	)`,
}

// EnsureSchema создаёт таблицы и индексы, если их нет.
// Безопасно вызывать при каждом старте сервиса.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for i, ddl := range schemaDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
