package publisher

import (
	"context"
	"log/slog"
)

// LogPublisher имитирует вызов платформы: пишет запись в лог и
// сообщает об успехе. Используется по умолчанию в разработке.
type LogPublisher struct {
	Logger *slog.Logger
}

// NewLogPublisher создаёт LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{Logger: logger}
}

// Publish логирует публикацию.
func (p *LogPublisher) Publish(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Logger.Info("publish post",
		"platform", req.Platform,
		"post_id", req.PostID,
		"schedule_id", req.ScheduleID,
		"title", req.Title,
		"attempt", req.Attempt,
	)
	return nil
}
