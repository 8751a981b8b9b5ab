package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
)

// Ошибки публикации.
var (
	// ErrUnknownPlatform — для платформы нет publisher'а и fallback не задан.
	ErrUnknownPlatform = errors.New("no publisher for platform")

	// ErrRejected — платформа отклонила публикацию.
	ErrRejected = errors.New("publish rejected")
)

// Request — данные для публикации одного поста.
type Request struct {
	ScheduleID  uuid.UUID       `json:"schedule_id"`
	PostID      uuid.UUID       `json:"post_id"`
	CampaignID  uuid.UUID       `json:"campaign_id"`
	Platform    domain.Platform `json:"platform"`
	Title       string          `json:"title"`
	ContentRef  string          `json:"content_ref"`
	PublishTime time.Time       `json:"publish_time"`

	// Attempt — номер попытки, начиная с 1.
	Attempt int `json:"attempt"`
}

// NewRequest собирает Request из schedule и поста.
func NewRequest(sched *domain.Schedule, post *domain.Post) Request {
	return Request{
		ScheduleID:  sched.ID,
		PostID:      post.ID,
		CampaignID:  post.CampaignID,
		Platform:    post.Platform,
		Title:       post.Title,
		ContentRef:  post.ContentRef,
		PublishTime: sched.PublishTime,
		Attempt:     sched.RetryCount + 1,
	}
}

// Publisher публикует пост на платформе.
type Publisher interface {
	Publish(ctx context.Context, req Request) error
}

// Func — адаптер обычной функции к Publisher.
type Func func(ctx context.Context, req Request) error

// Publish вызывает f(ctx, req).
func (f Func) Publish(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Registry — реестр publisher'ов по платформе.
//
// Сам является Publisher: выбирает реализацию по req.Platform,
// при отсутствии — fallback.
type Registry struct {
	mu         sync.RWMutex
	publishers map[domain.Platform]Publisher
	fallback   Publisher
}

// NewRegistry создаёт реестр. fallback может быть nil.
func NewRegistry(fallback Publisher) *Registry {
	return &Registry{
		publishers: make(map[domain.Platform]Publisher),
		fallback:   fallback,
	}
}

// Register добавляет publisher для платформы.
func (r *Registry) Register(platform domain.Platform, p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[platform] = p
}

// Get возвращает publisher для платформы.
func (r *Registry) Get(platform domain.Platform) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.publishers[platform]; ok {
		return p, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
}

// Publish публикует через publisher платформы.
func (r *Registry) Publish(ctx context.Context, req Request) error {
	p, err := r.Get(req.Platform)
	if err != nil {
		return err
	}
	return p.Publish(ctx, req)
}

// Режимы доставки.
const (
	ModeLog     = "log"
	ModeWebhook = "webhook"
)

// FromMode собирает publisher по режиму: реализация режима становится
// fallback реестра, поверх — ограничение частоты.
func FromMode(mode, webhookURL string, perSecond float64, logger *slog.Logger) (Publisher, error) {
	var base Publisher
	switch mode {
	case ModeLog, "":
		base = NewLogPublisher(logger)
	case ModeWebhook:
		if webhookURL == "" {
			return nil, errors.New("webhook publisher: url is required")
		}
		base = NewWebhook(webhookURL)
	default:
		return nil, fmt.Errorf("unknown publisher mode %q", mode)
	}
	return NewRateLimited(NewRegistry(base), perSecond), nil
}
