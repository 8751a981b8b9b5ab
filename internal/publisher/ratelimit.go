package publisher

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited ограничивает частоту вызовов вложенного Publisher.
// Ожидание лимита учитывает дедлайн ctx.
type RateLimited struct {
	next    Publisher
	limiter *rate.Limiter
}

// NewRateLimited оборачивает next. perSecond <= 0 — без ограничения,
// возвращается сам next.
func NewRateLimited(next Publisher, perSecond float64) Publisher {
	if perSecond <= 0 {
		return next
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Publish ждёт разрешения лимитера и вызывает вложенный Publisher.
func (p *RateLimited) Publish(ctx context.Context, req Request) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return p.next.Publish(ctx, req)
}
