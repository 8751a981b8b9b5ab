package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/mq"
	"github.com/shaiso/Herald/internal/publisher"
	"github.com/shaiso/Herald/internal/repo"
	"github.com/shaiso/Herald/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyClaimed — schedule уже захвачен другим вызовом trigger
// или перестал подходить под выборку.
var ErrAlreadyClaimed = errors.New("schedule already claimed")

// TriggerResult — итог обработки одного schedule.
type TriggerResult struct {
	ScheduleID uuid.UUID             `json:"schedule_id"`
	Status     domain.ScheduleStatus `json:"status"`
	RetryCount int                   `json:"retry_count"`
	Exhausted  bool                  `json:"exhausted"`
	Error      string                `json:"error,omitempty"`
}

// FetchSchedulesToProcess возвращает schedules, готовые к обработке:
// due PENDING и FAILED с оставшимися попытками. Не больше BatchSize,
// по возрастанию publish_time.
//
// Перед выборкой просроченные захваты засчитываются как неудачные попытки,
// поэтому schedule, на котором падает процесс, тоже исчерпывает лимит.
func (s *Service) FetchSchedulesToProcess(ctx context.Context) ([]domain.Schedule, error) {
	now := s.clock().UTC()
	expired, err := s.schedules.ExpireClaims(ctx, now, errMsgClaimExpired)
	if err != nil {
		s.logger.Warn("failed to expire stale claims", "error", err)
	}
	if expired > 0 {
		telemetry.ClaimsExpired.Add(float64(expired))
		s.logger.Warn("stale claims expired", "count", expired)
	}

	schedules, err := s.schedules.ListEligible(ctx, now, s.maxRetry, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list eligible schedules: %w", err)
	}
	return schedules, nil
}

// TriggerSchedule выполняет один проход: выбирает готовые schedules и
// обрабатывает каждый независимо.
//
// Ошибка возвращается только если не удалось получить выборку. Отказы
// публикации, сбои захвата и записи попадают в результаты. Уже захваченные
// другим вызовом schedules в результаты не попадают.
//
// Отмена ctx проверяется между schedules: начатая обработка доводится
// до конца.
func (s *Service) TriggerSchedule(ctx context.Context) ([]TriggerResult, error) {
	start := time.Now()
	defer func() { telemetry.TriggerDuration.Observe(time.Since(start).Seconds()) }()

	schedules, err := s.FetchSchedulesToProcess(ctx)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		s.logger.Debug("no schedules ready for processing")
		return []TriggerResult{}, nil
	}

	s.logger.Debug("found schedules to process", "count", len(schedules))

	slots := make([]*TriggerResult, len(schedules))

	if s.concurrency <= 1 {
		for i := range schedules {
			if ctx.Err() != nil {
				break
			}
			slots[i] = s.processOne(ctx, schedules[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for i := range schedules {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				slots[i] = s.processOne(ctx, schedules[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	results := make([]TriggerResult, 0, len(schedules))
	var succeeded, failed int
	for _, r := range slots {
		if r == nil {
			continue
		}
		results = append(results, *r)
		if r.Status == domain.ScheduleStatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}

	s.logger.Info("trigger pass completed",
		"eligible", len(schedules),
		"processed", len(results),
		"succeeded", succeeded,
		"failed", failed,
		"cancelled", ctx.Err() != nil,
	)
	return results, nil
}

// processOne обрабатывает schedule и возвращает nil, если его пропустили.
// Сбой захвата попадает в результат с неизменённым состоянием schedule.
func (s *Service) processOne(ctx context.Context, sched domain.Schedule) *TriggerResult {
	res, err := s.ProcessSchedule(ctx, sched)
	if errors.Is(err, ErrAlreadyClaimed) {
		telemetry.ClaimsSkipped.Inc()
		s.logger.Debug("schedule skipped, claimed elsewhere", "schedule_id", sched.ID)
		return nil
	}
	if err != nil {
		s.logger.Error("failed to claim schedule", "schedule_id", sched.ID, "error", err)
		return &TriggerResult{
			ScheduleID: sched.ID,
			Status:     sched.Status,
			RetryCount: sched.RetryCount,
			Exhausted:  sched.IsExhausted(s.maxRetry),
			Error:      err.Error(),
		}
	}
	return &res
}

// ProcessSchedule захватывает schedule, публикует пост и фиксирует итог.
//
// Ошибка возвращается только если захват не состоялся (ErrAlreadyClaimed или
// сбой БД); в этом случае schedule не изменён. После захвата результат
// всегда возвращается с nil ошибкой, а обработка не зависит от отмены ctx.
func (s *Service) ProcessSchedule(ctx context.Context, sched domain.Schedule) (TriggerResult, error) {
	now := s.clock().UTC()
	if !sched.IsEligible(now, s.maxRetry) {
		return TriggerResult{}, ErrAlreadyClaimed
	}
	token := uuid.New()

	claimed, err := s.schedules.Claim(ctx, sched.ID, now, s.maxRetry, token, now.Add(s.claimLease))
	if errors.Is(err, repo.ErrInvalidState) {
		return TriggerResult{}, ErrAlreadyClaimed
	}
	if err != nil {
		return TriggerResult{}, fmt.Errorf("claim schedule %s: %w", sched.ID, err)
	}

	// Захват получен: дальше работаем без отмены вызывающего.
	ctx = context.WithoutCancel(ctx)
	log := telemetry.WithScheduleID(s.logger, claimed.ID.String())

	startedAt := s.clock().UTC()
	var platform domain.Platform
	var errMsg string

	post, err := s.posts.GetByID(ctx, claimed.PostID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		log.Error("post not found for schedule", "post_id", claimed.PostID)
		errMsg = errMsgPostNotFound
	case err != nil:
		errMsg = fmt.Sprintf("load post: %v", err)
	default:
		platform = post.Platform
		errMsg = s.publish(ctx, publisher.NewRequest(claimed, post))
	}

	status := domain.ScheduleStatusSuccess
	if errMsg != "" {
		status = domain.ScheduleStatusFailed
	}

	final := s.complete(ctx, claimed, repo.Completion{
		ScheduleID: claimed.ID,
		ClaimToken: token,
		Status:     status,
		Error:      errMsg,
		StartedAt:  startedAt,
		FinishedAt: s.clock().UTC(),
	})

	result := TriggerResult{
		ScheduleID: final.ID,
		Status:     final.Status,
		RetryCount: final.RetryCount,
		Exhausted:  final.IsExhausted(s.maxRetry),
		Error:      final.LastError,
	}

	s.record(ctx, final, platform, result)
	return result, nil
}

// publish вызывает publisher с таймаутом и возвращает текст ошибки
// или "" при успехе. Паника publisher'а считается отказом.
func (s *Service) publish(ctx context.Context, req publisher.Request) string {
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		telemetry.PublishDuration.WithLabelValues(string(req.Platform)).Observe(time.Since(start).Seconds())
	}()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("publisher panic: %v", r)
			}
		}()
		done <- s.publisher.Publish(ctx, req)
	}()

	select {
	case err := <-done:
		if err == nil {
			return ""
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return errMsgPublishTimeout
		}
		return err.Error()
	case <-ctx.Done():
		return errMsgPublishTimeout
	}
}

// complete фиксирует итог попытки.
//
// Если захват утерян (например, reschedule во время публикации), итогом
// считается текущее состояние строки. Если запись не удалась, отдельно
// фиксируется FAILED. Возвращает состояние schedule после записи.
func (s *Service) complete(ctx context.Context, claimed *domain.Schedule, c repo.Completion) *domain.Schedule {
	log := telemetry.WithScheduleID(s.logger, c.ScheduleID.String())

	final, err := s.schedules.Complete(ctx, c)
	if err == nil {
		return final
	}

	if errors.Is(err, repo.ErrInvalidState) {
		log.Warn("claim lost before completion, outcome discarded", "status", c.Status)
		if current, gerr := s.schedules.GetByID(ctx, c.ScheduleID); gerr == nil {
			return current
		}
		return fallbackState(claimed, c)
	}

	log.Error("failed to record outcome", "error", err)

	errMsg := c.Error
	if errMsg == "" {
		errMsg = fmt.Sprintf("record outcome: %v", err)
	}
	final, ferr := s.schedules.MarkFailed(ctx, c.ScheduleID, c.ClaimToken, errMsg, s.clock().UTC())
	if ferr != nil {
		log.Error("failed to mark schedule failed", "error", ferr)
		c.Status = domain.ScheduleStatusFailed
		c.Error = errMsg
		return fallbackState(claimed, c)
	}
	return final
}

// fallbackState вычисляет ожидаемое состояние, когда прочитать строку нельзя.
func fallbackState(claimed *domain.Schedule, c repo.Completion) *domain.Schedule {
	sched := *claimed
	if c.Status == domain.ScheduleStatusSuccess {
		sched.MarkSucceeded()
	} else {
		sched.MarkFailed(c.Error)
	}
	return &sched
}

// record обновляет метрики и публикует событие об итоге (best effort).
func (s *Service) record(ctx context.Context, sched *domain.Schedule, platform domain.Platform, res TriggerResult) {
	telemetry.ScheduleOutcomes.WithLabelValues(string(platform), string(res.Status)).Inc()

	log := telemetry.WithScheduleID(s.logger, res.ScheduleID.String())
	switch {
	case res.Status == domain.ScheduleStatusSuccess:
		log.Info("schedule published", "post_id", sched.PostID, "platform", platform)
	case res.Exhausted:
		telemetry.SchedulesExhausted.Inc()
		log.Warn("schedule exhausted retries", "post_id", sched.PostID, "retry_count", res.RetryCount, "error", res.Error)
	default:
		log.Warn("schedule failed", "post_id", sched.PostID, "retry_count", res.RetryCount, "error", res.Error)
	}

	if s.notifier == nil {
		return
	}
	payload := mq.ScheduleOutcomePayload{
		ScheduleID: res.ScheduleID,
		PostID:     sched.PostID,
		Platform:   platform,
		Status:     res.Status,
		RetryCount: res.RetryCount,
		Exhausted:  res.Exhausted,
		Error:      res.Error,
	}
	if err := s.notifier.PublishScheduleOutcome(ctx, payload); err != nil {
		log.Warn("failed to publish schedule outcome", "error", err)
	}
}
