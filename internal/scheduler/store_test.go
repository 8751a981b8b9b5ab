package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/repo"
)

// memDB — in-memory хранилище с семантикой repo: условные обновления
// возвращают repo.ErrInvalidState, отсутствие строки — repo.ErrNotFound.
type memDB struct {
	mu        sync.Mutex
	brands    map[uuid.UUID]domain.Brand
	campaigns map[uuid.UUID]domain.Campaign
	posts     map[uuid.UUID]domain.Post
	schedules map[uuid.UUID]*domain.Schedule
	attempts  map[uuid.UUID][]domain.ScheduleAttempt

	// completeErr — принудительная ошибка Complete (имитация сбоя транзакции).
	completeErr error
	// createErr — принудительная ошибка CreateBatch.
	createErr error
	// listErr — принудительная ошибка ListEligible.
	listErr error
	// claimErr — принудительная ошибка Claim.
	claimErr error
}

func newMemDB() *memDB {
	return &memDB{
		brands:    make(map[uuid.UUID]domain.Brand),
		campaigns: make(map[uuid.UUID]domain.Campaign),
		posts:     make(map[uuid.UUID]domain.Post),
		schedules: make(map[uuid.UUID]*domain.Schedule),
		attempts:  make(map[uuid.UUID][]domain.ScheduleAttempt),
	}
}

func (db *memDB) addSchedule(s domain.Schedule) domain.Schedule {
	db.mu.Lock()
	defer db.mu.Unlock()
	stored := s
	db.schedules[s.ID] = &stored
	return s
}

func (db *memDB) schedule(id uuid.UUID) domain.Schedule {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.schedules[id]
}

func (db *memDB) deletePost(id uuid.UUID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.posts, id)
}

// --- stores ---

type memBrands struct{ db *memDB }

func (s memBrands) GetByID(_ context.Context, id uuid.UUID) (*domain.Brand, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.brands[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &b, nil
}

func (s memBrands) Create(_ context.Context, b *domain.Brand) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.brands[b.ID] = *b
	return nil
}

type memCampaigns struct{ db *memDB }

func (s memCampaigns) Create(_ context.Context, c *domain.Campaign) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.campaigns[c.ID] = *c
	return nil
}

func (s memCampaigns) GetByID(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.campaigns[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

type memPosts struct{ db *memDB }

func (s memPosts) Create(_ context.Context, p *domain.Post) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.posts[p.ID] = *p
	return nil
}

func (s memPosts) GetByID(_ context.Context, id uuid.UUID) (*domain.Post, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.posts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &p, nil
}

func (s memPosts) ListByCampaign(_ context.Context, campaignID uuid.UUID, platform *domain.Platform) ([]domain.Post, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Post
	for _, p := range s.db.posts {
		if p.CampaignID != campaignID {
			continue
		}
		if platform != nil && p.Platform != *platform {
			continue
		}
		out = append(out, p)
	}
	// Map не упорядочен: порядок задаёт сервис.
	return out, nil
}

type memSchedules struct{ db *memDB }

func (s memSchedules) CreateBatch(_ context.Context, schedules []domain.Schedule) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.createErr != nil {
		return s.db.createErr
	}
	for _, sc := range schedules {
		s.db.schedules[sc.ID] = &sc
	}
	return nil
}

func (s memSchedules) GetByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sc, ok := s.db.schedules[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s memSchedules) latest(postID uuid.UUID) *domain.Schedule {
	var latest *domain.Schedule
	for _, sc := range s.db.schedules {
		if sc.PostID == postID && (latest == nil || sc.PublishTime.After(latest.PublishTime)) {
			latest = sc
		}
	}
	return latest
}

func (s memSchedules) LatestByPost(_ context.Context, postID uuid.UUID) (*domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	latest := s.latest(postID)
	if latest == nil {
		return nil, repo.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s memSchedules) ListByPosts(_ context.Context, postIDs []uuid.UUID) ([]domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.Schedule
	for _, sc := range s.db.schedules {
		if slices.Contains(postIDs, sc.PostID) {
			out = append(out, *sc)
		}
	}
	sortSchedules(out)
	return out, nil
}

func (s memSchedules) RescheduleLatest(_ context.Context, postID uuid.UUID, publishTime, _ time.Time) (*domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	latest := s.latest(postID)
	if latest == nil {
		return nil, repo.ErrNotFound
	}
	latest.Reschedule(publishTime)
	cp := *latest
	return &cp, nil
}

func (s memSchedules) ListEligible(_ context.Context, now time.Time, maxRetry, limit int) ([]domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.listErr != nil {
		return nil, s.db.listErr
	}
	var out []domain.Schedule
	for _, sc := range s.db.schedules {
		if sc.IsEligible(now, maxRetry) {
			out = append(out, *sc)
		}
	}
	sortSchedules(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memSchedules) ExpireClaims(_ context.Context, now time.Time, errMsg string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, sc := range s.db.schedules {
		if !sc.IsClaimExpired(now) {
			continue
		}
		sc.ExpireClaim(errMsg)
		s.db.attempts[sc.ID] = append(s.db.attempts[sc.ID], domain.ScheduleAttempt{
			ID:         uuid.New(),
			ScheduleID: sc.ID,
			Attempt:    len(s.db.attempts[sc.ID]) + 1,
			Status:     domain.ScheduleStatusFailed,
			Error:      errMsg,
			StartedAt:  now,
			FinishedAt: now,
		})
		n++
	}
	return n, nil
}

func (s memSchedules) Claim(_ context.Context, id uuid.UUID, now time.Time, maxRetry int, token uuid.UUID, until time.Time) (*domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.claimErr != nil {
		return nil, s.db.claimErr
	}
	sc, ok := s.db.schedules[id]
	if !ok || !sc.IsEligible(now, maxRetry) {
		return nil, repo.ErrInvalidState
	}
	sc.Claim(token, until)
	cp := *sc
	return &cp, nil
}

func (s memSchedules) owned(id, token uuid.UUID) (*domain.Schedule, error) {
	sc, ok := s.db.schedules[id]
	if !ok || sc.Status != domain.ScheduleStatusProcessing || sc.ClaimToken == nil || *sc.ClaimToken != token {
		return nil, repo.ErrInvalidState
	}
	return sc, nil
}

func (s memSchedules) Complete(_ context.Context, c repo.Completion) (*domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.completeErr != nil {
		return nil, s.db.completeErr
	}
	sc, err := s.owned(c.ScheduleID, c.ClaimToken)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.ScheduleStatusSuccess {
		sc.MarkSucceeded()
	} else {
		sc.MarkFailed(c.Error)
	}
	s.db.attempts[sc.ID] = append(s.db.attempts[sc.ID], domain.ScheduleAttempt{
		ID:         uuid.New(),
		ScheduleID: sc.ID,
		Attempt:    len(s.db.attempts[sc.ID]) + 1,
		Status:     c.Status,
		Error:      c.Error,
		StartedAt:  c.StartedAt,
		FinishedAt: c.FinishedAt,
	})
	cp := *sc
	return &cp, nil
}

func (s memSchedules) MarkFailed(_ context.Context, id, token uuid.UUID, errMsg string, _ time.Time) (*domain.Schedule, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	sc, err := s.owned(id, token)
	if err != nil {
		return nil, err
	}
	sc.MarkFailed(errMsg)
	cp := *sc
	return &cp, nil
}

func (s memSchedules) ListAttempts(_ context.Context, scheduleID uuid.UUID) ([]domain.ScheduleAttempt, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return slices.Clone(s.db.attempts[scheduleID]), nil
}

func sortSchedules(out []domain.Schedule) {
	slices.SortFunc(out, func(a, b domain.Schedule) int {
		if c := a.PublishTime.Compare(b.PublishTime); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
}

// errStore — ошибка «инфраструктуры» для тестов.
var errStore = errors.New("connection reset")
