package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/mq"
	"github.com/shaiso/Herald/internal/publisher"
	"github.com/shaiso/Herald/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

// --- doubles ---

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, req publisher.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) PublishScheduleOutcome(ctx context.Context, payload mq.ScheduleOutcomePayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// --- fixture ---

type fixture struct {
	db       *memDB
	svc      *Service
	brand    domain.Brand
	campaign domain.Campaign
	posts    []domain.Post // TWITTER, в порядке создания
	insta    domain.Post
}

// newFixture: бренд в Лос-Анджелесе, кампания 2026-01-01..03,
// три поста TWITTER и один INSTAGRAM.
func newFixture(t *testing.T, pub publisher.Publisher, opts ...func(*Config)) *fixture {
	t.Helper()

	db := newMemDB()
	f := &fixture{db: db}

	f.brand = domain.Brand{ID: uuid.New(), Name: "Acme", Timezone: "America/Los_Angeles"}
	f.campaign = domain.Campaign{
		ID:        uuid.New(),
		BrandID:   f.brand.ID,
		Name:      "Winter launch",
		StartDate: civil.Date{Year: 2026, Month: 1, Day: 1},
		EndDate:   civil.Date{Year: 2026, Month: 1, Day: 3},
	}
	db.brands[f.brand.ID] = f.brand
	db.campaigns[f.campaign.ID] = f.campaign

	base := time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		p := domain.Post{
			ID:         uuid.New(),
			CampaignID: f.campaign.ID,
			Platform:   domain.PlatformTwitter,
			Title:      fmt.Sprintf("post-%d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		f.posts = append(f.posts, p)
		db.posts[p.ID] = p
	}
	f.insta = domain.Post{
		ID:         uuid.New(),
		CampaignID: f.campaign.ID,
		Platform:   domain.PlatformInstagram,
		Title:      "insta",
		CreatedAt:  base,
	}
	db.posts[f.insta.ID] = f.insta

	cfg := Config{
		Brands:    memBrands{db},
		Campaigns: memCampaigns{db},
		Posts:     memPosts{db},
		Schedules: memSchedules{db},
		Publisher: pub,
		Logger:    telemetry.Discard(),
		Clock:     func() time.Time { return testNow },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	f.svc = New(cfg)
	return f
}

// addSchedule добавляет schedule поста с заданным состоянием.
func (f *fixture) addSchedule(postID uuid.UUID, publishTime time.Time, mutate ...func(*domain.Schedule)) domain.Schedule {
	s := domain.NewSchedule(postID, publishTime)
	for _, m := range mutate {
		m(&s)
	}
	return f.db.addSchedule(s)
}

func due(f *fixture, postID uuid.UUID) domain.Schedule {
	return f.addSchedule(postID, testNow.Add(-time.Hour))
}

func succeed() publisher.Publisher {
	return publisher.Func(func(context.Context, publisher.Request) error { return nil })
}

// --- CreateCampaignSchedule ---

func TestCreateCampaignSchedule_LosAngeles(t *testing.T) {
	f := newFixture(t, succeed())

	views, err := f.svc.CreateCampaignSchedule(context.Background(), f.campaign.ID, domain.PlatformTwitter)
	require.NoError(t, err)
	require.Len(t, views, 3)

	want := []time.Time{
		time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 3, 3, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 4, 3, 0, 0, 0, time.UTC),
	}
	for i, v := range views {
		assert.Equal(t, f.posts[i].ID, v.PostID, "post order at %d", i)
		assert.Equal(t, want[i], v.PublishTime)
		assert.Equal(t, domain.ScheduleStatusPending, v.Status)
		assert.Zero(t, v.RetryCount)
		assert.False(t, v.Exhausted)

		stored := f.db.schedule(v.ID)
		assert.Equal(t, want[i], stored.PublishTime)
	}
}

func TestCreateCampaignSchedule_DefaultPlatform(t *testing.T) {
	f := newFixture(t, succeed())

	views, err := f.svc.CreateCampaignSchedule(context.Background(), f.campaign.ID, "")

	require.NoError(t, err)
	assert.Len(t, views, 3)
}

func TestCreateCampaignSchedule_PlatformFilter(t *testing.T) {
	f := newFixture(t, succeed())

	views, err := f.svc.CreateCampaignSchedule(context.Background(), f.campaign.ID, domain.PlatformInstagram)

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, f.insta.ID, views[0].PostID)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), views[0].PublishTime)
}

func TestCreateCampaignSchedule_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		campaign func(f *fixture) uuid.UUID
		platform domain.Platform
		target   error
		category error
	}{
		{
			name:     "unknown campaign",
			campaign: func(*fixture) uuid.UUID { return uuid.New() },
			platform: domain.PlatformTwitter,
			target:   ErrCampaignNotFound,
			category: ErrNotFound,
		},
		{
			name:     "no posts for platform",
			platform: domain.PlatformTikTok,
			target:   ErrNoPosts,
			category: ErrNotFound,
		},
		{
			name:     "unknown platform",
			platform: domain.Platform("MYSPACE"),
			target:   ErrInvalidPlatform,
			category: ErrInvalidInput,
		},
		{
			name:     "brand missing",
			setup:    func(f *fixture) { delete(f.db.brands, f.brand.ID) },
			platform: domain.PlatformTwitter,
			target:   ErrBrandNotFound,
			category: ErrNotFound,
		},
		{
			name: "brand timezone invalid",
			setup: func(f *fixture) {
				b := f.db.brands[f.brand.ID]
				b.Timezone = "Nowhere/Land"
				f.db.brands[f.brand.ID] = b
			},
			platform: domain.PlatformTwitter,
			target:   ErrInvalidTimezone,
			category: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, succeed())
			if tt.setup != nil {
				tt.setup(f)
			}
			id := f.campaign.ID
			if tt.campaign != nil {
				id = tt.campaign(f)
			}

			views, err := f.svc.CreateCampaignSchedule(context.Background(), id, tt.platform)

			assert.Nil(t, views)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, tt.category)
			assert.Empty(t, f.db.schedules, "nothing must be persisted")
		})
	}
}

func TestCreateCampaignSchedule_StoreFailure(t *testing.T) {
	f := newFixture(t, succeed())
	f.db.createErr = errStore

	_, err := f.svc.CreateCampaignSchedule(context.Background(), f.campaign.ID, domain.PlatformTwitter)

	assert.ErrorIs(t, err, errStore)
	assert.NotErrorIs(t, err, ErrNotFound)
}

// --- UpdatePostSchedule ---

func TestUpdatePostSchedule_FromSuccess(t *testing.T) {
	f := newFixture(t, succeed())
	post := f.posts[0]
	sched := f.addSchedule(post.ID, testNow.Add(-48*time.Hour), func(s *domain.Schedule) {
		s.MarkSucceeded()
	})

	v, err := f.svc.UpdatePostSchedule(context.Background(), post.ID, "2026-02-01T10:00:00", "")
	require.NoError(t, err)

	// Brand timezone: 10:00 PST = 18:00 UTC.
	want := time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, sched.ID, v.ID)
	assert.Equal(t, want, v.PublishTime)
	assert.Equal(t, domain.ScheduleStatusPending, v.Status)
	assert.Zero(t, v.RetryCount)

	stored := f.db.schedule(sched.ID)
	assert.Equal(t, domain.ScheduleStatusPending, stored.Status)
	assert.Equal(t, want, stored.PublishTime)
}

func TestUpdatePostSchedule_RevivesExhausted(t *testing.T) {
	f := newFixture(t, succeed())
	post := f.posts[1]
	f.addSchedule(post.ID, testNow.Add(-time.Hour), func(s *domain.Schedule) {
		for range 3 {
			s.MarkFailed("HTTP 503")
		}
	})

	v, err := f.svc.UpdatePostSchedule(context.Background(), post.ID, "2026-03-01 09:30", "UTC")
	require.NoError(t, err)

	assert.Equal(t, domain.ScheduleStatusPending, v.Status)
	assert.Zero(t, v.RetryCount)
	assert.Empty(t, v.LastError)
	assert.False(t, v.Exhausted)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), v.PublishTime)
}

func TestUpdatePostSchedule_ExplicitTimezoneBeatsOffset(t *testing.T) {
	f := newFixture(t, succeed())
	post := f.posts[0]
	f.addSchedule(post.ID, testNow)

	v, err := f.svc.UpdatePostSchedule(context.Background(), post.ID, "2026-02-01T10:00:00-05:00", "Europe/Paris")
	require.NoError(t, err)

	// Смещение -05:00 отбрасывается, 10:00 в Париже (UTC+1) = 09:00 UTC.
	assert.Equal(t, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC), v.PublishTime)
}

func TestUpdatePostSchedule_OverwritesLatestOnly(t *testing.T) {
	f := newFixture(t, succeed())
	post := f.posts[0]
	older := f.addSchedule(post.ID, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), func(s *domain.Schedule) { s.MarkSucceeded() })
	newer := f.addSchedule(post.ID, time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC), func(s *domain.Schedule) { s.MarkFailed("x") })

	v, err := f.svc.UpdatePostSchedule(context.Background(), post.ID, "2026-02-01T10:00:00Z", "UTC")
	require.NoError(t, err)

	assert.Equal(t, newer.ID, v.ID)
	assert.Equal(t, domain.ScheduleStatusSuccess, f.db.schedule(older.ID).Status)
	assert.Equal(t, older.PublishTime, f.db.schedule(older.ID).PublishTime)
}

func TestUpdatePostSchedule_Errors(t *testing.T) {
	f := newFixture(t, succeed())
	withSchedule := f.posts[0]
	withoutSchedule := f.posts[1]
	f.addSchedule(withSchedule.ID, testNow)

	tests := []struct {
		name     string
		postID   uuid.UUID
		ts       string
		tz       string
		target   error
		category error
	}{
		{"post missing", uuid.New(), "2026-02-01T10:00:00", "", ErrPostNotFound, ErrNotFound},
		{"no schedule", withoutSchedule.ID, "2026-02-01T10:00:00", "UTC", ErrScheduleNotFound, ErrNotFound},
		{"bad timestamp", withSchedule.ID, "next friday", "UTC", ErrInvalidTimestamp, ErrInvalidInput},
		{"bad timezone", withSchedule.ID, "2026-02-01T10:00:00", "Moon/Base", ErrInvalidTimezone, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := f.svc.UpdatePostSchedule(context.Background(), tt.postID, tt.ts, tt.tz)

			assert.Nil(t, v)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, tt.category)
		})
	}
}

// --- Reads ---

func TestGetCampaignSchedules(t *testing.T) {
	f := newFixture(t, succeed())
	_, err := f.svc.CreateCampaignSchedule(context.Background(), f.campaign.ID, domain.PlatformTwitter)
	require.NoError(t, err)
	_, err = f.svc.CreateCampaignSchedule(context.Background(), f.campaign.ID, domain.PlatformInstagram)
	require.NoError(t, err)

	views, err := f.svc.GetCampaignSchedules(context.Background(), f.campaign.ID)
	require.NoError(t, err)

	assert.Len(t, views, 4)
	for i := 1; i < len(views); i++ {
		assert.False(t, views[i].PublishTime.Before(views[i-1].PublishTime))
	}
}

func TestGetCampaignSchedules_NoPosts(t *testing.T) {
	f := newFixture(t, succeed())

	_, err := f.svc.GetCampaignSchedules(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrNoPosts)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPostSchedule(t *testing.T) {
	f := newFixture(t, succeed())
	post := f.posts[2]
	f.addSchedule(post.ID, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC))
	latest := f.addSchedule(post.ID, time.Date(2026, 1, 9, 3, 0, 0, 0, time.UTC), func(s *domain.Schedule) {
		s.MarkFailed("a")
		s.MarkFailed("b")
		s.MarkFailed("c")
	})

	v, err := f.svc.GetPostSchedule(context.Background(), post.ID)
	require.NoError(t, err)

	assert.Equal(t, latest.ID, v.ID)
	assert.True(t, v.Exhausted)

	_, err = f.svc.GetPostSchedule(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = f.svc.GetPostSchedule(context.Background(), f.posts[0].ID)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

// --- FetchSchedulesToProcess ---

func TestFetchSchedulesToProcess_Predicate(t *testing.T) {
	f := newFixture(t, succeed())
	p := f.posts[0].ID
	past := testNow.Add(-time.Hour)

	duePending := f.addSchedule(p, past)
	atNow := f.addSchedule(p, testNow)
	f.addSchedule(p, testNow.Add(time.Minute))
	f.addSchedule(p, past, func(s *domain.Schedule) { s.MarkSucceeded() })
	retryable := f.addSchedule(p, past, func(s *domain.Schedule) { s.MarkFailed("x") })
	f.addSchedule(p, past, func(s *domain.Schedule) {
		s.MarkFailed("x")
		s.MarkFailed("x")
		s.MarkFailed("x")
	})
	f.addSchedule(p, past, func(s *domain.Schedule) { s.Claim(uuid.New(), testNow.Add(time.Minute)) })
	stale := f.addSchedule(p, past.Add(time.Second), func(s *domain.Schedule) { s.Claim(uuid.New(), testNow.Add(-time.Minute)) })
	staleLast := f.addSchedule(p, past, func(s *domain.Schedule) {
		s.MarkFailed("x")
		s.MarkFailed("x")
		s.Claim(uuid.New(), testNow.Add(-time.Minute))
	})

	got, err := f.svc.FetchSchedulesToProcess(context.Background())
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{duePending.ID, atNow.ID, retryable.ID, stale.ID}, ids)

	// Просроченный захват засчитан как попытка: у последнего попытки кончились.
	assert.Equal(t, 1, f.db.schedule(stale.ID).RetryCount)
	exhausted := f.db.schedule(staleLast.ID)
	assert.Equal(t, domain.ScheduleStatusFailed, exhausted.Status)
	assert.Equal(t, 3, exhausted.RetryCount)
	assert.Equal(t, "claim expired", exhausted.LastError)
}

func TestFetchSchedulesToProcess_BatchSize(t *testing.T) {
	f := newFixture(t, succeed(), func(c *Config) { c.BatchSize = 2 })
	for i := range 5 {
		f.addSchedule(f.posts[0].ID, testNow.Add(-time.Duration(i+1)*time.Hour))
	}

	got, err := f.svc.FetchSchedulesToProcess(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.True(t, got[0].PublishTime.Before(got[1].PublishTime))
}

// --- TriggerSchedule ---

func TestTriggerSchedule_Empty(t *testing.T) {
	f := newFixture(t, succeed())
	f.addSchedule(f.posts[0].ID, testNow.Add(time.Hour))

	results, err := f.svc.TriggerSchedule(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestTriggerSchedule_ListError(t *testing.T) {
	f := newFixture(t, succeed())
	f.db.listErr = errStore

	results, err := f.svc.TriggerSchedule(context.Background())

	assert.Nil(t, results)
	assert.ErrorIs(t, err, errStore)
}

func TestTriggerSchedule_ClaimError(t *testing.T) {
	pub := &mockPublisher{}
	f := newFixture(t, pub)
	sched := due(f, f.posts[0].ID)
	f.db.claimErr = errStore

	results, err := f.svc.TriggerSchedule(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, sched.ID, results[0].ScheduleID)
	assert.Equal(t, domain.ScheduleStatusPending, results[0].Status)
	assert.Equal(t, 0, results[0].RetryCount)
	assert.False(t, results[0].Exhausted)
	assert.Contains(t, results[0].Error, errStore.Error())
	assert.Equal(t, domain.ScheduleStatusPending, f.db.schedule(sched.ID).Status)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestTriggerSchedule_Success(t *testing.T) {
	pub := &mockPublisher{}
	f := newFixture(t, pub)
	post := f.posts[0]
	sched := due(f, post.ID)

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(req publisher.Request) bool {
		return req.ScheduleID == sched.ID &&
			req.PostID == post.ID &&
			req.Platform == domain.PlatformTwitter &&
			req.Attempt == 1
	})).Return(nil).Once()

	results, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []TriggerResult{{
		ScheduleID: sched.ID,
		Status:     domain.ScheduleStatusSuccess,
		RetryCount: 0,
	}}, results)

	stored := f.db.schedule(sched.ID)
	assert.Equal(t, domain.ScheduleStatusSuccess, stored.Status)
	assert.Nil(t, stored.ClaimToken)

	attempts, err := f.svc.ListScheduleAttempts(context.Background(), sched.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].Attempt)
	assert.Equal(t, domain.ScheduleStatusSuccess, attempts[0].Status)

	// SUCCESS больше не выбирается.
	again, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again)

	pub.AssertExpectations(t)
}

func TestTriggerSchedule_RetriesUntilExhausted(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("HTTP 503"))
	f := newFixture(t, pub)
	sched := due(f, f.posts[0].ID)

	for i := 1; i <= 3; i++ {
		results, err := f.svc.TriggerSchedule(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1, "pass %d", i)

		r := results[0]
		assert.Equal(t, domain.ScheduleStatusFailed, r.Status)
		assert.Equal(t, i, r.RetryCount)
		assert.Equal(t, "HTTP 503", r.Error)
		assert.Equal(t, i == 3, r.Exhausted)
	}

	// Четвёртый проход: исчерпанный schedule не выбирается.
	results, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)

	pub.AssertNumberOfCalls(t, "Publish", 3)

	stored := f.db.schedule(sched.ID)
	assert.Equal(t, domain.ScheduleStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)

	attempts, err := f.svc.ListScheduleAttempts(context.Background(), sched.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	for i, a := range attempts {
		assert.Equal(t, i+1, a.Attempt)
		assert.Equal(t, "HTTP 503", a.Error)
	}
}

func TestTriggerSchedule_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	pub := publisher.Func(func(context.Context, publisher.Request) error {
		if calls.Add(1) == 1 {
			return errors.New("rate limited")
		}
		return nil
	})
	f := newFixture(t, pub)
	due(f, f.posts[0].ID)

	first, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)
	second, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, domain.ScheduleStatusFailed, first[0].Status)
	assert.Equal(t, domain.ScheduleStatusSuccess, second[0].Status)
	assert.Equal(t, 1, second[0].RetryCount)
	assert.Empty(t, second[0].Error)
}

func TestTriggerSchedule_Parallel(t *testing.T) {
	var calls atomic.Int32
	pub := publisher.Func(func(context.Context, publisher.Request) error {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	f := newFixture(t, pub, func(c *Config) { c.Concurrency = 4 })
	var want []uuid.UUID
	for i := range 12 {
		s := f.addSchedule(f.posts[i%3].ID, testNow.Add(-time.Duration(12-i)*time.Minute))
		want = append(want, s.ID)
	}

	results, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 12)
	assert.Equal(t, int32(12), calls.Load())
	for i, r := range results {
		assert.Equal(t, want[i], r.ScheduleID, "results keep selection order")
		assert.Equal(t, domain.ScheduleStatusSuccess, r.Status)
	}
}

func TestTriggerSchedule_ConcurrentInvocationsPublishOnce(t *testing.T) {
	var calls atomic.Int32
	pub := publisher.Func(func(context.Context, publisher.Request) error {
		calls.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	})
	f := newFixture(t, pub)
	for i := range 20 {
		f.addSchedule(f.posts[i%3].ID, testNow.Add(-time.Duration(i+1)*time.Minute))
	}

	var wg sync.WaitGroup
	var total atomic.Int32
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := f.svc.TriggerSchedule(context.Background())
			assert.NoError(t, err)
			total.Add(int32(len(results)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), calls.Load())
	assert.Equal(t, int32(20), total.Load())
}

func TestTriggerSchedule_CancellationBetweenSchedules(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := publisher.Func(func(pctx context.Context, _ publisher.Request) error {
		cancel()
		// Начатая обработка не зависит от отмены вызывающего.
		return pctx.Err()
	})
	f := newFixture(t, pub)
	first := f.addSchedule(f.posts[0].ID, testNow.Add(-3*time.Hour))
	second := f.addSchedule(f.posts[1].ID, testNow.Add(-2*time.Hour))
	third := f.addSchedule(f.posts[2].ID, testNow.Add(-time.Hour))

	results, err := f.svc.TriggerSchedule(ctx)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, first.ID, results[0].ScheduleID)
	assert.Equal(t, domain.ScheduleStatusSuccess, results[0].Status)
	assert.Equal(t, domain.ScheduleStatusPending, f.db.schedule(second.ID).Status)
	assert.Equal(t, domain.ScheduleStatusPending, f.db.schedule(third.ID).Status)
}

func TestTriggerSchedule_NotifiesOutcome(t *testing.T) {
	notifier := &mockNotifier{}
	f := newFixture(t, succeed(), func(c *Config) { c.Notifier = notifier })
	ok := due(f, f.posts[0].ID)
	orphan := f.addSchedule(uuid.New(), testNow.Add(-2*time.Hour))

	notifier.On("PublishScheduleOutcome", mock.Anything, mock.MatchedBy(func(p mq.ScheduleOutcomePayload) bool {
		return p.ScheduleID == ok.ID && p.Status == domain.ScheduleStatusSuccess && p.Platform == domain.PlatformTwitter
	})).Return(nil).Once()
	notifier.On("PublishScheduleOutcome", mock.Anything, mock.MatchedBy(func(p mq.ScheduleOutcomePayload) bool {
		return p.ScheduleID == orphan.ID && p.Status == domain.ScheduleStatusFailed && p.RetryCount == 1
	})).Return(errors.New("broker down")).Once()

	results, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)

	assert.Len(t, results, 2)
	notifier.AssertExpectations(t)
}

// --- ProcessSchedule ---

func TestProcessSchedule_PostMissing(t *testing.T) {
	pub := &mockPublisher{}
	f := newFixture(t, pub)
	post := f.posts[0]
	sched := due(f, post.ID)
	f.db.deletePost(post.ID)

	res, err := f.svc.ProcessSchedule(context.Background(), sched)
	require.NoError(t, err)

	assert.Equal(t, domain.ScheduleStatusFailed, res.Status)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, "post not found", res.Error)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestProcessSchedule_PublishTimeout(t *testing.T) {
	pub := publisher.Func(func(ctx context.Context, _ publisher.Request) error {
		<-ctx.Done()
		return ctx.Err()
	})
	f := newFixture(t, pub, func(c *Config) { c.PublishTimeout = 20 * time.Millisecond })
	sched := due(f, f.posts[0].ID)

	res, err := f.svc.ProcessSchedule(context.Background(), sched)
	require.NoError(t, err)

	assert.Equal(t, domain.ScheduleStatusFailed, res.Status)
	assert.Equal(t, "publish timeout", res.Error)
	assert.Equal(t, 1, res.RetryCount)
}

func TestProcessSchedule_PublisherIgnoresDeadline(t *testing.T) {
	pub := publisher.Func(func(context.Context, publisher.Request) error {
		time.Sleep(300 * time.Millisecond)
		return nil
	})
	f := newFixture(t, pub, func(c *Config) { c.PublishTimeout = 20 * time.Millisecond })
	sched := due(f, f.posts[0].ID)

	start := time.Now()
	res, err := f.svc.ProcessSchedule(context.Background(), sched)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, "publish timeout", res.Error)
}

func TestProcessSchedule_PublisherPanic(t *testing.T) {
	pub := publisher.Func(func(context.Context, publisher.Request) error {
		panic("nil map")
	})
	f := newFixture(t, pub)
	sched := due(f, f.posts[0].ID)

	res, err := f.svc.ProcessSchedule(context.Background(), sched)
	require.NoError(t, err)

	assert.Equal(t, domain.ScheduleStatusFailed, res.Status)
	assert.Contains(t, res.Error, "panic")
	assert.Equal(t, domain.ScheduleStatusFailed, f.db.schedule(sched.ID).Status)
}

func TestProcessSchedule_CompleteFailureIsCorrected(t *testing.T) {
	f := newFixture(t, succeed())
	sched := due(f, f.posts[0].ID)
	f.db.completeErr = errStore

	res, err := f.svc.ProcessSchedule(context.Background(), sched)
	require.NoError(t, err)

	assert.Equal(t, domain.ScheduleStatusFailed, res.Status)
	assert.Equal(t, 1, res.RetryCount)
	assert.Contains(t, res.Error, "record outcome")

	stored := f.db.schedule(sched.ID)
	assert.Equal(t, domain.ScheduleStatusFailed, stored.Status)
	assert.Nil(t, stored.ClaimToken)
}

func TestProcessSchedule_CompleteFailureKeepsPublishError(t *testing.T) {
	pub := publisher.Func(func(context.Context, publisher.Request) error { return errors.New("HTTP 500") })
	f := newFixture(t, pub)
	sched := due(f, f.posts[0].ID)
	f.db.completeErr = errStore

	res, err := f.svc.ProcessSchedule(context.Background(), sched)
	require.NoError(t, err)

	assert.Equal(t, "HTTP 500", res.Error)
	assert.Equal(t, 1, res.RetryCount)
}

func TestProcessSchedule_AlreadyClaimed(t *testing.T) {
	pub := &mockPublisher{}
	f := newFixture(t, pub)
	sched := f.addSchedule(f.posts[0].ID, testNow.Add(-time.Hour), func(s *domain.Schedule) {
		s.Claim(uuid.New(), testNow.Add(time.Minute))
	})

	_, err := f.svc.ProcessSchedule(context.Background(), sched)

	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestProcessSchedule_StaleClaimRecovered(t *testing.T) {
	f := newFixture(t, succeed())
	sched := f.addSchedule(f.posts[0].ID, testNow.Add(-time.Hour), func(s *domain.Schedule) {
		s.Claim(uuid.New(), testNow.Add(-time.Second))
	})

	results, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, sched.ID, results[0].ScheduleID)
	assert.Equal(t, domain.ScheduleStatusSuccess, results[0].Status)
	assert.Equal(t, 1, results[0].RetryCount)

	attempts, err := f.svc.ListScheduleAttempts(context.Background(), sched.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "claim expired", attempts[0].Error)
	assert.Equal(t, domain.ScheduleStatusSuccess, attempts[1].Status)
}

func TestTriggerSchedule_CrashingPublishEventuallyExhausts(t *testing.T) {
	pub := &mockPublisher{}
	f := newFixture(t, pub)
	sched := f.addSchedule(f.posts[0].ID, testNow.Add(-time.Hour))

	// Процесс падает посреди публикации: захват остаётся висеть.
	for range DefaultMaxRetryCount {
		f.db.mu.Lock()
		f.db.schedules[sched.ID].Claim(uuid.New(), testNow.Add(-time.Second))
		f.db.mu.Unlock()

		_, err := f.svc.FetchSchedulesToProcess(context.Background())
		require.NoError(t, err)
	}

	stored := f.db.schedule(sched.ID)
	assert.Equal(t, domain.ScheduleStatusFailed, stored.Status)
	assert.Equal(t, DefaultMaxRetryCount, stored.RetryCount)

	results, err := f.svc.TriggerSchedule(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestProcessSchedule_RescheduledDuringPublish(t *testing.T) {
	var f *fixture
	pub := publisher.Func(func(ctx context.Context, req publisher.Request) error {
		_, err := f.svc.UpdatePostSchedule(ctx, req.PostID, "2026-02-01T10:00:00", "UTC")
		return err
	})
	f = newFixture(t, pub)
	sched := due(f, f.posts[0].ID)

	res, err := f.svc.ProcessSchedule(context.Background(), sched)
	require.NoError(t, err)

	// Захват утерян: итог попытки отброшен, строка уже перенесена.
	assert.Equal(t, domain.ScheduleStatusPending, res.Status)
	assert.Zero(t, res.RetryCount)

	stored := f.db.schedule(sched.ID)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), stored.PublishTime)
	assert.Equal(t, domain.ScheduleStatusPending, stored.Status)

	attempts, err := f.svc.ListScheduleAttempts(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

// --- ListScheduleAttempts ---

func TestListScheduleAttempts_UnknownSchedule(t *testing.T) {
	f := newFixture(t, succeed())

	_, err := f.svc.ListScheduleAttempts(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

// --- New ---

func TestNew_Defaults(t *testing.T) {
	svc := New(Config{})

	assert.Equal(t, DefaultMaxRetryCount, svc.MaxRetryCount())
	assert.Equal(t, 19, svc.planner.hour())
	assert.Equal(t, DefaultPublishTimeout, svc.publishTimeout)
	assert.Equal(t, DefaultClaimLease, svc.claimLease)
	assert.Equal(t, DefaultBatchSize, svc.batchSize)
	assert.Equal(t, 1, svc.concurrency)
	assert.Equal(t, domain.PlatformTwitter, svc.defaultPlatform)
	assert.NotNil(t, svc.logger)
	assert.NotNil(t, svc.clock)
}

func TestNew_PostingHourMidnight(t *testing.T) {
	hour := 0
	svc := New(Config{PostingHour: &hour})
	assert.Equal(t, 0, svc.planner.hour())
}
