package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis — минимальный Redis: строковые ключи с TTL и два lua-скрипта lease.
type fakeRedis struct {
	mu      sync.Mutex
	now     time.Time
	values  map[string]string
	expires map[string]time.Time
	err     error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeRedis) get(key string) (string, bool) {
	if exp, ok := f.expires[key]; ok && !f.now.Before(exp) {
		delete(f.values, key)
		delete(f.expires, key)
	}
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.get(key); ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.expires[key] = f.now.Add(ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	key := keys[0]
	v, ok := f.get(key)
	if !ok || v != args[0].(string) {
		return redis.NewCmdResult(int64(0), nil)
	}
	switch script {
	case extendScript:
		f.expires[key] = f.now.Add(time.Duration(args[1].(int64)) * time.Millisecond)
	case releaseScript:
		delete(f.values, key)
		delete(f.expires, key)
	default:
		return redis.NewCmdResult(nil, errors.New("unknown script"))
	}
	return redis.NewCmdResult(int64(1), nil)
}

func TestRedis_SingleLeader(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	a := NewRedis(rdb, "", time.Minute)
	b := NewRedis(rdb, "", time.Minute)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not acquire a held lease")

	// Лидер подтверждает lease.
	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ExtendKeepsLease(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	a := NewRedis(rdb, "k", time.Minute)
	b := NewRedis(rdb, "k", time.Minute)

	_, err := a.TryLock(ctx)
	require.NoError(t, err)

	for range 3 {
		rdb.advance(40 * time.Second)
		ok, err := a.TryLock(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_ExpiredLeaseTakenOver(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	a := NewRedis(rdb, "k", time.Minute)
	b := NewRedis(rdb, "k", time.Minute)

	_, err := a.TryLock(ctx)
	require.NoError(t, err)

	rdb.advance(2 * time.Minute)

	ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease should be taken over")

	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "previous leader must notice the loss")

	// Unlock бывшего лидера не трогает чужой ключ.
	assert.ErrorIs(t, a.Unlock(ctx), ErrNotHeld)
	v, _ := rdb.get("k")
	assert.NotEmpty(t, v)
}

func TestRedis_Unlock(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	a := NewRedis(rdb, "k", time.Minute)
	b := NewRedis(rdb, "k", time.Minute)

	assert.ErrorIs(t, a.Unlock(ctx), ErrNotHeld)

	_, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Unlock(ctx))

	ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_ClientError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	l := NewRedis(rdb, "k", time.Minute)

	ok, err := l.TryLock(context.Background())

	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewRedis_Defaults(t *testing.T) {
	l := NewRedis(newFakeRedis(), "", 0)

	assert.Equal(t, DefaultRedisKey, l.key)
	assert.Equal(t, time.Minute, l.ttl)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("http://not-redis")
	assert.Error(t, err)
}

func TestLocal(t *testing.T) {
	var l Locker = Local{}

	ok, err := l.TryLock(context.Background())

	assert.True(t, ok)
	assert.NoError(t, err)
	assert.NoError(t, l.Unlock(context.Background()))
}

func TestNewPostgres_DefaultKey(t *testing.T) {
	p := NewPostgres(nil, 0)

	assert.Equal(t, DefaultAdvisoryKey, p.key)
	assert.ErrorIs(t, p.Unlock(context.Background()), ErrNotHeld)
}
