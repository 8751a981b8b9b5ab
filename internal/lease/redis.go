package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey — ключ lease в Redis.
const DefaultRedisKey = "herald:trigger:lease"

// Продление и снятие выполняются только владельцем токена.
const (
	extendScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`

	releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`
)

// RedisClient — подмножество redis.Cmdable, нужное lease.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Redis — lease на ключе с TTL.
//
// Лидер продлевает TTL при каждом TryLock. Если процесс завис дольше TTL,
// lease переходит к другому экземпляру.
type Redis struct {
	client RedisClient
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

// NewRedis создаёт Redis lease.
func NewRedis(client RedisClient, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// NewRedisClient создаёт клиент по URL вида redis://host:6379/0.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// TryLock захватывает ключ или продлевает свой lease.
func (r *Redis) TryLock(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" {
		n, err := r.client.Eval(ctx, extendScript, []string{r.key}, r.token, r.ttl.Milliseconds()).Int()
		if err != nil {
			return false, fmt.Errorf("extend lease: %w", err)
		}
		if n == 1 {
			return true, nil
		}
		// Ключ истёк или перехвачен: пробуем захватить заново.
		r.token = ""
	}

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	if ok {
		r.token = token
	}
	return ok, nil
}

// Unlock удаляет ключ, если он всё ещё принадлежит этому процессу.
func (r *Redis) Unlock(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token == "" {
		return ErrNotHeld
	}
	token := r.token
	r.token = ""

	if err := r.client.Eval(ctx, releaseScript, []string{r.key}, token).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
